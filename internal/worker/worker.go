// Package worker drives one image analysis end to end: fetch the tweet,
// find the image, ask the inference network about it, and post the
// reply. Failures degrade to skipped work items; nothing here crashes
// the polling loop above it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oriys/argus/internal/cache"
	"github.com/oriys/argus/internal/detect"
	"github.com/oriys/argus/internal/errtrack"
	"github.com/oriys/argus/internal/logging"
	"github.com/oriys/argus/internal/metrics"
	"github.com/oriys/argus/internal/observability"
	"github.com/oriys/argus/internal/ratelimit"
	"github.com/oriys/argus/internal/twitter"
)

// Data errors: the tweet exists but has nothing we can analyze. The
// poller counts these as processed-but-skipped, never as retryable.
var (
	ErrNoTweetData = errors.New("worker: could not retrieve tweet data")
	ErrNoImage     = errors.New("worker: no image found to analyze")
)

// IsDataError reports whether err means the tweet had nothing usable,
// as opposed to a provider failure worth retrying.
func IsDataError(err error) bool {
	return errors.Is(err, ErrNoTweetData) || errors.Is(err, ErrNoImage)
}

// Analysis is the outcome of one DetectImage call.
type Analysis struct {
	TweetID   string
	ImageURL  string
	Result    *detect.Result
	FromCache bool
	Replied   bool
	Reply     string
}

// Config holds worker settings.
type Config struct {
	SubnetID     int
	CacheTTL     time.Duration
	CacheCleanup time.Duration

	// SkipReply runs analyses without posting the verdict back. Used by
	// the one-shot CLI command.
	SkipReply bool
}

// Worker analyzes single tweets. It owns the analysis cache and the
// inference-network limiter; the Twitter limiter is shared with the
// poller so every call against the Twitter quota goes through one
// window.
type Worker struct {
	cfg Config

	twitter  *twitter.Client
	detector *detect.Client

	twitterLimit *ratelimit.Limiter
	detectLimit  *ratelimit.Limiter
	tracker      *errtrack.Tracker

	analysisCache *cache.Cache[detect.Result]
}

// New creates a worker.
func New(cfg Config, tw *twitter.Client, dt *detect.Client, twitterLimit, detectLimit *ratelimit.Limiter, tracker *errtrack.Tracker) *Worker {
	return &Worker{
		cfg:           cfg,
		twitter:       tw,
		detector:      dt,
		twitterLimit:  twitterLimit,
		detectLimit:   detectLimit,
		tracker:       tracker,
		analysisCache: cache.New[detect.Result](cfg.CacheTTL, cfg.CacheCleanup),
	}
}

// DetectImage analyzes the image referenced by a tweet and replies with
// the verdict. The returned Analysis is non-nil on success. A reply
// failure is logged and tracked but does not fail the analysis.
func (w *Worker) DetectImage(ctx context.Context, tweetID string) (*Analysis, error) {
	ctx, span := observability.StartSpan(ctx, "worker.detect_image",
		observability.AttrTweetID.String(tweetID))
	defer span.End()

	start := time.Now()
	analysis, err := w.detectImage(ctx, tweetID)
	elapsed := time.Since(start)

	entry := &logging.AnalysisLog{
		TweetID:    tweetID,
		DurationMs: elapsed.Milliseconds(),
		Success:    err == nil,
	}
	status := "ok"
	if err != nil {
		observability.SetSpanError(span, err)
		entry.Error = err.Error()
		status = "failed"
	} else {
		observability.SetSpanOK(span)
		entry.ImageURL = analysis.ImageURL
		entry.IsAI = analysis.Result.IsAI
		entry.Confidence = analysis.Result.Confidence
		entry.FromCache = analysis.FromCache
		entry.Replied = analysis.Replied
	}
	logging.Analyses().Log(entry)
	metrics.AnalysisCompleted(status, elapsed)

	return analysis, err
}

func (w *Worker) detectImage(ctx context.Context, tweetID string) (*Analysis, error) {
	logging.Op().Info("starting image detection", "tweet_id", tweetID)

	if err := w.twitterLimit.Wait(ctx); err != nil {
		return nil, err
	}
	metrics.RateLimitWait(w.twitterLimit.Name())

	resp, err := w.twitter.Tweet(ctx, tweetID)
	if err != nil {
		w.tracker.Track("twitter_error", "failed to fetch tweet", err)
		return nil, fmt.Errorf("fetch tweet %s: %w", tweetID, err)
	}
	if resp.Data == nil {
		w.tracker.Track("data_error", "tweet lookup returned no data", nil)
		return nil, ErrNoTweetData
	}

	// Check the mentioning tweet for an image, then the root of the
	// conversation it replied to.
	imageURL, _ := twitter.ExtractImageURL(resp)
	fromRoot := false
	var rootAuthorID string
	if imageURL == "" {
		if root := twitter.RootTweetResponse(resp); root != nil {
			imageURL, _ = twitter.ExtractImageURL(root)
			if imageURL != "" {
				fromRoot = true
				rootAuthorID = root.Data.AuthorID
			}
		}
	}
	if imageURL == "" {
		w.tracker.Track("data_error", "no image found in tweet "+tweetID, nil)
		return nil, ErrNoImage
	}

	var requester, originalPoster string
	if u := twitter.UserByID(resp.Includes, resp.Data.AuthorID); u != nil {
		requester = u.Username
	}
	if fromRoot {
		if u := twitter.UserByID(resp.Includes, rootAuthorID); u != nil {
			originalPoster = u.Username
		}
	}

	result, fromCache, err := w.analyze(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	reply := detect.FormatReport(result, w.cfg.SubnetID, requester, originalPoster, fromRoot)
	replied := false
	if !w.cfg.SkipReply {
		replied = w.postReply(ctx, tweetID, reply)
	}

	return &Analysis{
		TweetID:   tweetID,
		ImageURL:  imageURL,
		Result:    result,
		FromCache: fromCache,
		Replied:   replied,
		Reply:     reply,
	}, nil
}

// analyze returns the verdict for an image URL, consulting the analysis
// cache before spending an inference-network request.
func (w *Worker) analyze(ctx context.Context, imageURL string) (*detect.Result, bool, error) {
	if cached, ok := w.analysisCache.Get(imageURL); ok {
		metrics.CacheLookup("analysis", true)
		return &cached, true, nil
	}
	metrics.CacheLookup("analysis", false)

	if err := w.detectLimit.Wait(ctx); err != nil {
		return nil, false, err
	}
	metrics.RateLimitWait(w.detectLimit.Name())

	result, err := w.detector.CallSubnet(ctx, imageURL)
	if err != nil {
		w.tracker.Track("analysis_error", "inference network call failed", err)
		return nil, false, fmt.Errorf("analyze image: %w", err)
	}

	w.analysisCache.Set(imageURL, *result)
	return result, false, nil
}

// postReply posts the verdict as a reply and reports whether it was
// delivered. Reply failures are recorded but never propagate.
func (w *Worker) postReply(ctx context.Context, tweetID, text string) bool {
	if err := w.twitterLimit.Wait(ctx); err != nil {
		metrics.ReplyPosted("failed")
		return false
	}
	metrics.RateLimitWait(w.twitterLimit.Name())

	if err := w.twitter.CreateReply(ctx, text, tweetID); err != nil {
		w.tracker.Track("reply_error", "failed to post reply", err)
		metrics.ReplyPosted("failed")
		return false
	}

	logging.Op().Info("posted reply", "tweet_id", tweetID)
	metrics.ReplyPosted("ok")
	return true
}

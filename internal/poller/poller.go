// Package poller runs the long-lived mention-check loop: every interval
// it fetches recent mentions of the bot account, filters out stale or
// already-handled tweets, and hands the rest to the detection worker.
// Any failure inside a cycle is logged and followed by a cooldown; the
// loop itself runs until its context is cancelled.
package poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	uberratelimit "go.uber.org/ratelimit"

	"github.com/oriys/argus/internal/cache"
	"github.com/oriys/argus/internal/errtrack"
	"github.com/oriys/argus/internal/logging"
	"github.com/oriys/argus/internal/metrics"
	"github.com/oriys/argus/internal/observability"
	"github.com/oriys/argus/internal/ratelimit"
	"github.com/oriys/argus/internal/twitter"
	"github.com/oriys/argus/internal/worker"
)

// Config holds polling settings.
type Config struct {
	// CheckInterval is the pause between successful cycles.
	CheckInterval time.Duration
	// Lookback bounds how old a mention may be and still get analyzed.
	Lookback time.Duration
	// MaxMentions caps how many mentions one cycle fetches. Kept low on
	// purpose: it is the main defence against quota exhaustion.
	MaxMentions int
	// ErrorCooldown is the pause after a failed cycle. It should be at
	// least as long as one worst-case backoff so a persistent failure
	// cannot hammer the APIs.
	ErrorCooldown time.Duration
	// PacePerMinute smooths analyses inside a cycle. Zero disables pacing.
	PacePerMinute int
}

// Summary aggregates one cycle's outcomes.
type Summary struct {
	Processed int
	Analyzed  int
	Skipped   int
}

// Poller drives the mention-check loop.
type Poller struct {
	cfg     Config
	twitter *twitter.Client
	worker  *worker.Worker
	limiter *ratelimit.Limiter
	tracker *errtrack.Tracker
	pacer   uberratelimit.Limiter

	// seen remembers which mentions were already handled: the lookback
	// window is wider than the check interval, so without it the same
	// mention would be analyzed on several consecutive cycles.
	seen *cache.Cache[bool]

	// botID is resolved once on the first cycle and cached for the
	// poller's lifetime.
	botID string
}

// New creates a poller. The Twitter limiter must be the same instance
// the worker uses, so all calls against the Twitter quota share one
// window.
func New(cfg Config, tw *twitter.Client, w *worker.Worker, limiter *ratelimit.Limiter, tracker *errtrack.Tracker) *Poller {
	pacer := uberratelimit.NewUnlimited()
	if cfg.PacePerMinute > 0 {
		pacer = uberratelimit.New(cfg.PacePerMinute, uberratelimit.Per(time.Minute))
	}
	seenTTL := cfg.Lookback
	if seenTTL <= 0 {
		seenTTL = 45 * time.Minute
	}
	return &Poller{
		cfg:     cfg,
		twitter: tw,
		worker:  w,
		limiter: limiter,
		tracker: tracker,
		pacer:   pacer,
		seen:    cache.New[bool](seenTTL, cache.DefaultCleanupInterval),
	}
}

// Run executes mention-check cycles until ctx is cancelled. It never
// returns for any other reason: cycle failures are absorbed with a
// cooldown so the agent keeps running unattended.
func (p *Poller) Run(ctx context.Context) error {
	for {
		cycleID := uuid.New().String()[:8]
		logging.Op().Info("starting mention check cycle", "cycle_id", cycleID)

		start := time.Now()
		summary, err := p.CheckMentions(ctx, cycleID)
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.CycleCompleted("failed", elapsed)
			p.tracker.Track("cycle_error", "mention check cycle failed", err)
			logging.Op().Warn("cooling down after failed cycle",
				"cycle_id", cycleID, "cooldown", p.cfg.ErrorCooldown)
			if err := sleep(ctx, p.cfg.ErrorCooldown); err != nil {
				return err
			}
			continue
		}

		metrics.CycleCompleted("ok", elapsed)
		logging.Op().Info("mention check cycle complete",
			"cycle_id", cycleID,
			"processed", summary.Processed,
			"analyzed", summary.Analyzed,
			"skipped", summary.Skipped,
			"next_check", time.Now().Add(p.cfg.CheckInterval).Format(time.RFC3339))

		if err := sleep(ctx, p.cfg.CheckInterval); err != nil {
			return err
		}
	}
}

// CheckMentions runs one cycle: fetch mentions newer than the lookback
// cutoff and analyze each at most once.
func (p *Poller) CheckMentions(ctx context.Context, cycleID string) (Summary, error) {
	ctx, span := observability.StartSpan(ctx, "poller.check_mentions",
		observability.AttrCycleID.String(cycleID))
	defer span.End()

	var s Summary

	cutoff := time.Now().UTC().Add(-p.cfg.Lookback)
	logging.Op().Info("processing mentions", "after", cutoff.Format(time.RFC3339))

	botID, err := p.resolveBotID(ctx)
	if err != nil {
		observability.SetSpanError(span, err)
		return s, err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return s, err
	}
	metrics.RateLimitWait(p.limiter.Name())

	mentions, err := p.twitter.UserMentions(ctx, botID, p.cfg.MaxMentions, cutoff)
	if err != nil {
		observability.SetSpanError(span, err)
		p.tracker.Track("twitter_error", "failed to fetch mentions", err)
		return s, err
	}
	if len(mentions.Data) == 0 {
		logging.Op().Info("no mentions to process")
		observability.SetSpanOK(span)
		return s, nil
	}

	// One batched lookup against the dedupe cache for the whole cycle.
	ids := make([]string, 0, len(mentions.Data))
	for _, m := range mentions.Data {
		ids = append(ids, m.ID)
	}
	handled := p.seen.GetMany(ids)

	for _, mention := range mentions.Data {
		if mention.ID == "" {
			logging.Op().Warn("invalid mention data, skipping")
			continue
		}
		if mention.CreatedAt.Before(cutoff) {
			logging.Op().Info("skipping old mention",
				"tweet_id", mention.ID, "created_at", mention.CreatedAt.Format(time.RFC3339))
			metrics.MentionSeen("skipped")
			s.Skipped++
			continue
		}
		if handled[mention.ID] {
			logging.Op().Debug("mention already handled", "tweet_id", mention.ID)
			metrics.MentionSeen("duplicate")
			s.Skipped++
			continue
		}

		p.pacer.Take()

		p.analyzeMention(ctx, mention.ID, &s)
		metrics.MentionSeen("processed")
		s.Processed++

		if ctx.Err() != nil {
			return s, ctx.Err()
		}
	}

	span.SetAttributes(
		observability.AttrProcessed.Int(s.Processed),
		observability.AttrAnalyzed.Int(s.Analyzed),
		observability.AttrSkipped.Int(s.Skipped),
	)
	observability.SetSpanOK(span)
	return s, nil
}

// analyzeMention runs one analysis with at most one retry gated by the
// rate-limit backoff helper. Failures are absorbed: a failed mention is
// processed-but-not-analyzed, never a cycle error.
func (p *Poller) analyzeMention(ctx context.Context, tweetID string, s *Summary) {
	analysis, err := p.worker.DetectImage(ctx, tweetID)
	if err != nil && ratelimit.IsRateLimitError(err) {
		if p.limiter.HandleRateLimit(ctx, 0, p.limiter.MaxRetries(), err) {
			analysis, err = p.worker.DetectImage(ctx, tweetID)
		}
	}

	switch {
	case err == nil:
		s.Analyzed++
		p.seen.Set(tweetID, true)
		logging.Op().Info("analysis complete",
			"tweet_id", tweetID,
			"is_ai", analysis.Result.IsAI,
			"confidence", analysis.Result.Confidence,
			"from_cache", analysis.FromCache)
	case worker.IsDataError(err):
		// Nothing to analyze in this tweet; don't revisit it next cycle.
		p.seen.Set(tweetID, true)
		logging.Op().Info("nothing to analyze", "tweet_id", tweetID, "reason", err)
	default:
		// Transient failure: leave the mention unmarked so the next
		// cycle inside the lookback window can retry it.
		logging.Op().Error("failed to analyze mention", "tweet_id", tweetID, "error", err)
	}
}

// resolveBotID returns the bot's user ID, fetching it on first use.
func (p *Poller) resolveBotID(ctx context.Context) (string, error) {
	if p.botID != "" {
		return p.botID, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	metrics.RateLimitWait(p.limiter.Name())

	me, err := p.twitter.Me(ctx)
	if err != nil {
		p.tracker.Track("twitter_error", "could not retrieve bot user id", err)
		return "", err
	}
	p.botID = me.ID
	logging.Op().Info("resolved bot account", "user_id", me.ID, "username", me.Username)
	return p.botID, nil
}

// sleep blocks for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/argus/internal/detect"
	"github.com/oriys/argus/internal/errtrack"
	"github.com/oriys/argus/internal/ratelimit"
	"github.com/oriys/argus/internal/twitter"
)

func testLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Window:      time.Second,
		MaxRequests: 1000,
		Buffer:      0,
		MinSleep:    time.Millisecond,
		MaxSleep:    10 * time.Millisecond,
		MaxRetries:  3,
	}
}

// fakeTwitter serves the narrow slice of the v2 API the worker touches.
type fakeTwitter struct {
	tweets  map[string]*twitter.TweetResponse
	replies atomic.Int32
	// lastReply holds the body of the most recent POST /tweets.
	lastReply atomic.Value
}

func (f *fakeTwitter) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tweets/{id}", func(w http.ResponseWriter, r *http.Request) {
		resp, ok := f.tweets[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"errors":[{"title":"Not Found"}]}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /tweets", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.lastReply.Store(body)
		f.replies.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"reply1"}}`))
	})
	return mux
}

func mentionWithImage(id string) *twitter.TweetResponse {
	return &twitter.TweetResponse{
		Data: &twitter.Tweet{
			ID:          id,
			AuthorID:    "u1",
			Attachments: &twitter.Attachments{MediaKeys: []string{"m1"}},
		},
		Includes: &twitter.Includes{
			Media: []twitter.Media{{MediaKey: "m1", Type: "photo", URL: "https://img.example/" + id + ".jpg"}},
			Users: []twitter.User{{ID: "u1", Username: "alice"}},
		},
	}
}

func newTestWorker(t *testing.T, ft *fakeTwitter, detectHandler http.HandlerFunc) (*Worker, *httptest.Server, *httptest.Server) {
	t.Helper()

	twSrv := httptest.NewServer(ft.handler())
	t.Cleanup(twSrv.Close)

	dtSrv := httptest.NewServer(detectHandler)
	t.Cleanup(dtSrv.Close)

	twClient := twitter.NewClient(twitter.Config{BaseURL: twSrv.URL, BearerToken: "token"})
	dtClient := detect.NewClient(detect.Config{BaseURL: dtSrv.URL, APIKey: "key", SubnetID: 34})

	w := New(
		Config{SubnetID: 34, CacheTTL: time.Hour, CacheCleanup: time.Minute},
		twClient, dtClient,
		ratelimit.NewLimiter("twitter", testLimitConfig()),
		ratelimit.NewLimiter("detect", testLimitConfig()),
		errtrack.New(time.Hour, 100, nil),
	)
	return w, twSrv, dtSrv
}

func aiDetector(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Write([]byte(`{"isAI": true, "confidence": 0.9}`))
	}
}

func TestDetectImage_Success(t *testing.T) {
	ft := &fakeTwitter{tweets: map[string]*twitter.TweetResponse{"1": mentionWithImage("1")}}
	w, _, _ := newTestWorker(t, ft, aiDetector(nil))

	analysis, err := w.DetectImage(context.Background(), "1")
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if !analysis.Result.IsAI || analysis.Result.Confidence != 0.9 {
		t.Fatalf("unexpected result: %+v", analysis.Result)
	}
	if !analysis.Replied {
		t.Fatal("expected a reply to be posted")
	}
	if !strings.Contains(analysis.Reply, "@alice") {
		t.Fatalf("reply must mention the requester:\n%s", analysis.Reply)
	}
	if got := ft.replies.Load(); got != 1 {
		t.Fatalf("expected 1 reply, got %d", got)
	}

	// The reply must thread onto the analyzed tweet.
	body := ft.lastReply.Load().(map[string]any)
	reply := body["reply"].(map[string]any)
	if reply["in_reply_to_tweet_id"] != "1" {
		t.Fatalf("reply not threaded: %v", body)
	}
}

func TestDetectImage_NoImage(t *testing.T) {
	var detectCalls atomic.Int32
	ft := &fakeTwitter{tweets: map[string]*twitter.TweetResponse{
		"1": {Data: &twitter.Tweet{ID: "1", AuthorID: "u1"}},
	}}
	w, _, _ := newTestWorker(t, ft, aiDetector(&detectCalls))

	_, err := w.DetectImage(context.Background(), "1")
	if !IsDataError(err) {
		t.Fatalf("expected data error, got %v", err)
	}
	if detectCalls.Load() != 0 {
		t.Fatal("no analysis should run without an image")
	}
	if ft.replies.Load() != 0 {
		t.Fatal("no reply should be posted without an image")
	}
}

func TestDetectImage_MissingTweet(t *testing.T) {
	ft := &fakeTwitter{tweets: map[string]*twitter.TweetResponse{}}
	w, _, _ := newTestWorker(t, ft, aiDetector(nil))

	if _, err := w.DetectImage(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing tweet")
	}
}

func TestDetectImage_AnalysisCached(t *testing.T) {
	var detectCalls atomic.Int32
	tweets := map[string]*twitter.TweetResponse{
		"1": mentionWithImage("1"),
		"2": mentionWithImage("1"), // same image URL, different tweet
	}
	tweets["2"].Data.ID = "2"
	ft := &fakeTwitter{tweets: tweets}
	w, _, _ := newTestWorker(t, ft, aiDetector(&detectCalls))

	first, err := w.DetectImage(context.Background(), "1")
	if err != nil {
		t.Fatalf("first DetectImage failed: %v", err)
	}
	second, err := w.DetectImage(context.Background(), "2")
	if err != nil {
		t.Fatalf("second DetectImage failed: %v", err)
	}

	if first.FromCache {
		t.Fatal("first analysis should not be cached")
	}
	if !second.FromCache {
		t.Fatal("second analysis of the same image should be cached")
	}
	if got := detectCalls.Load(); got != 1 {
		t.Fatalf("expected 1 inference call, got %d", got)
	}
	if got := ft.replies.Load(); got != 2 {
		t.Fatalf("cached analyses still reply, expected 2 replies, got %d", got)
	}
}

func TestDetectImage_RootTweetImage(t *testing.T) {
	resp := &twitter.TweetResponse{
		Data: &twitter.Tweet{
			ID:               "2",
			AuthorID:         "u1",
			ReferencedTweets: []twitter.ReferencedTweet{{Type: "replied_to", ID: "1"}},
		},
		Includes: &twitter.Includes{
			Tweets: []twitter.Tweet{{
				ID:          "1",
				AuthorID:    "u2",
				Attachments: &twitter.Attachments{MediaKeys: []string{"m1"}},
			}},
			Media: []twitter.Media{{MediaKey: "m1", Type: "photo", URL: "https://img.example/root.jpg"}},
			Users: []twitter.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}},
		},
	}
	ft := &fakeTwitter{tweets: map[string]*twitter.TweetResponse{"2": resp}}
	w, _, _ := newTestWorker(t, ft, aiDetector(nil))

	analysis, err := w.DetectImage(context.Background(), "2")
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if analysis.ImageURL != "https://img.example/root.jpg" {
		t.Fatalf("expected root image, got %s", analysis.ImageURL)
	}
	if !strings.Contains(analysis.Reply, "Analyzing image from @bob") {
		t.Fatalf("reply must credit the original poster:\n%s", analysis.Reply)
	}
}

func TestDetectImage_ReplyFailureDoesNotFailAnalysis(t *testing.T) {
	ft := &fakeTwitter{tweets: map[string]*twitter.TweetResponse{"1": mentionWithImage("1")}}

	// Wrap the fake so reply posting always fails.
	twSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Error(w, "oops", http.StatusInternalServerError)
			return
		}
		ft.handler().ServeHTTP(w, r)
	}))
	defer twSrv.Close()

	dtSrv := httptest.NewServer(aiDetector(nil))
	defer dtSrv.Close()

	w := New(
		Config{SubnetID: 34, CacheTTL: time.Hour, CacheCleanup: time.Minute},
		twitter.NewClient(twitter.Config{BaseURL: twSrv.URL}),
		detect.NewClient(detect.Config{BaseURL: dtSrv.URL, SubnetID: 34}),
		ratelimit.NewLimiter("twitter", testLimitConfig()),
		ratelimit.NewLimiter("detect", testLimitConfig()),
		errtrack.New(time.Hour, 100, nil),
	)

	analysis, err := w.DetectImage(context.Background(), "1")
	if err != nil {
		t.Fatalf("analysis must survive a failed reply: %v", err)
	}
	if analysis.Replied {
		t.Fatal("Replied must be false when posting fails")
	}
}

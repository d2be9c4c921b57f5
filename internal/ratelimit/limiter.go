// Package ratelimit provides client-side admission control for external
// APIs that enforce fixed-window request quotas, plus an exponential
// backoff helper for recovering after the provider has already rejected
// a request. The two mechanisms are deliberately separate: Wait is
// admission control, HandleRateLimit is failure recovery.
package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/oriys/argus/internal/logging"
	"github.com/oriys/argus/internal/metrics"
)

// backoffBase is the starting delay used by HandleRateLimit when the
// provider has returned an explicit rate-limit error. Providers that
// reject a request usually need far longer than the limiter's minimum
// sleep before they admit traffic again.
const backoffBase = 180 * time.Second

// Config holds the quota parameters for one provider.
type Config struct {
	// Window is the provider's fixed quota window.
	Window time.Duration `json:"window" yaml:"window"`
	// MaxRequests is the number of requests the provider admits per window.
	MaxRequests int `json:"max_requests" yaml:"max_requests"`
	// Buffer is how many requests below MaxRequests the limiter stays.
	Buffer int `json:"buffer" yaml:"buffer"`
	// MinSleep is the backoff floor when no error object is available.
	MinSleep time.Duration `json:"min_sleep" yaml:"min_sleep"`
	// MaxSleep caps every backoff computed by HandleRateLimit.
	MaxSleep time.Duration `json:"max_sleep" yaml:"max_sleep"`
	// MaxRetries bounds the retry loop driven by HandleRateLimit.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// TwitterConfig returns the quota parameters for the Twitter v2 API
// (15 requests per 15-minute window on most mention endpoints).
func TwitterConfig() Config {
	return Config{
		Window:      15 * time.Minute,
		MaxRequests: 15,
		Buffer:      1,
		MinSleep:    time.Minute,
		MaxSleep:    15 * time.Minute,
		MaxRetries:  3,
	}
}

// DetectionConfig returns the quota parameters for the inference network.
func DetectionConfig() Config {
	return Config{
		Window:      time.Minute,
		MaxRequests: 100,
		Buffer:      0,
		MinSleep:    time.Second,
		MaxSleep:    30 * time.Second,
		MaxRetries:  3,
	}
}

// Limiter counts requests against a fixed window and blocks callers just
// long enough for the window to roll over when the quota is nearly
// spent. Safe for concurrent use; a blocked Wait holds the limiter and
// concurrent callers queue behind it.
type Limiter struct {
	name string
	cfg  Config

	// gate admits one caller at a time; windowStart and count are only
	// touched while holding it. A channel rather than a mutex so a Wait
	// blocked behind another waiter still honours ctx cancellation.
	gate chan struct{}

	windowStart time.Time
	count       int
}

// NewLimiter creates a limiter for the named provider.
func NewLimiter(name string, cfg Config) *Limiter {
	l := &Limiter{
		name: name,
		cfg:  cfg,
		gate: make(chan struct{}, 1),
	}
	l.gate <- struct{}{}
	return l
}

// Name returns the provider name the limiter was created with.
func (l *Limiter) Name() string { return l.name }

// MaxRetries returns the configured retry bound for HandleRateLimit.
func (l *Limiter) MaxRetries() int { return l.cfg.MaxRetries }

// Wait blocks until one more request is admissible, then records it.
// It is intended to be called immediately before every request that
// counts against the provider's quota: it either passes through
// immediately or sleeps exactly long enough for the window to roll over.
// The only error it can return is ctx.Err on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case <-l.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { l.gate <- struct{}{} }()

	now := time.Now()

	// Reset the counter if the window has passed.
	if now.Sub(l.windowStart) > l.cfg.Window {
		l.count = 0
		l.windowStart = now
		logging.Op().Debug("rate limit window reset", "limiter", l.name)
	}

	// Block for the remainder of the window if the quota is nearly spent.
	if l.count >= l.cfg.MaxRequests-l.cfg.Buffer {
		remaining := l.cfg.Window - now.Sub(l.windowStart)
		if remaining > 0 {
			logging.Op().Info("rate limit wait",
				"limiter", l.name,
				"wait", remaining.Round(100*time.Millisecond),
				"requests", l.count,
				"max", l.cfg.MaxRequests)
			if err := sleep(ctx, remaining); err != nil {
				return err
			}
			l.count = 0
			l.windowStart = time.Now()
		}
	}

	l.count++
	logging.Op().Debug("requests in window", "limiter", l.name, "count", l.count)
	metrics.WindowRequests(l.name, l.count)
	return nil
}

// HandleRateLimit sleeps with exponential backoff after a request was
// rejected by the provider, and reports whether the caller may retry.
// It returns false without sleeping when the retry budget is exhausted
// (attempt >= maxRetries-1) or when err is present but not
// rate-limit-shaped; callers must treat false as "give up", not escalate
// retries themselves. attempt is zero-based.
func (l *Limiter) HandleRateLimit(ctx context.Context, attempt, maxRetries int, err error) bool {
	if attempt >= maxRetries-1 {
		return false
	}
	if err != nil && !IsRateLimitError(err) {
		return false
	}

	base := l.cfg.MinSleep
	if err != nil {
		base = backoffBase
	}
	wait := base << attempt
	if wait > l.cfg.MaxSleep {
		wait = l.cfg.MaxSleep
	}

	logging.Op().Info("rate limit backoff",
		"limiter", l.name,
		"attempt", attempt+1,
		"max_retries", maxRetries,
		"wait", wait)

	if sleepErr := sleep(ctx, wait); sleepErr != nil {
		return false
	}
	return true
}

// IsRateLimitError reports whether err looks like a provider-side rate
// limit rejection. Errors carrying a structured HTTP status are checked
// by code; everything else falls back to a textual heuristic matching
// the 429 marker or the phrase "rate limit" in any case, since some
// transports surface errors as opaque text.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr interface{ HTTPStatus() int }
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatus() == http.StatusTooManyRequests
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "rate limit")
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

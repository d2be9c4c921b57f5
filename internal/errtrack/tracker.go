// Package errtrack counts error occurrences per kind over a rolling
// interval and warns when a kind's rate climbs above a threshold. Its
// contract is "never fails, always records"; there is no read path
// beyond logs and metrics.
package errtrack

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oriys/argus/internal/logging"
	"github.com/oriys/argus/internal/metrics"
)

// Defaults used by New when given non-positive values.
const (
	DefaultResetInterval  = time.Hour
	DefaultAlertThreshold = 10
)

// Tracker counts errors per kind. Counts are cleared wholesale once the
// reset interval has elapsed. Safe for concurrent use.
type Tracker struct {
	mu             sync.Mutex
	counts         map[string]int
	lastReset      time.Time
	resetInterval  time.Duration
	alertThreshold int
	logger         *slog.Logger
}

// New creates a tracker. A nil logger falls back to the operational logger.
func New(resetInterval time.Duration, alertThreshold int, logger *slog.Logger) *Tracker {
	if resetInterval <= 0 {
		resetInterval = DefaultResetInterval
	}
	if alertThreshold <= 0 {
		alertThreshold = DefaultAlertThreshold
	}
	return &Tracker{
		counts:         make(map[string]int),
		lastReset:      time.Now(),
		resetInterval:  resetInterval,
		alertThreshold: alertThreshold,
		logger:         logger,
	}
}

// Track records one occurrence of kind. context and err are optional
// detail for the log line; either being present produces an error-level
// record. Crossing the alert threshold additionally produces a single
// warning for that increment.
func (t *Tracker) Track(kind, context string, err error) {
	t.mu.Lock()

	now := time.Now()
	if now.Sub(t.lastReset) > t.resetInterval {
		t.counts = make(map[string]int)
		t.lastReset = now
	}

	t.counts[kind]++
	count := t.counts[kind]

	t.mu.Unlock()

	metrics.ErrorTracked(kind)

	if count > t.alertThreshold {
		t.log().Warn("elevated error rate",
			"kind", kind,
			"count", count,
			"interval", t.resetInterval)
	}

	if context != "" || err != nil {
		args := []any{"kind", strings.ToUpper(kind)}
		if context != "" {
			args = append(args, "context", context)
		}
		if err != nil {
			args = append(args, "error", err.Error())
		}
		t.log().Error("tracked error", args...)
	}
}

func (t *Tracker) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return logging.Op()
}

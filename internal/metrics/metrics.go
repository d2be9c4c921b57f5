// Package metrics exposes Prometheus instrumentation for the agent.
// All record helpers are safe to call before Init; they become no-ops.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps prometheus collectors for agent metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	cyclesTotal    *prometheus.CounterVec
	mentionsTotal  *prometheus.CounterVec
	analysesTotal  *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	cacheOpsTotal  *prometheus.CounterVec
	rateLimitWaits *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec

	// Histograms
	analysisDuration prometheus.Histogram
	cycleDuration    prometheus.Histogram

	// Gauges
	uptime         prometheus.GaugeFunc
	windowRequests *prometheus.GaugeVec
}

// Default histogram buckets for analysis duration (in seconds).
var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var agentMetrics *Metrics

// Init initializes the Prometheus metrics subsystem.
func Init(namespace string) {
	registry := prometheus.NewRegistry()
	// Register default Go and process collectors
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	startTime := time.Now()

	m := &Metrics{
		registry: registry,

		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of mention-check cycles",
			},
			[]string{"status"},
		),

		mentionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mentions_total",
				Help:      "Total number of mentions seen, by outcome",
			},
			[]string{"outcome"},
		),

		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of image analyses, by status",
			},
			[]string{"status"},
		),

		repliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replies_total",
				Help:      "Total number of reply attempts, by status",
			},
			[]string{"status"},
		),

		cacheOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_ops_total",
				Help:      "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),

		rateLimitWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_waits_total",
				Help:      "Rate limiter admissions, by limiter",
			},
			[]string{"limiter"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Tracked errors by kind",
			},
			[]string{"kind"},
		),

		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of a single image analysis",
				Buckets:   defaultBuckets,
			},
		),

		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of a mention-check cycle",
				Buckets:   defaultBuckets,
			},
		),

		uptime: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Seconds since the agent started",
			},
			func() float64 { return time.Since(startTime).Seconds() },
		),

		windowRequests: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limit_window_requests",
				Help:      "Requests recorded in the current quota window, by limiter",
			},
			[]string{"limiter"},
		),
	}

	registry.MustRegister(
		m.cyclesTotal,
		m.mentionsTotal,
		m.analysesTotal,
		m.repliesTotal,
		m.cacheOpsTotal,
		m.rateLimitWaits,
		m.errorsTotal,
		m.analysisDuration,
		m.cycleDuration,
		m.uptime,
		m.windowRequests,
	)

	agentMetrics = m
}

// Handler returns an HTTP handler serving the metrics endpoint, or nil
// if Init has not been called.
func Handler() http.Handler {
	if agentMetrics == nil {
		return nil
	}
	return promhttp.HandlerFor(agentMetrics.registry, promhttp.HandlerOpts{})
}

// CycleCompleted records one finished mention-check cycle.
func CycleCompleted(status string, d time.Duration) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.cyclesTotal.WithLabelValues(status).Inc()
	agentMetrics.cycleDuration.Observe(d.Seconds())
}

// MentionSeen records one mention by outcome ("processed" or "skipped").
func MentionSeen(outcome string) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.mentionsTotal.WithLabelValues(outcome).Inc()
}

// AnalysisCompleted records one image analysis.
func AnalysisCompleted(status string, d time.Duration) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.analysesTotal.WithLabelValues(status).Inc()
	agentMetrics.analysisDuration.Observe(d.Seconds())
}

// ReplyPosted records one reply attempt.
func ReplyPosted(status string) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.repliesTotal.WithLabelValues(status).Inc()
}

// CacheLookup records a cache hit or miss.
func CacheLookup(cache string, hit bool) {
	if agentMetrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	agentMetrics.cacheOpsTotal.WithLabelValues(cache, result).Inc()
}

// RateLimitWait records one limiter admission.
func RateLimitWait(limiter string) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.rateLimitWaits.WithLabelValues(limiter).Inc()
}

// WindowRequests records the current occupancy of a limiter's window.
func WindowRequests(limiter string, count int) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.windowRequests.WithLabelValues(limiter).Set(float64(count))
}

// ErrorTracked records one tracked error.
func ErrorTracked(kind string) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.errorsTotal.WithLabelValues(kind).Inc()
}

package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AnalysisLog represents a single image-analysis log entry.
type AnalysisLog struct {
	Timestamp  time.Time `json:"timestamp"`
	CycleID    string    `json:"cycle_id,omitempty"`
	TweetID    string    `json:"tweet_id"`
	ImageURL   string    `json:"image_url,omitempty"`
	IsAI       bool      `json:"is_ai,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	FromCache  bool      `json:"from_cache,omitempty"`
	Replied    bool      `json:"replied,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// AnalysisLogger handles per-analysis logging.
type AnalysisLogger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultAnalysisLogger = &AnalysisLogger{enabled: true, console: true}

// Analyses returns the default analysis logger.
func Analyses() *AnalysisLogger {
	return defaultAnalysisLogger
}

// SetOutput sets the log output file.
func (l *AnalysisLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *AnalysisLogger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes an analysis log entry.
func (l *AnalysisLogger) Log(entry *AnalysisLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	// Console output (human-readable)
	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		cached := ""
		if entry.FromCache {
			cached = " [cached]"
		}
		verdict := ""
		if entry.Success {
			label := "human"
			if entry.IsAI {
				label = "ai"
			}
			verdict = fmt.Sprintf(" %s %.1f%%", label, entry.Confidence*100)
		}
		fmt.Printf("[analysis] %s %s %dms%s%s\n",
			status, entry.TweetID, entry.DurationMs, verdict, cached)
		if entry.Error != "" {
			fmt.Printf("[analysis]   error: %s\n", entry.Error)
		}
	}

	// File output (JSON)
	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *AnalysisLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

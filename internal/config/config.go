package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oriys/argus/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

// TwitterConfig holds social API connection settings. The bearer token
// is never read from a config file; it comes from the environment.
type TwitterConfig struct {
	BaseURL     string `json:"base_url" yaml:"base_url"`
	BearerToken string `json:"-" yaml:"-"`
}

// DetectionConfig holds inference network settings.
type DetectionConfig struct {
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"-" yaml:"-"`
	SubnetID int    `json:"subnet_id" yaml:"subnet_id"`
}

// PollerConfig holds mention-polling settings.
type PollerConfig struct {
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	Lookback      time.Duration `json:"lookback" yaml:"lookback"`
	MaxMentions   int           `json:"max_mentions" yaml:"max_mentions"`
	ErrorCooldown time.Duration `json:"error_cooldown" yaml:"error_cooldown"`
	PacePerMinute int           `json:"pace_per_minute" yaml:"pace_per_minute"`
}

// CacheConfig holds TTL cache settings shared by the worker's caches.
type CacheConfig struct {
	TTL             time.Duration `json:"ttl" yaml:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// TrackerConfig holds error tracker settings.
type TrackerConfig struct {
	ResetInterval  time.Duration `json:"reset_interval" yaml:"reset_interval"`
	AlertThreshold int           `json:"alert_threshold" yaml:"alert_threshold"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Exporter   string  `json:"exporter" yaml:"exporter"`
	Endpoint   string  `json:"endpoint" yaml:"endpoint"`
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	MetricsAddr     string `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel        string `json:"log_level" yaml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format"`
	AnalysisLogPath string `json:"analysis_log_path" yaml:"analysis_log_path"`
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	Twitter      TwitterConfig    `json:"twitter" yaml:"twitter"`
	Detection    DetectionConfig  `json:"detection" yaml:"detection"`
	Poller       PollerConfig     `json:"poller" yaml:"poller"`
	Cache        CacheConfig      `json:"cache" yaml:"cache"`
	Tracker      TrackerConfig    `json:"tracker" yaml:"tracker"`
	Telemetry    TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
	Daemon       DaemonConfig     `json:"daemon" yaml:"daemon"`
	TwitterLimit ratelimit.Config `json:"twitter_limit" yaml:"twitter_limit"`
	DetectLimit  ratelimit.Config `json:"detect_limit" yaml:"detect_limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL: "https://api.twitter.com/2",
		},
		Detection: DetectionConfig{
			BaseURL:  "https://api.bitmind.ai/v1",
			SubnetID: 34,
		},
		Poller: PollerConfig{
			CheckInterval: 15 * time.Minute,
			Lookback:      45 * time.Minute,
			MaxMentions:   7,
			ErrorCooldown: 5 * time.Minute,
			PacePerMinute: 12, // one analysis every 5s
		},
		Cache: CacheConfig{
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Tracker: TrackerConfig{
			ResetInterval:  time.Hour,
			AlertThreshold: 10,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Exporter:   "otlp-http",
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
		Daemon: DaemonConfig{
			MetricsAddr: "",
			LogLevel:    "info",
			LogFormat:   "text",
		},
		TwitterLimit: ratelimit.TwitterConfig(),
		DetectLimit:  ratelimit.DetectionConfig(),
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, determined
// by extension.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config,
// including the credentials which are environment-only.
func LoadFromEnv(cfg *Config) {
	cfg.Twitter.BearerToken = os.Getenv("TWITTER_BEARER_TOKEN")
	cfg.Detection.APIKey = os.Getenv("DETECTION_API_KEY")

	if v := os.Getenv("ARGUS_TWITTER_BASE_URL"); v != "" {
		cfg.Twitter.BaseURL = v
	}
	if v := os.Getenv("ARGUS_DETECTION_BASE_URL"); v != "" {
		cfg.Detection.BaseURL = v
	}
	if v := os.Getenv("ARGUS_METRICS_ADDR"); v != "" {
		cfg.Daemon.MetricsAddr = v
	}
	if v := os.Getenv("ARGUS_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("ARGUS_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	if v := os.Getenv("ARGUS_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poller.CheckInterval = d
		}
	}
	if v := os.Getenv("ARGUS_LOOKBACK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poller.Lookback = d
		}
	}
	if v := os.Getenv("ARGUS_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
}

// requiredCredentials names the environment variables that must be set
// before the agent starts.
var requiredCredentials = []string{
	"TWITTER_BEARER_TOKEN",
	"DETECTION_API_KEY",
}

// Validate checks that the configuration is complete enough to start.
// Missing credentials are a fatal startup error; the process must not
// begin polling without them.
func (c *Config) Validate() error {
	var missing []string
	for _, name := range requiredCredentials {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}

	if c.Poller.MaxMentions <= 0 {
		return fmt.Errorf("poller.max_mentions must be positive, got %d", c.Poller.MaxMentions)
	}
	if c.Poller.CheckInterval <= 0 {
		return fmt.Errorf("poller.check_interval must be positive, got %v", c.Poller.CheckInterval)
	}
	return nil
}

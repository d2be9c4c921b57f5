package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Poller.CheckInterval != 15*time.Minute {
		t.Fatalf("unexpected default check interval: %v", cfg.Poller.CheckInterval)
	}
	if cfg.Poller.MaxMentions != 7 {
		t.Fatalf("unexpected default max mentions: %d", cfg.Poller.MaxMentions)
	}
	if cfg.Detection.SubnetID != 34 {
		t.Fatalf("unexpected default subnet: %d", cfg.Detection.SubnetID)
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argus.yaml")
	body := []byte(`
poller:
  max_mentions: 3
  check_interval: 1m
daemon:
  log_level: debug
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Poller.MaxMentions != 3 {
		t.Fatalf("expected max_mentions override, got %d", cfg.Poller.MaxMentions)
	}
	if cfg.Poller.CheckInterval != time.Minute {
		t.Fatalf("expected check_interval override, got %v", cfg.Poller.CheckInterval)
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Fatalf("expected log_level override, got %s", cfg.Daemon.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.Poller.Lookback != 45*time.Minute {
		t.Fatalf("expected default lookback, got %v", cfg.Poller.Lookback)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argus.json")
	body := []byte(`{"detection": {"subnet_id": 7}}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Detection.SubnetID != 7 {
		t.Fatalf("expected subnet override, got %d", cfg.Detection.SubnetID)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "token")
	t.Setenv("DETECTION_API_KEY", "key")
	t.Setenv("ARGUS_CHECK_INTERVAL", "30s")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Twitter.BearerToken != "token" {
		t.Fatal("bearer token not loaded from env")
	}
	if cfg.Detection.APIKey != "key" {
		t.Fatal("detection key not loaded from env")
	}
	if cfg.Poller.CheckInterval != 30*time.Second {
		t.Fatalf("expected 30s check interval, got %v", cfg.Poller.CheckInterval)
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "")
	t.Setenv("DETECTION_API_KEY", "")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing credentials")
	}
}

func TestValidate_OK(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "token")
	t.Setenv("DETECTION_API_KEY", "key")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

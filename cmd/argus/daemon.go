package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/argus/internal/config"
	"github.com/oriys/argus/internal/detect"
	"github.com/oriys/argus/internal/errtrack"
	"github.com/oriys/argus/internal/logging"
	"github.com/oriys/argus/internal/metrics"
	"github.com/oriys/argus/internal/observability"
	"github.com/oriys/argus/internal/poller"
	"github.com/oriys/argus/internal/ratelimit"
	"github.com/oriys/argus/internal/twitter"
	"github.com/oriys/argus/internal/worker"
)

// loadConfig resolves configuration in the usual order: defaults, then
// the optional config file, then environment overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// buildAgent wires clients, limiters, tracker, worker and poller from
// one config. The Twitter limiter instance is shared between the worker
// and the poller so the whole agent draws from a single quota window.
func buildAgent(cfg *config.Config, skipReply bool) (*poller.Poller, *worker.Worker) {
	twClient := twitter.NewClient(twitter.Config{
		BaseURL:     cfg.Twitter.BaseURL,
		BearerToken: cfg.Twitter.BearerToken,
	})
	dtClient := detect.NewClient(detect.Config{
		BaseURL:  cfg.Detection.BaseURL,
		APIKey:   cfg.Detection.APIKey,
		SubnetID: cfg.Detection.SubnetID,
	})

	tracker := errtrack.New(cfg.Tracker.ResetInterval, cfg.Tracker.AlertThreshold, logging.Op())
	twLimit := ratelimit.NewLimiter("twitter", cfg.TwitterLimit)
	dtLimit := ratelimit.NewLimiter("detect", cfg.DetectLimit)

	w := worker.New(worker.Config{
		SubnetID:     cfg.Detection.SubnetID,
		CacheTTL:     cfg.Cache.TTL,
		CacheCleanup: cfg.Cache.CleanupInterval,
		SkipReply:    skipReply,
	}, twClient, dtClient, twLimit, dtLimit, tracker)

	p := poller.New(poller.Config{
		CheckInterval: cfg.Poller.CheckInterval,
		Lookback:      cfg.Poller.Lookback,
		MaxMentions:   cfg.Poller.MaxMentions,
		ErrorCooldown: cfg.Poller.ErrorCooldown,
		PacePerMinute: cfg.Poller.PacePerMinute,
	}, twClient, w, twLimit, tracker)

	return p, w
}

func runCmd() *cobra.Command {
	var (
		logLevel    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mention-polling agent daemon",
		Long:  "Run Argus as a long-lived daemon: poll mentions, analyze referenced images, reply with verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if cmd.Flags().Changed("metrics-listen") {
				cfg.Daemon.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logging.Init(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel)
			if cfg.Daemon.AnalysisLogPath != "" {
				if err := logging.Analyses().SetOutput(cfg.Daemon.AnalysisLogPath); err != nil {
					logging.Op().Warn("failed to open analysis log", "error", err)
				}
				defer logging.Analyses().Close()
			}

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Telemetry.Enabled,
				Exporter:    cfg.Telemetry.Exporter,
				Endpoint:    cfg.Telemetry.Endpoint,
				ServiceName: "argus",
				SampleRate:  cfg.Telemetry.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			metrics.Init("argus")

			var httpServer *http.Server
			if cfg.Daemon.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"status":"ok","service":"argus"}`))
				})
				httpServer = &http.Server{
					Addr:    cfg.Daemon.MetricsAddr,
					Handler: mux,
				}
				go func() {
					logging.Op().Info("metrics endpoint started", "addr", cfg.Daemon.MetricsAddr)
					if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("metrics server error", "error", err)
					}
				}()
			}

			p, _ := buildAgent(cfg, false)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logging.Op().Info("argus agent started",
				"check_interval", cfg.Poller.CheckInterval,
				"lookback", cfg.Poller.Lookback,
				"max_mentions", cfg.Poller.MaxMentions,
				"subnet", cfg.Detection.SubnetID)

			err = p.Run(ctx)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logging.Op().Info("shutdown signal received")

			if httpServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}

			return err
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "HTTP listen address for /metrics and /health (empty disables)")

	return cmd
}

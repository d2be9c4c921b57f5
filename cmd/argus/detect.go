package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/argus/internal/logging"
	"github.com/oriys/argus/internal/metrics"
)

func detectCmd() *cobra.Command {
	var (
		logLevel string
		reply    bool
	)

	cmd := &cobra.Command{
		Use:   "detect <tweet-id>",
		Short: "Analyze one tweet's image and print the verdict",
		Long:  "Run a single detection against the tweet's image and print the formatted report; pass --reply to also post it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logging.Init(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel)
			logging.Analyses().SetConsole(false)
			metrics.Init("argus")

			_, w := buildAgent(cfg, !reply)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			analysis, err := w.DetectImage(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("tweet:      %s\n", analysis.TweetID)
			fmt.Printf("image:      %s\n", analysis.ImageURL)
			fmt.Printf("ai:         %t\n", analysis.Result.IsAI)
			fmt.Printf("confidence: %.2f%%\n", analysis.Result.Confidence*100)
			fmt.Printf("cached:     %t\n", analysis.FromCache)
			fmt.Printf("replied:    %t\n", analysis.Replied)
			fmt.Println()
			fmt.Println(analysis.Reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().BoolVar(&reply, "reply", false, "Post the verdict as a reply to the tweet")

	return cmd
}

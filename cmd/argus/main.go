package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Argus AI-image detection agent",
		Long:  "Argus watches a social account for mentions, checks the referenced image against the BitMind inference network, and replies with the verdict",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (JSON or YAML)")
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the argus version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("argus %s\n", version)
		},
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "LaunchRadar"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "launchradar",
		Short:   "Token launch mention monitor",
		Version: version,
		Long: appName + ` watches syndicated feeds and social timelines for
token-launch mentions, scores each candidate for relevance, suppresses
duplicates, and emits alerts for what survives.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "Path to the YAML config file")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run monitoring cycles continuously",
		Long:  "Run cycles on the configured interval (plus jitter) until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Monitor(cmd.Context())
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one monitoring cycle and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Scan(cmd.Context())
		},
	}

	rootCmd.AddCommand(monitorCmd, scanCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

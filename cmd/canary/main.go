package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	logFormat  string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "canary",
		Short: "Watch Chia debug logs and report farming health",
		Long: `chia-canary follows the debug.log of Chia and its forks, derives
health events (missing plots, slow lookups, stalled signage points, errors)
and reports them to the log, Discord, webhooks, NATS and a local status API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logFormat, logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanary(cmd.Context(), configPath)
		},
	}
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log output format (json|text)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug|info|warn|error)")

	rootCmd.AddCommand(runCmd, detectCmd, statusCmd, versionCmd)
}

func setupLogging(format, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		return fmt.Errorf("invalid --log-format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

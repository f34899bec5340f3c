package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/ragqa/config"
	"github.com/upb/ragqa/internal/observability"
)

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "ragqa",
		Short:        "Question answering over CSV data",
		Long:         "Ingest CSV files into a vector index and answer questions about them over HTTP or in the terminal.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json or console)")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newChatCmd(opts),
	)
	return root
}

// loadConfig builds the configuration and applies flag overrides.
func (o *globalOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Observability.LogFormat = o.logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lojasmm/chatwidget/internal/config"
	"github.com/lojasmm/chatwidget/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "chatwidget",
	Short:         "chatwidget serves an embeddable shop assistant chat and its webhook proxy",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(newServeCmd(), newSendCmd())
}

// setup loads the configuration and initializes logging for a command.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := cfg.LogLevel
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	logger, err := logging.Init(level, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.New(os.Stderr).Error().Err(err).Msg("chatwidget failed")
		stop()
		os.Exit(1)
	}
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

type rootOptions struct {
	config *config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	configPath := ""
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "weld",
		Short:         "x86_64 static linker tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			opts.config = config
			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel(),
			}))

			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	cmd.AddCommand(newRelaxCommand(opts))

	return cmd
}

func logLevel() slog.Level {
	switch env.Str("WELD_LOG_LEVEL", "info") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/selivandex/news-digest/internal/adapters/config"
	"github.com/selivandex/news-digest/pkg/logger"
)

var (
	logLevel string
	cfg      *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "digestctl",
		Short:         "Administer the news digest service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logLevel, "console", ""); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			loaded, err := config.LoadUnvalidated()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(),
		newUserCmd(),
		newAdjustCmd(),
		newHistoryCmd(),
		newDigestCmd(),
		newAnalyticsCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

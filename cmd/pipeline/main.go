// Package main implements the content-acquisition pipeline's CLI:
// run (the three pipeline modes), status (registry/manifest summary),
// and watch (a live-progress TUI for a run in flight).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/terrencegiggy/content-pipeline/internal/config"
	"github.com/terrencegiggy/content-pipeline/internal/extract"
	"github.com/terrencegiggy/content-pipeline/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	log        *zap.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Content-acquisition pipeline: politeness-scheduled crawl, change detection, and entity extraction",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded

		built, err := logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		log = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pipeline.yaml", "path to pipeline config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd, statusCmd, watchCmd)
}

// rootContext returns a context that is cancelled as soon as
// SIGINT/SIGTERM arrives. There is no grace window: an in-flight
// request is cancelled along with the context, not given time to
// finish.
func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)

	var rateLimited *rateLimitedError
	if errors.As(err, &rateLimited) {
		os.Exit(extract.RateLimitExitCode)
	}
	os.Exit(1)
}

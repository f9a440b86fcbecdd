package main

import (
	"errors"
	"fmt"

	"github.com/terrencegiggy/content-pipeline/internal/errs"
	"github.com/terrencegiggy/content-pipeline/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runMode string
	runSeed []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pipeline pass: check, acquire, or full",
	RunE: func(cmd *cobra.Command, args []string) error {
		wp, err := wire()
		if err != nil {
			return fmt.Errorf("wire pipeline: %w", err)
		}

		ctx, cancel := rootContext()
		defer cancel()

		mode := pipeline.Mode(runMode)
		result, err := wp.runner.Run(ctx, mode, runSeed)
		if err != nil {
			log.Error("pipeline run failed", zap.String("mode", runMode), zap.Error(err))
			return err
		}

		log.Info("pipeline run complete",
			zap.String("mode", runMode),
			zap.Int("sources_crawled", result.SourcesCrawled),
			zap.Int("pages_acquired", result.PagesAcquired),
			zap.String("branch", result.BranchName),
			zap.String("pull_request", result.PullRequestURL),
		)
		if result.PullRequestURL != "" {
			fmt.Println(result.PullRequestURL)
		}

		if wp.extract == nil || cfg.DryRun {
			return nil
		}

		extractResult, err := wp.extract.Run(ctx)
		if err != nil {
			if errors.Is(err, errs.ErrRateLimited) {
				log.Warn("extraction stopped: rate limited", zap.Error(err))
				return &rateLimitedError{}
			}
			return fmt.Errorf("extraction: %w", err)
		}
		if extractResult.RateLimited {
			return &rateLimitedError{}
		}

		log.Info("extraction complete",
			zap.Int("assessed", extractResult.Assessed),
			zap.Int("extracted", extractResult.Extracted),
			zap.Int("skipped", extractResult.Skipped),
		)
		return nil
	},
}

// rateLimitedError signals main to exit with extract.RateLimitExitCode
// instead of the generic failure status.
type rateLimitedError struct{}

func (*rateLimitedError) Error() string { return "rate limited" }

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "check", "pipeline mode: check, acquire, or full")
	runCmd.Flags().StringSliceVar(&runSeed, "seed", nil, "seed URLs to acquire (acquire mode only)")
}

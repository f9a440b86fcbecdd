package main

import (
	"fmt"

	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize registry and manifest state",
	RunE: func(cmd *cobra.Command, args []string) error {
		wp, err := wire()
		if err != nil {
			return fmt.Errorf("wire pipeline: %w", err)
		}

		ctx, cancel := rootContext()
		defer cancel()

		sources, err := wp.registry.List(ctx, "", "")
		if err != nil {
			return fmt.Errorf("list sources: %w", err)
		}

		bySourceStatus := map[types.SourceStatus]int{}
		pendingInitial := 0
		for _, s := range sources {
			bySourceStatus[s.Status]++
			if s.PendingInitialAcquisition() {
				pendingInitial++
			}
		}

		fmt.Printf("Sources: %d total\n", len(sources))
		for status, count := range bySourceStatus {
			fmt.Printf("  %-16s %d\n", status, count)
		}
		fmt.Printf("  pending initial acquisition: %d\n\n", pendingInitial)

		entries, err := wp.manifest.All(ctx)
		if err != nil {
			return fmt.Errorf("list manifest entries: %w", err)
		}

		byManifestStatus := map[types.ManifestStatus]int{}
		extractionComplete, extractionSkipped, extractionPending := 0, 0, 0
		for _, e := range entries {
			byManifestStatus[e.Status]++
			switch {
			case e.Metadata.ExtractionComplete:
				extractionComplete++
			case e.Metadata.ExtractionSkipped:
				extractionSkipped++
			case e.Status == types.ManifestStatusCompleted:
				extractionPending++
			}
		}

		fmt.Printf("Manifest: %d entries\n", len(entries))
		for status, count := range byManifestStatus {
			fmt.Printf("  %-16s %d\n", status, count)
		}
		fmt.Printf("  extraction complete: %d\n", extractionComplete)
		fmt.Printf("  extraction skipped:  %d\n", extractionSkipped)
		fmt.Printf("  extraction pending:  %d\n", extractionPending)

		return nil
	},
}

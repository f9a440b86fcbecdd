package monitor

import (
	"context"
	"math/rand"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/registry"
	"github.com/terrencegiggy/content-pipeline/internal/scheduler"
	"github.com/terrencegiggy/content-pipeline/internal/types"
)

// Result aggregates one run_monitor pass's outcome.
type Result struct {
	SourcesChecked int
	InitialNeeded  []*types.SourceEntry
	UpdatesNeeded  []*types.SourceEntry
	Unchanged      []*types.SourceEntry
	Errors         []*types.SourceEntry
	Skipped        []*types.SourceEntry
}

// TotalNeedingAcquisition is the count the crawler phase must process.
func (r *Result) TotalNeedingAcquisition() int {
	return len(r.InitialNeeded) + len(r.UpdatesNeeded)
}

// ToDict renders the result the way a pipeline summary log line does.
func (r *Result) ToDict() map[string]int {
	return map[string]int{
		"sources_checked": r.SourcesChecked,
		"initial_needed":  len(r.InitialNeeded),
		"updates_needed":  len(r.UpdatesNeeded),
		"unchanged":       len(r.Unchanged),
		"errors":          len(r.Errors),
		"skipped":         len(r.Skipped),
	}
}

// GetSourcesPendingInitial returns active sources never yet acquired.
func GetSourcesPendingInitial(sources []types.SourceEntry) []*types.SourceEntry {
	var out []*types.SourceEntry
	for i := range sources {
		s := &sources[i]
		if s.Status == types.SourceStatusActive && s.PendingInitialAcquisition() {
			out = append(out, s)
		}
	}
	return out
}

// GetSourcesDueForCheck returns active, already-acquired sources whose
// NextCheckAfter has arrived (or is exactly now).
func GetSourcesDueForCheck(sources []types.SourceEntry, now time.Time) []*types.SourceEntry {
	var out []*types.SourceEntry
	for i := range sources {
		s := &sources[i]
		if s.Status != types.SourceStatusActive || s.PendingInitialAcquisition() {
			continue
		}
		if s.NextCheckAfter == nil || !s.NextCheckAfter.After(now) {
			out = append(out, s)
		}
	}
	return out
}

// Run executes one monitor pass: it schedules pending-initial and
// due-for-check sources through a DomainScheduler, probes each, and
// updates its registry record. forceFresh ignores NextCheckAfter and
// treats every active, previously-acquired source as due.
func Run(
	ctx context.Context,
	reg *registry.Registry,
	mon *Monitor,
	sched *scheduler.DomainScheduler,
	politeness scheduler.Politeness,
	now time.Time,
	rnd *rand.Rand,
	forceFresh bool,
) (*Result, error) {
	sources, err := reg.List(ctx, types.SourceStatusActive, "")
	if err != nil {
		return nil, err
	}

	initial := GetSourcesPendingInitial(sources)
	var due []*types.SourceEntry
	if forceFresh {
		for i := range sources {
			s := &sources[i]
			if !s.PendingInitialAcquisition() {
				due = append(due, s)
			}
		}
	} else {
		due = GetSourcesDueForCheck(sources, now)
	}

	scheduled := make([]scheduler.ScheduledSource, 0, len(initial)+len(due))
	for _, s := range initial {
		scheduled = append(scheduled, scheduler.FromSource(s, scheduler.ActionInitial, now))
	}
	for _, s := range due {
		scheduled = append(scheduled, scheduler.FromSource(s, scheduler.ActionCheck, now))
	}
	sched.AddSources(scheduled)

	result := &Result{}
	for {
		sc, ok := sched.Next()
		if !ok {
			break
		}

		if err := sched.WaitForDomain(ctx, sc.Domain); err != nil {
			return result, err
		}
		checkResult := mon.Check(ctx, sc.Source)
		result.SourcesChecked++

		updateSourceAfterCheck(sc.Source, checkResult, now, politeness, rnd)

		if err := reg.Put(ctx, *sc.Source); err != nil {
			return result, err
		}

		switch {
		case checkResult.Status == StatusError:
			result.Errors = append(result.Errors, sc.Source)
		case sc.Action == scheduler.ActionInitial:
			result.InitialNeeded = append(result.InitialNeeded, sc.Source)
		case checkResult.Status == StatusChanged:
			result.UpdatesNeeded = append(result.UpdatesNeeded, sc.Source)
		default:
			result.Unchanged = append(result.Unchanged, sc.Source)
		}
	}

	return result, nil
}

const defaultBackoffBase = 6 * time.Hour
const defaultMaxBackoff = 7 * 24 * time.Hour

// updateSourceAfterCheck applies §9's resolved ordering: check_failures
// resets to zero on success before the jitter computation runs, so a
// check that succeeds immediately after a failure window is scheduled
// as a clean success, not a backoff-then-jitter blend.
func updateSourceAfterCheck(source *types.SourceEntry, result CheckResult, now time.Time, politeness scheduler.Politeness, rnd *rand.Rand) {
	source.LastChecked = &now

	if result.Status == StatusError {
		source.CheckFailures++
		next := now.Add(scheduler.CalculateBackoffInterval(source.CheckFailures, defaultBackoffBase, defaultMaxBackoff))
		source.NextCheckAfter = &next
		return
	}

	source.CheckFailures = 0
	if result.ETag != "" {
		source.LastETag = result.ETag
	}
	if result.LastModified != "" {
		source.LastModifiedHeader = result.LastModified
	}

	next := scheduler.CalculateNextCheckWithJitter(source.UpdateFrequency, now, politeness.CheckJitterMinutes, rnd)
	source.NextCheckAfter = &next
}

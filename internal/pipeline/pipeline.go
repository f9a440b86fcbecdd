// Package pipeline implements the pipeline runner (component H): the
// three run modes, the dry-run decision-only path, and the
// transactional working-branch-per-run boundary used in remote mode.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/crawler"
	"github.com/terrencegiggy/content-pipeline/internal/githubapi"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/monitor"
	"github.com/terrencegiggy/content-pipeline/internal/registry"
	"github.com/terrencegiggy/content-pipeline/internal/scheduler"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
	"go.uber.org/zap"
)

// Mode selects which of the three run shapes a Runner executes.
type Mode string

const (
	// ModeCheck runs the monitor and scheduler only — no artifact
	// writes happen even for sources that turn out to need one.
	ModeCheck Mode = "check"
	// ModeAcquire skips the monitor and feeds every pending-initial
	// source (plus any caller-supplied seed URLs) straight to the
	// crawler.
	ModeAcquire Mode = "acquire"
	// ModeFull runs the monitor and feeds whatever it finds straight
	// into the crawler within the same run.
	ModeFull Mode = "full"
)

// Result is what a Runner.Run call reports back to its caller (the
// CLI's run subcommand, or a test harness).
type Result struct {
	Mode           Mode
	MonitorResult  *monitor.Result
	PagesAcquired  int
	SourcesCrawled int
	Errors         []error
	BranchName     string
	PullRequestURL string
}

// Runner owns one pipeline run's wiring: registry, monitor, scheduler,
// crawler, manifest, and — in remote mode — the working branch a run
// accumulates its writes on.
type Runner struct {
	Registry   *registry.Registry
	Monitor    *monitor.Monitor
	Manifest   *manifest.Manifest
	Crawler    *crawler.Crawler
	Politeness scheduler.Politeness
	Clock      func() time.Time
	Rand       *rand.Rand

	// GitHub is nil in local-backend mode; non-nil in remote mode,
	// where Run opens one working branch per invocation. Backend is
	// the same Switchable that Registry/Manifest/Crawler were built
	// against, so retargeting it here reaches every component without
	// reconstructing any of them.
	GitHub  *githubapi.Client
	Backend *store.Switchable

	DryRun       bool
	CreateIssues bool

	Log *zap.Logger
}

func (r *Runner) clock() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Runner) log() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

// Run executes one pipeline pass in the given mode. seedURLs is only
// consulted in ModeAcquire, where it is unioned with the
// pending-initial set the registry reports. A seed URL with no
// registry record is skipped.
func (r *Runner) Run(ctx context.Context, mode Mode, seedURLs []string) (*Result, error) {
	result := &Result{Mode: mode}

	if r.GitHub != nil && !r.DryRun {
		branch, err := r.openWorkingBranch(ctx)
		if err != nil {
			return result, fmt.Errorf("open working branch: %w", err)
		}
		result.BranchName = branch
		defer func() {
			if err := r.finalizeWorkingBranch(ctx, branch, result); err != nil {
				r.log().Error("failed to finalize working branch", zap.Error(err))
			}
		}()
	}

	switch mode {
	case ModeCheck:
		return r.runCheck(ctx, result)
	case ModeAcquire:
		return r.runAcquire(ctx, result, seedURLs)
	case ModeFull:
		return r.runFull(ctx, result)
	default:
		return result, fmt.Errorf("unknown pipeline mode %q", mode)
	}
}

// runCheck runs the monitor + scheduler only. Even in dry_run=false,
// check mode never fetches bodies for the acquisition step — only the
// monitor's own tier-4 content-hash probe may fetch, per §4.H.
func (r *Runner) runCheck(ctx context.Context, result *Result) (*Result, error) {
	sched := scheduler.New(r.Politeness)
	monResult, err := monitor.Run(ctx, r.Registry, r.Monitor, sched, r.Politeness, r.clock(), r.Rand, false)
	result.MonitorResult = monResult
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	return result, err
}

// runAcquire skips the monitor and feeds pending-initial sources (plus
// seedURLs) directly to the crawler.
func (r *Runner) runAcquire(ctx context.Context, result *Result, seedURLs []string) (*Result, error) {
	sources, err := r.Registry.List(ctx, types.SourceStatusActive, "")
	if err != nil {
		return result, err
	}
	pending := monitor.GetSourcesPendingInitial(sources)

	seen := make(map[string]bool, len(pending))
	for _, s := range pending {
		seen[s.URL] = true
	}
	for _, seed := range seedURLs {
		entry, ok, err := r.Registry.Get(ctx, seed)
		if err != nil || !ok || seen[entry.URL] {
			continue
		}
		pending = append(pending, entry)
		seen[entry.URL] = true
	}

	return result, r.acquireAll(ctx, pending, result)
}

// runFull runs the monitor, then immediately crawls whatever it
// reports as needing acquisition, within the same run.
func (r *Runner) runFull(ctx context.Context, result *Result) (*Result, error) {
	sched := scheduler.New(r.Politeness)
	monResult, err := monitor.Run(ctx, r.Registry, r.Monitor, sched, r.Politeness, r.clock(), r.Rand, false)
	result.MonitorResult = monResult
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result, err
	}

	toAcquire := append(append([]*types.SourceEntry{}, monResult.InitialNeeded...), monResult.UpdatesNeeded...)
	return result, r.acquireAll(ctx, toAcquire, result)
}

// acquireAll dispatches each source to the single-page or crawl path
// per its CrawlScope, skipping all writes when DryRun is set.
func (r *Runner) acquireAll(ctx context.Context, sources []*types.SourceEntry, result *Result) error {
	for _, source := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if r.DryRun {
			r.log().Info("dry run: would acquire", zap.String("url", source.URL), zap.Bool("crawlable", source.IsCrawlable()))
			continue
		}

		var acqResult *crawler.AcquisitionResult
		var err error
		if source.IsCrawlable() {
			acqResult, err = r.Crawler.AcquireCrawl(ctx, source)
		} else {
			acqResult, err = r.Crawler.AcquireSinglePage(ctx, source)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("acquire %s: %w", source.URL, err))
			continue
		}

		if err := r.Registry.Put(ctx, *source); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("save %s: %w", source.URL, err))
			continue
		}

		// A crawl returning zero pages with no error is still a
		// failure per §4.G — the crawler has already bumped
		// check_failures/next_check_after on source above; surface it
		// here too so callers see it in result.Errors.
		if acqResult != nil && !acqResult.Success {
			result.Errors = append(result.Errors, fmt.Errorf("acquire %s: 0 pages acquired", source.URL))
			continue
		}

		result.SourcesCrawled++
		if acqResult != nil {
			result.PagesAcquired += acqResult.PagesAcquired
		}
	}
	return nil
}

// openWorkingBranch creates "content-acquisition-<unix-ts>" off the
// base branch and repoints r.Backend's remote backend at it, so every
// write this run performs lands on an isolated branch.
func (r *Runner) openWorkingBranch(ctx context.Context) (string, error) {
	base := githubapi.WorkingRef()
	baseSHA, err := r.GitHub.GetRefSHA(ctx, base)
	if err != nil {
		return "", err
	}

	branch := fmt.Sprintf("content-acquisition-%d", r.clock().Unix())
	if err := r.GitHub.CreateBranch(ctx, branch, baseSHA); err != nil {
		return "", err
	}

	r.Backend.Set(store.NewRemote(r.GitHub, branch))
	return branch, nil
}

// finalizeWorkingBranch opens one pull request covering everything the
// run wrote, if anything was written.
func (r *Runner) finalizeWorkingBranch(ctx context.Context, branch string, result *Result) error {
	tipSHA, err := r.GitHub.GetRefSHA(ctx, branch)
	if err != nil {
		return fmt.Errorf("read working branch tip: %w", err)
	}
	baseSHA, err := r.GitHub.GetRefSHA(ctx, githubapi.WorkingRef())
	if err != nil {
		return fmt.Errorf("read base branch tip: %w", err)
	}
	if tipSHA == baseSHA {
		return nil
	}
	title := fmt.Sprintf("Content acquisition: %s", r.clock().Format("2006-01-02"))
	body := fmt.Sprintf("Automated content acquisition run.\n\nSources crawled: %d\nPages acquired: %d\n",
		result.SourcesCrawled, result.PagesAcquired)
	number, err := r.GitHub.CreatePullRequest(ctx, title, body, branch, githubapi.WorkingRef())
	if err != nil {
		return fmt.Errorf("open pull request: %w", err)
	}
	result.PullRequestURL = fmt.Sprintf("https://github.com/%s/pull/%d", r.GitHub.RepoSlug(), number)
	return nil
}

package crawler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/crawlstate"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/scheduler"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
)

// minRenderedTextLength is the static-extraction threshold below
// which the rendering fallback kicks in.
const minRenderedTextLength = 100

// saveEveryNPages is the crawl-state checkpoint cadence.
const saveEveryNPages = 10

// AcquisitionResult is the outcome of one single-page or crawl
// acquisition.
type AcquisitionResult struct {
	Success          bool
	ContentHash      string
	ContentPath      string
	PagesAcquired    int
	SkippedCount     int
	FailedCount      int
	DiscoveredCount  int
	InScopeCount     int
	OutOfScopeCount  int
	Paused           bool
}

// Crawler implements component G: single-page fetch and scope-bounded
// BFS crawl, with robots.txt compliance, politeness delay, and a
// headless-rendering fallback for thin or SPA-shaped pages.
type Crawler struct {
	httpClient  *http.Client
	backend     store.Backend
	manifest    *manifest.Manifest
	crawlStates *crawlstate.Store
	robots      *RobotsChecker
	renderer    *Renderer
	politeness  scheduler.Politeness
	userAgent   string
	clock       func() time.Time
	sleep       scheduler.Sleeper
	customScope CustomScopeFilter
}

// Config bundles a Crawler's dependencies.
type Config struct {
	HTTPClient  *http.Client
	Backend     store.Backend
	Manifest    *manifest.Manifest
	CrawlStates *crawlstate.Store
	Politeness  scheduler.Politeness
	UserAgent   string
	Clock       func() time.Time
	Sleep       scheduler.Sleeper
	CustomScope CustomScopeFilter
}

// New builds a Crawler from cfg, filling in defaults for anything left
// zero.
func New(cfg Config) *Crawler {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "content-acquisition-pipeline/1.0"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
		}
	}
	return &Crawler{
		httpClient:  cfg.HTTPClient,
		backend:     cfg.Backend,
		manifest:    cfg.Manifest,
		crawlStates: cfg.CrawlStates,
		robots:      NewRobotsChecker(cfg.HTTPClient, cfg.UserAgent),
		renderer:    NewRenderer(),
		politeness:  cfg.Politeness,
		userAgent:   cfg.UserAgent,
		clock:       cfg.Clock,
		sleep:       cfg.Sleep,
		customScope: cfg.CustomScope,
	}
}

// Close releases any headless-browser resources the rendering
// fallback may have started.
func (c *Crawler) Close() { c.renderer.Close() }

const crawlFailureBackoffBase = 6 * time.Hour
const crawlFailureBackoffMax = 7 * 24 * time.Hour

// markCheckFailure records an acquisition failure on source the same
// way the monitor phase does (§4.G): check_failures increments and
// next_check_after backs off exponentially, so a source that always
// fails to acquire (robots-blocked, dead host, ...) stops being
// retried at full priority every run.
func markCheckFailure(source *types.SourceEntry, now time.Time) {
	source.CheckFailures++
	next := now.Add(scheduler.CalculateBackoffInterval(source.CheckFailures, crawlFailureBackoffBase, crawlFailureBackoffMax))
	source.NextCheckAfter = &next
}

func (c *Crawler) politenessDelay(ctx context.Context, robotsDelay time.Duration) {
	delay := time.Duration(c.politeness.CrawlerDelaySeconds * float64(time.Second))
	if c.politeness.RespectRobotsCrawlDelay && robotsDelay > delay {
		delay = robotsDelay
	}
	if delay > 0 {
		c.sleep(ctx, delay)
	}
}

// fetchWithFallback fetches rawURL statically, then re-fetches through
// the headless renderer if the static text is too thin or the page
// looks like an SPA shell.
func (c *Crawler) fetchWithFallback(ctx context.Context, rawURL string) (*fetchedPage, bool, error) {
	page, err := c.fetchPage(ctx, rawURL)
	if err != nil {
		return nil, false, err
	}
	if len(page.Text) >= minRenderedTextLength && !looksLikeSPA(page.Body) {
		return page, false, nil
	}
	rendered, err := c.renderer.Render(ctx, rawURL)
	if err != nil {
		// Rendering fallback failing is not fatal — fall back to
		// whatever static extraction produced.
		return page, false, nil
	}
	return rendered, true, nil
}

// AcquireSinglePage implements the single-page dispatch path: fetch,
// extract, checksum, persist, update source metadata.
func (c *Crawler) AcquireSinglePage(ctx context.Context, source *types.SourceEntry) (*AcquisitionResult, error) {
	allowed, robotsDelay, err := c.robots.Allowed(ctx, source.URL)
	if err == nil && !allowed {
		markCheckFailure(source, c.clock())
		return &AcquisitionResult{Success: false, SkippedCount: 1}, fmt.Errorf("robots disallows %s", source.URL)
	}
	c.politenessDelay(ctx, robotsDelay)

	page, rendered, err := c.fetchWithFallback(ctx, source.URL)
	if err != nil {
		markCheckFailure(source, c.clock())
		return &AcquisitionResult{Success: false, FailedCount: 1}, err
	}

	now := c.clock()
	artifact, err := c.persistPage(ctx, source.URL, page, 1, rendered, now)
	if err != nil {
		markCheckFailure(source, now)
		return &AcquisitionResult{Success: false, FailedCount: 1}, err
	}

	source.LastContentHash = artifact.Checksum
	source.LastChecked = &now
	source.CheckFailures = 0
	source.TotalPagesAcquired++
	if page.ETag != "" {
		source.LastETag = page.ETag
	}
	if page.LastModified != "" {
		source.LastModifiedHeader = page.LastModified
	}

	return &AcquisitionResult{
		Success:       true,
		ContentHash:   artifact.Checksum,
		ContentPath:   artifact.Path,
		PagesAcquired: 1,
	}, nil
}

// AcquireCrawl implements the scope-bounded BFS crawl path.
func (c *Crawler) AcquireCrawl(ctx context.Context, source *types.SourceEntry) (*AcquisitionResult, error) {
	state, err := c.crawlStates.Load(ctx, source.URL)
	if err != nil {
		return nil, err
	}
	now := c.clock()
	maxPages := source.CrawlMaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	state.MarkStarted(source.URL, source.CrawlScope, maxPages, source.CrawlMaxDepth, now)

	result := &AcquisitionResult{}

	for len(state.Frontier) > 0 && state.PagesThisRun < state.MaxPages {
		if ctx.Err() != nil {
			break
		}
		next, ok := state.PopFrontier()
		if !ok {
			break
		}
		if state.VisitedSet()[next] {
			continue
		}

		allowed, robotsDelay, robotsErr := c.robots.Allowed(ctx, next)
		if robotsErr == nil && !allowed {
			result.SkippedCount++
			state.Counters.SkippedCount++
			state.MarkURLVisited(next)
			continue
		}
		c.politenessDelay(ctx, robotsDelay)

		page, rendered, fetchErr := c.fetchWithFallback(ctx, next)
		if fetchErr != nil {
			result.FailedCount++
			state.Counters.FailedCount++
			state.MarkURLVisited(next)
			continue
		}

		artifact, persistErr := c.persistPage(ctx, next, page, state.PagesThisRun+1, rendered, c.clock())
		if persistErr != nil {
			result.FailedCount++
			state.Counters.FailedCount++
			state.MarkURLVisited(next)
			continue
		}
		state.PageHashes = append(state.PageHashes, artifact.Checksum)

		var inScope []string
		for _, link := range page.Links {
			if InScope(link, source.URL, source.CrawlScope, c.customScope) {
				inScope = append(inScope, link)
				result.InScopeCount++
				state.Counters.InScopeCount++
			} else {
				result.OutOfScopeCount++
				state.Counters.OutOfScopeCount++
			}
		}
		result.DiscoveredCount += len(page.Links)
		state.Counters.DiscoveredCount += len(page.Links)
		state.AddToFrontier(inScope)

		state.MarkURLVisited(next)
		state.Counters.VisitedCount++
		state.PagesThisRun++
		result.PagesAcquired++

		if state.PagesThisRun%saveEveryNPages == 0 {
			state.LastSavedAt = c.clock()
			if err := c.crawlStates.Save(ctx, state); err != nil {
				return result, err
			}
		}
	}

	state.Completed = len(state.Frontier) == 0
	state.Paused = !state.Completed
	state.LastSavedAt = c.clock()
	if err := c.crawlStates.Save(ctx, state); err != nil {
		return result, err
	}

	result.Paused = state.Paused
	result.Success = result.PagesAcquired > 0
	if len(state.PageHashes) > 0 {
		result.ContentHash = aggregateHash(state.PageHashes)
	}

	finished := c.clock()
	source.TotalPagesAcquired += result.PagesAcquired
	if result.Success {
		source.LastContentHash = result.ContentHash
		source.LastChecked = &finished
		source.CheckFailures = 0
	} else {
		// pages_acquired == 0 is itself a failure per §4.G, even
		// though no per-page error was returned above.
		markCheckFailure(source, finished)
	}
	if state.Completed {
		source.LastCrawlCompleted = &finished
	}

	return result, nil
}

// aggregateHash combines a crawl's per-page checksums into a single
// content hash for the source: sort for determinism, join, re-hash.
func aggregateHash(pageHashes []string) string {
	sorted := append([]string(nil), pageHashes...)
	sort.Strings(sorted)
	return contentHash([]byte(strings.Join(sorted, "\n")))
}

// Package types holds the data model shared across the acquisition
// pipeline: source registry entries, manifest entries, and crawl-state
// checkpoints.
package types

import "time"

// SourceType classifies the provenance of a SourceEntry.
type SourceType string

const (
	SourceTypePrimary   SourceType = "primary"
	SourceTypeDerived   SourceType = "derived"
	SourceTypeReference SourceType = "reference"
)

// SourceStatus gates whether a source participates in scheduling.
type SourceStatus string

const (
	SourceStatusActive        SourceStatus = "active"
	SourceStatusDeprecated    SourceStatus = "deprecated"
	SourceStatusPendingReview SourceStatus = "pending_review"
)

// UpdateFrequency drives the base check interval a source is assigned.
type UpdateFrequency string

const (
	FrequencyFrequent UpdateFrequency = "frequent"
	FrequencyDaily    UpdateFrequency = "daily"
	FrequencyWeekly   UpdateFrequency = "weekly"
	FrequencyMonthly  UpdateFrequency = "monthly"
	FrequencyUnknown  UpdateFrequency = "unknown"
)

// CrawlScope bounds a multi-page crawl's reach.
type CrawlScope string

const (
	ScopePage       CrawlScope = "page"
	ScopePathPrefix CrawlScope = "path-prefix"
	ScopeHost       CrawlScope = "host"
	ScopeCustom     CrawlScope = "custom"
)

// SourceEntry is the registry's unit of record, keyed by canonical URL.
//
// Invariants (enforced by package registry, not by this struct):
// URL is canonicalized before storage and comparison; LastContentHash
// empty means "pending initial acquisition"; CheckFailures resets to
// zero on any successful check; NextCheckAfter only advances after a
// completed check or acquisition; Status == active is a precondition
// for scheduling.
type SourceEntry struct {
	URL    string       `json:"url"`
	Name   string       `json:"name"`
	Type   SourceType   `json:"source_type"`
	Status SourceStatus `json:"status"`

	LastContentHash    string          `json:"last_content_hash,omitempty"`
	LastETag           string          `json:"last_etag,omitempty"`
	LastModifiedHeader string          `json:"last_modified_header,omitempty"`
	LastChecked        *time.Time      `json:"last_checked,omitempty"`
	LastVerified       *time.Time      `json:"last_verified,omitempty"`
	UpdateFrequency    UpdateFrequency `json:"update_frequency"`

	NextCheckAfter *time.Time `json:"next_check_after,omitempty"`
	CheckFailures  int        `json:"check_failures"`

	CrawlScope          CrawlScope `json:"crawl_scope,omitempty"`
	CrawlMaxPages        int        `json:"crawl_max_pages,omitempty"`
	CrawlMaxDepth         int        `json:"crawl_max_depth,omitempty"`
	TotalPagesAcquired    int        `json:"total_pages_acquired"`
	LastCrawlCompleted    *time.Time `json:"last_crawl_completed,omitempty"`

	CredibilityScore float64  `json:"credibility_score"`
	IsOfficial       bool     `json:"is_official"`
	DiscoveredFrom   string   `json:"discovered_from,omitempty"`
	ParentSourceURL  string   `json:"parent_source_url,omitempty"`
	Topics           []string `json:"topics,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// PendingInitialAcquisition reports whether a source has never been
// successfully fetched.
func (s *SourceEntry) PendingInitialAcquisition() bool {
	return s.LastContentHash == ""
}

// IsCrawlable reports whether a source declares a multi-page scope.
func (s *SourceEntry) IsCrawlable() bool {
	return s.CrawlScope != "" && s.CrawlScope != ScopePage
}

// ManifestStatus is the terminal parse status of an artifact.
type ManifestStatus string

const (
	ManifestStatusCompleted ManifestStatus = "completed"
	ManifestStatusEmpty     ManifestStatus = "empty"
	ManifestStatusError     ManifestStatus = "error"
)

// ManifestEntry records one successfully parsed artifact, keyed by the
// SHA-256 checksum of its canonical rendered bytes.
//
// Invariants: Checksum is the authoritative key — two byte streams
// with the same checksum collapse to one entry; ExtractionComplete
// and ExtractionSkipped are mutually exclusive terminal markers; a
// record is never deleted, re-parse of the same bytes is a no-op.
type ManifestEntry struct {
	Checksum      string         `json:"checksum"`
	Source        string         `json:"source"`
	Parser        string         `json:"parser"`
	ArtifactPath  string         `json:"artifact_path"`
	ProcessedAt   time.Time      `json:"processed_at"`
	Status        ManifestStatus `json:"status"`
	Metadata      ManifestMeta   `json:"metadata"`
}

// ManifestMeta is the open-ended extraction bookkeeping map, pulled
// out into named fields since every field it actually carries is
// known up front.
type ManifestMeta struct {
	ExtractionComplete      bool       `json:"extraction_complete,omitempty"`
	ExtractionSkipped       bool       `json:"extraction_skipped,omitempty"`
	ExtractionSkippedReason string     `json:"extraction_skipped_reason,omitempty"`
	ExtractionRateLimitedAt *time.Time `json:"extraction_rate_limited_at,omitempty"`
	ExtractionLastBatchRun  *time.Time `json:"extraction_last_batch_run,omitempty"`
	Rendered                bool       `json:"rendered,omitempty"`
}

// CrawlCounters are the cumulative, durable run counters a crawl
// checkpoint carries across process restarts and resumes.
type CrawlCounters struct {
	VisitedCount    int `json:"visited_count"`
	SkippedCount    int `json:"skipped_count"`
	FailedCount     int `json:"failed_count"`
	DiscoveredCount int `json:"discovered_count"`
	InScopeCount    int `json:"in_scope_count"`
	OutOfScopeCount int `json:"out_of_scope_count"`
}

// CrawlState is a per-source resumable checkpoint: the scope it was
// opened with, the visited set, the frontier, and cumulative run
// counters. Wire format per the crawl-state file: {source_url, scope,
// max_pages, max_depth, visited, frontier, pages_this_run, counters,
// started_at, last_saved_at, completed, paused, page_hashes}.
type CrawlState struct {
	SourceURL string     `json:"source_url"`
	Scope     CrawlScope `json:"scope,omitempty"`
	MaxPages  int        `json:"max_pages,omitempty"`
	MaxDepth  int        `json:"max_depth,omitempty"`

	Visited      []string      `json:"visited"`
	Frontier     []string      `json:"frontier"`
	PagesThisRun int           `json:"pages_this_run"`
	Counters     CrawlCounters `json:"counters"`
	StartedAt    time.Time     `json:"started_at"`
	LastSavedAt  time.Time     `json:"last_saved_at"`
	Completed    bool          `json:"completed"`
	Paused       bool          `json:"paused"`
	PageHashes   []string      `json:"page_hashes"`

	visitedSet map[string]bool
}

// MarkStarted initializes a fresh crawl state for a run. scope,
// maxPages, and maxDepth only take hold the first time a given
// checkpoint is started — a resumed crawl keeps the bounds it was
// originally opened with even if the source entry has since changed.
func (c *CrawlState) MarkStarted(seed string, scope CrawlScope, maxPages, maxDepth int, now time.Time) {
	if c.Frontier == nil {
		c.Frontier = []string{seed}
	}
	if c.Scope == "" {
		c.Scope = scope
	}
	if c.MaxPages == 0 {
		c.MaxPages = maxPages
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = maxDepth
	}
	c.StartedAt = now
	c.Completed = false
	c.Paused = false
	c.PagesThisRun = 0
}

// VisitedSet lazily builds and returns the membership index for
// Visited, so repeated lookups during a crawl don't re-scan the slice.
func (c *CrawlState) VisitedSet() map[string]bool {
	if c.visitedSet == nil {
		c.visitedSet = make(map[string]bool, len(c.Visited))
		for _, u := range c.Visited {
			c.visitedSet[u] = true
		}
	}
	return c.visitedSet
}

// MarkURLVisited records a URL as visited and removes it from the
// in-memory membership index's absence (append only; no removal from
// Visited is ever needed since it is append-only by construction).
func (c *CrawlState) MarkURLVisited(url string) {
	c.Visited = append(c.Visited, url)
	c.VisitedSet()[url] = true
}

// PopFrontier removes and returns the next frontier URL, FIFO.
func (c *CrawlState) PopFrontier() (string, bool) {
	if len(c.Frontier) == 0 {
		return "", false
	}
	u := c.Frontier[0]
	c.Frontier = c.Frontier[1:]
	return u, true
}

// AddToFrontier appends unseen, unqueued URLs to the frontier.
func (c *CrawlState) AddToFrontier(urls []string) {
	queued := make(map[string]bool, len(c.Frontier))
	for _, u := range c.Frontier {
		queued[u] = true
	}
	visited := c.VisitedSet()
	for _, u := range urls {
		if visited[u] || queued[u] {
			continue
		}
		c.Frontier = append(c.Frontier, u)
		queued[u] = true
	}
}

// Package extract implements the extraction driver (component I): it
// walks the parsed-artifact manifest and, for every entry that has
// been parsed but not yet mined for entities, runs an assessment pass
// followed by sequential entity extraction against an opaque
// Extractor capability.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/errs"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
	"go.uber.org/zap"
)

// EntityKind names one of the four entity families the driver mines
// in sequence.
type EntityKind string

const (
	KindPeople         EntityKind = "people"
	KindOrganizations  EntityKind = "organizations"
	KindConcepts       EntityKind = "concepts"
	KindAssociations   EntityKind = "associations"
)

// entityOrder is the sequence §4.I requires: people, organizations,
// concepts, associations.
var entityOrder = []EntityKind{KindPeople, KindOrganizations, KindConcepts, KindAssociations}

// AssessmentResult is the opaque assess() call's verdict on whether an
// artifact is worth mining.
type AssessmentResult struct {
	IsSubstantive bool
	Reason        string
	Confidence    float64
}

// EntityRecord is one extracted entity, in whatever shape the
// concrete Extractor implementation produces — the driver treats it
// as opaque payload, persisting it verbatim under the knowledge-graph
// prefix.
type EntityRecord map[string]any

// Extractor is the capability the driver calls against. Concrete
// implementations (package llmextractor and friends) wrap an LLM or
// other classification backend behind this interface so the driver
// never depends on a specific provider.
type Extractor interface {
	Assess(ctx context.Context, checksum string, body []byte) (AssessmentResult, error)
	Extract(ctx context.Context, checksum string, kind EntityKind, body []byte) ([]EntityRecord, error)
}

// RateLimitExitCode is the distinguishable exit status a caller's
// workflow uses to schedule a retry, per spec.md §6.
const RateLimitExitCode = 42

// Driver walks the manifest and runs assessment + extraction for each
// eligible entry.
type Driver struct {
	manifest  *manifest.Manifest
	backend   store.Backend
	extractor Extractor
	log       *zap.Logger
	clock     func() time.Time

	// pendingWrites accumulates entity-kind JSON files across the
	// batch window, alongside the manifest's own deferred Put calls,
	// so flushPending lands them in one PutBatch commit.
	pendingWrites []store.FileWrite
}

// New builds a Driver. clock defaults to time.Now when nil.
func New(m *manifest.Manifest, backend store.Backend, extractor Extractor, log *zap.Logger, clock func() time.Time) *Driver {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{manifest: m, backend: backend, extractor: extractor, log: log.With(zap.String("component", "extraction")), clock: clock}
}

// Result summarizes one Run.
type Result struct {
	Assessed      int
	Skipped       int
	Extracted     int
	RateLimited   bool
	RateLimitedAt *string
}

// ErrRateLimited is returned by Run (wrapping errs.ErrRateLimited)
// when an extractor signals a rate-limit condition; RateLimitExitCode
// is the status a CLI entrypoint should translate this into.
var ErrRateLimited = errs.ErrRateLimited

// eligible reports whether entry should be picked up by this walk:
// parsed successfully, not yet marked complete, not yet marked
// skipped.
func eligible(e types.ManifestEntry) bool {
	return e.Status == types.ManifestStatusCompleted &&
		!e.Metadata.ExtractionComplete &&
		!e.Metadata.ExtractionSkipped
}

// Run walks every eligible manifest entry, in manifest batch mode, and
// flushes once at the end (or immediately on a rate-limit signal).
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	entries, err := d.manifest.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manifest entries: %w", err)
	}

	d.manifest.BeginBatch()
	result := &Result{}

	for _, entry := range entries {
		if !eligible(entry) {
			continue
		}

		body, ok, err := d.backend.Get(ctx, entry.ArtifactPath)
		if err != nil {
			return result, fmt.Errorf("read artifact %s: %w", entry.ArtifactPath, err)
		}
		if !ok {
			d.log.Warn("artifact missing for manifest entry", zap.String("checksum", entry.Checksum), zap.String("path", entry.ArtifactPath))
			continue
		}

		assessment, err := d.extractor.Assess(ctx, entry.Checksum, body)
		if err != nil {
			if d.handleRateLimit(ctx, &entry, result, err) {
				return result, fmt.Errorf("%w: assessment rate-limited", ErrRateLimited)
			}
			return result, fmt.Errorf("assess %s: %w", entry.Checksum, err)
		}
		result.Assessed++

		if !assessment.IsSubstantive {
			entry.Metadata.ExtractionSkipped = true
			entry.Metadata.ExtractionSkippedReason = assessment.Reason
			if err := d.manifest.Put(ctx, entry); err != nil {
				return result, err
			}
			result.Skipped++
			continue
		}

		if err := d.extractEntities(ctx, &entry, body, result); err != nil {
			if d.handleRateLimit(ctx, &entry, result, err) {
				return result, fmt.Errorf("%w: extraction rate-limited", ErrRateLimited)
			}
			return result, err
		}

		entry.Metadata.ExtractionComplete = true
		if err := d.manifest.Put(ctx, entry); err != nil {
			return result, err
		}
		result.Extracted++
	}

	if err := d.flushPending(ctx, fmt.Sprintf("extract: %d documents", result.Extracted)); err != nil {
		return result, fmt.Errorf("flush extraction batch: %w", err)
	}
	return result, nil
}

// extractEntities runs the four entity families in sequence,
// persisting each under the knowledge-graph prefix keyed by checksum.
func (d *Driver) extractEntities(ctx context.Context, entry *types.ManifestEntry, body []byte, result *Result) error {
	for _, kind := range entityOrder {
		records, err := d.extractor.Extract(ctx, entry.Checksum, kind, body)
		if err != nil {
			return err
		}
		if err := d.persistEntities(entry.Checksum, kind, records); err != nil {
			return err
		}
	}
	return nil
}

// persistEntities stages the entity-kind document in d.pendingWrites
// rather than writing it directly — flushPending lands it together
// with the manifest's own batch and every other staged kind in one
// commit (see internal/registry's record+index PutBatch for the same
// pattern).
func (d *Driver) persistEntities(checksum string, kind EntityKind, records []EntityRecord) error {
	path := fmt.Sprintf("knowledge-graph/%s/%s.json", kind, checksum)
	doc := map[string]any{
		"source_checksum": checksum,
		string(kind):       records,
		"extracted_at":     d.clock().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s entities for %s: %w", kind, checksum, err)
	}
	d.pendingWrites = append(d.pendingWrites, store.FileWrite{Path: path, Data: data})
	return nil
}

// flushPending commits every staged entity write together with the
// manifest's own deferred batch in a single PutBatch call, so an
// N-document extraction run produces one coherent change set instead
// of one commit per entity kind per document.
func (d *Driver) flushPending(ctx context.Context, message string) error {
	manifestWrite, err := d.manifest.PendingWrite(ctx)
	if err != nil {
		return err
	}
	writes := d.pendingWrites
	d.pendingWrites = nil
	if manifestWrite != nil {
		writes = append(writes, *manifestWrite)
	}
	d.manifest.DiscardBatch()
	if len(writes) == 0 {
		return nil
	}
	return d.backend.PutBatch(ctx, writes, message)
}

// handleRateLimit records the rate-limit marker and flushes everything
// staged so far when err signals a rate limit, reporting whether it
// did so.
func (d *Driver) handleRateLimit(ctx context.Context, entry *types.ManifestEntry, result *Result, err error) bool {
	if !errors.Is(err, errs.ErrRateLimited) {
		return false
	}
	now := d.clock()
	entry.Metadata.ExtractionRateLimitedAt = &now
	if putErr := d.manifest.Put(ctx, *entry); putErr != nil {
		d.log.Error("failed to record rate-limit marker", zap.Error(putErr))
	}
	if flushErr := d.flushPending(ctx, "extract: rate-limit checkpoint"); flushErr != nil {
		d.log.Error("failed to flush batch after rate limit", zap.Error(flushErr))
	}
	result.RateLimited = true
	stamp := now.UTC().Format(time.RFC3339)
	result.RateLimitedAt = &stamp
	return true
}

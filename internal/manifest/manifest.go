// Package manifest implements the parsed-artifact manifest (component
// C): an append-mostly mapping from content-hash to artifact location
// and extraction status, with an at-most-once extraction invariant.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/terrencegiggy/content-pipeline/internal/errs"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
)

const manifestPath = "manifest.json"
const manifestVersion = 1

type onDisk struct {
	Version int                            `json:"version"`
	Entries map[string]types.ManifestEntry `json:"entries"`
}

// Manifest is backed by any store.Backend. Batch mode defers writes
// so the extraction driver can process N documents and commit one
// coherent change set.
type Manifest struct {
	backend store.Backend

	batching bool
	pending  map[string]types.ManifestEntry
}

// New wraps backend as a parsed-artifact manifest.
func New(backend store.Backend) *Manifest {
	return &Manifest{backend: backend}
}

func (m *Manifest) load(ctx context.Context) (*onDisk, error) {
	data, ok, err := m.backend.Get(ctx, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if !ok {
		return &onDisk{Version: manifestVersion, Entries: map[string]types.ManifestEntry{}}, nil
	}
	var doc onDisk
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", errs.ErrInvariantViolation, err)
	}
	if doc.Version != manifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", errs.ErrInvariantViolation, doc.Version)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]types.ManifestEntry{}
	}
	return &doc, nil
}

// Get returns the entry for checksum, or (nil, false, nil) if absent.
func (m *Manifest) Get(ctx context.Context, checksum string) (*types.ManifestEntry, bool, error) {
	if m.batching {
		if e, ok := m.pending[checksum]; ok {
			return &e, true, nil
		}
	}
	doc, err := m.load(ctx)
	if err != nil {
		return nil, false, err
	}
	e, ok := doc.Entries[checksum]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put upserts entry. In batch mode the write is deferred to Flush; a
// re-parse of previously-seen bytes is always a no-op overwrite of
// the same checksum key, never a new record.
func (m *Manifest) Put(ctx context.Context, entry types.ManifestEntry) error {
	if m.batching {
		m.pending[entry.Checksum] = entry
		return nil
	}
	doc, err := m.load(ctx)
	if err != nil {
		return err
	}
	doc.Entries[entry.Checksum] = entry
	return m.write(ctx, doc)
}

// All returns every entry, for the extraction driver's walk.
func (m *Manifest) All(ctx context.Context) ([]types.ManifestEntry, error) {
	doc, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.ManifestEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		out = append(out, e)
	}
	return out, nil
}

// BeginBatch enters batch mode: subsequent Put calls defer their
// write until Flush.
func (m *Manifest) BeginBatch() {
	m.batching = true
	m.pending = make(map[string]types.ManifestEntry)
}

// Flush writes every deferred entry in one atomic commit and exits
// batch mode. A no-op if BeginBatch was never called or nothing was
// deferred.
func (m *Manifest) Flush(ctx context.Context) error {
	if !m.batching {
		return nil
	}
	pending := m.pending
	m.batching = false
	m.pending = nil

	if len(pending) == 0 {
		return nil
	}

	doc, err := m.load(ctx)
	if err != nil {
		return err
	}
	for checksum, entry := range pending {
		doc.Entries[checksum] = entry
	}
	return m.write(ctx, doc)
}

// PendingWrite computes the merged manifest document for every
// deferred Put without writing it, so a caller can fold the manifest
// write into a larger PutBatch alongside other files instead of
// committing it separately via Flush. Returns nil if batch mode isn't
// active or nothing is pending.
func (m *Manifest) PendingWrite(ctx context.Context) (*store.FileWrite, error) {
	if !m.batching || len(m.pending) == 0 {
		return nil, nil
	}
	doc, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	for checksum, entry := range m.pending {
		doc.Entries[checksum] = entry
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return &store.FileWrite{Path: manifestPath, Data: data}, nil
}

// DiscardBatch exits batch mode without writing — for a caller that
// has already folded PendingWrite's result into its own commit.
func (m *Manifest) DiscardBatch() {
	m.batching = false
	m.pending = nil
}

func (m *Manifest) write(ctx context.Context, doc *onDisk) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return m.backend.Put(ctx, manifestPath, data, "manifest: update")
}

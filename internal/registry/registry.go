// Package registry implements the source registry (component B): a
// persistent set of SourceEntry records keyed by canonical URL, with
// an index file so List does not require scanning every record.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/terrencegiggy/content-pipeline/internal/urlcanon"
)

const indexPath = "sources/index.json"

// IndexEntry is one row of the registry's index file.
type IndexEntry struct {
	URL    string            `json:"url"`
	Name   string            `json:"name"`
	Type   types.SourceType  `json:"source_type"`
	Status types.SourceStatus `json:"status"`
	Hash   string            `json:"hash"`
}

// Registry is backed by any store.Backend.
type Registry struct {
	backend store.Backend
}

// New wraps backend as a source registry.
func New(backend store.Backend) *Registry {
	return &Registry{backend: backend}
}

// hashOf returns the short stable hash of a canonical URL used as the
// source record's filename.
func hashOf(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:12]
}

func recordPath(hash string) string {
	return fmt.Sprintf("sources/%s.json", hash)
}

// Get returns the entry for url, or (nil, false, nil) if absent.
func (r *Registry) Get(ctx context.Context, rawURL string) (*types.SourceEntry, bool, error) {
	canon, err := urlcanon.URL(rawURL)
	if err != nil {
		return nil, false, err
	}
	data, ok, err := r.backend.Get(ctx, recordPath(hashOf(canon)))
	if err != nil || !ok {
		return nil, false, err
	}
	var entry types.SourceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode source record %s: %w", canon, err)
	}
	return &entry, true, nil
}

// Exists reports whether url is present in the registry.
func (r *Registry) Exists(ctx context.Context, rawURL string) (bool, error) {
	canon, err := urlcanon.URL(rawURL)
	if err != nil {
		return false, err
	}
	return r.backend.Exists(ctx, recordPath(hashOf(canon)))
}

// Put upserts entry, canonicalizing its URL, and appends/updates the
// index in the same atomic batch in remote mode.
func (r *Registry) Put(ctx context.Context, entry types.SourceEntry) error {
	canon, err := urlcanon.URL(entry.URL)
	if err != nil {
		return err
	}
	entry.URL = canon
	hash := hashOf(canon)

	recordData, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode source record %s: %w", canon, err)
	}

	index, err := r.loadIndex(ctx)
	if err != nil {
		return err
	}
	index = upsertIndex(index, IndexEntry{
		URL: canon, Name: entry.Name, Type: entry.Type, Status: entry.Status, Hash: hash,
	})
	indexData, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry index: %w", err)
	}

	return r.backend.PutBatch(ctx, []store.FileWrite{
		{Path: recordPath(hash), Data: recordData},
		{Path: indexPath, Data: indexData},
	}, fmt.Sprintf("registry: upsert %s", canon))
}

// Delete soft-deletes url by flipping its status to deprecated.
func (r *Registry) Delete(ctx context.Context, rawURL string) error {
	entry, ok, err := r.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", rawURL, errNotFound)
	}
	entry.Status = types.SourceStatusDeprecated
	return r.Put(ctx, *entry)
}

// List returns entries matching status and sourceType, both optional
// (empty string matches any), ordered by canonical URL.
func (r *Registry) List(ctx context.Context, status types.SourceStatus, sourceType types.SourceType) ([]types.SourceEntry, error) {
	index, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	var out []types.SourceEntry
	for _, row := range index {
		if status != "" && row.Status != status {
			continue
		}
		if sourceType != "" && row.Type != sourceType {
			continue
		}
		data, ok, err := r.backend.Get(ctx, recordPath(row.Hash))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var entry types.SourceEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("decode source record %s: %w", row.URL, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *Registry) loadIndex(ctx context.Context) ([]IndexEntry, error) {
	data, ok, err := r.backend.Get(ctx, indexPath)
	if err != nil {
		return nil, fmt.Errorf("load registry index: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var index []IndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode registry index: %w", err)
	}
	return index, nil
}

func upsertIndex(index []IndexEntry, row IndexEntry) []IndexEntry {
	for i, existing := range index {
		if existing.URL == row.URL {
			index[i] = row
			return index
		}
	}
	index = append(index, row)
	sort.Slice(index, func(i, j int) bool { return index[i].URL < index[j].URL })
	return index
}

var errNotFound = fmt.Errorf("source not found")

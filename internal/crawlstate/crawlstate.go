// Package crawlstate implements the crawl-state store (component D):
// per-source resumable crawl checkpoints, one JSON file per source.
package crawlstate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
)

// Store is backed by any store.Backend, with an optional SQLite
// read-through Cache in front of it.
type Store struct {
	backend store.Backend
	cache   *Cache
}

// New wraps backend as a crawl-state store.
func New(backend store.Backend) *Store {
	return &Store{backend: backend}
}

// WithCache attaches a local read-through Cache, returning the same
// Store for chaining at the call site.
func (s *Store) WithCache(cache *Cache) *Store {
	s.cache = cache
	return s
}

func path(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return fmt.Sprintf("crawl-state/%s.json", hex.EncodeToString(sum[:])[:12])
}

// Load returns the checkpoint for sourceURL, or a fresh zero-value
// state if none exists yet. The cache, if attached, is consulted
// first; a miss falls back to the backend and repopulates it.
func (s *Store) Load(ctx context.Context, sourceURL string) (*types.CrawlState, error) {
	if s.cache != nil {
		if state, ok, err := s.cache.Get(sourceURL); err == nil && ok {
			return state, nil
		}
	}

	data, ok, err := s.backend.Get(ctx, path(sourceURL))
	if err != nil {
		return nil, fmt.Errorf("load crawl state for %s: %w", sourceURL, err)
	}
	if !ok {
		return &types.CrawlState{SourceURL: sourceURL}, nil
	}
	var state types.CrawlState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode crawl state for %s: %w", sourceURL, err)
	}
	if s.cache != nil {
		s.cache.Put(&state)
	}
	return &state, nil
}

// Save persists state unconditionally. Callers throttle the cadence
// (every 10 pages during a crawl, per §4.D); Save itself always
// writes. The backend write is the one that can fail the call; the
// cache mirror is best-effort.
func (s *Store) Save(ctx context.Context, state *types.CrawlState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode crawl state for %s: %w", state.SourceURL, err)
	}
	if err := s.backend.Put(ctx, path(state.SourceURL), data, fmt.Sprintf("crawl-state: save %s", state.SourceURL)); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Put(state)
	}
	return nil
}

// Delete removes the checkpoint for sourceURL by overwriting it with
// an empty completed state — the durable store adapter offers no
// delete primitive, only put, so "delete" here means "reset to a
// fresh, non-resumable state".
func (s *Store) Delete(ctx context.Context, sourceURL string) error {
	return s.Save(ctx, &types.CrawlState{SourceURL: sourceURL, Completed: true})
}

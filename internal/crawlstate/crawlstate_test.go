package crawlstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	s := New(backend)

	state := &types.CrawlState{
		SourceURL: "https://example.com/",
		Scope:     types.ScopeHost,
		MaxPages:  25,
		MaxDepth:  3,
		Frontier:  []string{"https://example.com/a"},
		Counters: types.CrawlCounters{
			VisitedCount:    2,
			DiscoveredCount: 5,
			InScopeCount:    3,
			OutOfScopeCount: 2,
		},
		StartedAt: time.Unix(1000, 0).UTC(),
	}
	require.NoError(t, s.Save(context.Background(), state))

	loaded, err := s.Load(context.Background(), "https://example.com/")
	require.NoError(t, err)

	if diff := cmp.Diff(state, loaded, cmpopts.IgnoreUnexported(types.CrawlState{})); diff != "" {
		t.Errorf("loaded crawl state differs from saved (-want +got):\n%s", diff)
	}
}

func TestStore_CacheServesWithoutHittingBackend(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	s := New(backend).WithCache(cache)

	state := &types.CrawlState{SourceURL: "https://example.com/", Scope: types.ScopePathPrefix, MaxPages: 10}
	require.NoError(t, s.Save(context.Background(), state))

	cached, ok, err := cache.Get("https://example.com/")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.ScopePathPrefix, cached.Scope)
	require.Equal(t, 10, cached.MaxPages)
}

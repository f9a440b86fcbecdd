package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/errs"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/stretchr/testify/require"
)

// fakeExtractor drives assessment/extraction behavior from a checksum
// keyed map, so each test can script exactly one scenario.
type fakeExtractor struct {
	substantive map[string]bool
	rateLimitOn string // checksum at which Extract returns errs.ErrRateLimited
	extractErr  error
}

func (f *fakeExtractor) Assess(_ context.Context, checksum string, _ []byte) (AssessmentResult, error) {
	substantive := f.substantive[checksum]
	return AssessmentResult{IsSubstantive: substantive, Reason: "test", Confidence: 1}, nil
}

func (f *fakeExtractor) Extract(_ context.Context, checksum string, kind EntityKind, _ []byte) ([]EntityRecord, error) {
	if f.rateLimitOn != "" && checksum == f.rateLimitOn {
		return nil, fmt.Errorf("rate limited: %w", errs.ErrRateLimited)
	}
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return []EntityRecord{{"kind": string(kind), "name": "x"}}, nil
}

func newTestDriver(t *testing.T, extractor Extractor) (*Driver, *manifest.Manifest, store.Backend) {
	t.Helper()
	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	mani := manifest.New(backend)
	return New(mani, backend, extractor, nil, func() time.Time { return time.Unix(0, 0) }), mani, backend
}

func seedEntry(t *testing.T, backend store.Backend, mani *manifest.Manifest, checksum, body string) {
	t.Helper()
	path := fmt.Sprintf("artifacts/%s.txt", checksum)
	require.NoError(t, backend.Put(context.Background(), path, []byte(body), "seed"))
	require.NoError(t, mani.Put(context.Background(), types.ManifestEntry{
		Checksum:     checksum,
		ArtifactPath: path,
		Status:       types.ManifestStatusCompleted,
	}))
}

func TestDriver_SkipsNonSubstantiveEntries(t *testing.T) {
	extractor := &fakeExtractor{substantive: map[string]bool{"a": false}}
	driver, mani, backend := newTestDriver(t, extractor)
	seedEntry(t, backend, mani, "a", "not much here")

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Assessed)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, result.Extracted)

	entry, ok, err := mani.Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, entry.Metadata.ExtractionSkipped)
}

func TestDriver_ExtractsEveryEntityKindForSubstantiveEntry(t *testing.T) {
	extractor := &fakeExtractor{substantive: map[string]bool{"a": true}}
	driver, mani, backend := newTestDriver(t, extractor)
	seedEntry(t, backend, mani, "a", "a full article about something")

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Extracted)

	entry, ok, err := mani.Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, entry.Metadata.ExtractionComplete)

	for _, kind := range entityOrder {
		data, ok, err := backend.Get(context.Background(), fmt.Sprintf("knowledge-graph/%s/a.json", kind))
		require.NoError(t, err)
		require.True(t, ok, "expected persisted entities for kind %s", kind)
		require.Contains(t, string(data), string(kind))
	}
}

func TestDriver_SkipsAlreadyCompletedEntries(t *testing.T) {
	extractor := &fakeExtractor{substantive: map[string]bool{"a": true}}
	driver, mani, backend := newTestDriver(t, extractor)
	seedEntry(t, backend, mani, "a", "body")

	entry, _, err := mani.Get(context.Background(), "a")
	require.NoError(t, err)
	entry.Metadata.ExtractionComplete = true
	require.NoError(t, mani.Put(context.Background(), *entry))

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Assessed)
	require.Equal(t, 0, result.Extracted)
}

func TestDriver_RateLimitStopsAndFlushesPartialProgress(t *testing.T) {
	extractor := &fakeExtractor{
		substantive: map[string]bool{"a": true, "b": true},
		rateLimitOn: "b",
	}
	driver, mani, backend := newTestDriver(t, extractor)
	seedEntry(t, backend, mani, "a", "first body")
	seedEntry(t, backend, mani, "b", "second body")

	result, err := driver.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrRateLimited)
	require.True(t, result.RateLimited)
	require.NotNil(t, result.RateLimitedAt)

	entryB, ok, err := mani.Get(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, entryB.Metadata.ExtractionRateLimitedAt)
}

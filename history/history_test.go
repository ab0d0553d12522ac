package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test history store
func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err, "should create history store")
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string {
	return &s
}

// TestNew_CreatesDatabase verifies a fresh ledger is empty
func TestNew_CreatesDatabase(t *testing.T) {
	store := createTestStore(t)

	runs, err := store.ListRuns(0)

	require.NoError(t, err)
	assert.Empty(t, runs)
}

// TestStartAndFinishRun verifies run lifecycle
func TestStartAndFinishRun(t *testing.T) {
	store := createTestStore(t)
	started := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)

	run, err := store.StartRun(started)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.RunID)

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Nil(t, got.FinishedAt, "unfinished run has no finish time")

	stats := RunStats{SourcesSynced: 2, SourcesFailed: 1, ListingsSaved: 2, DetailsSaved: 9, DetailsFailed: 1, DetailsSkipped: 3}
	require.NoError(t, store.FinishRun(run.RunID, started.Add(time.Minute), stats))

	got, err = store.GetRun(run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(started.Add(time.Minute)))
	assert.Equal(t, stats, got.RunStats)
}

// TestGetRun_NotFound verifies the sentinel for unknown runs
func TestGetRun_NotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.GetRun(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = store.FinishRun(uuid.New(), time.Now(), RunStats{})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestListRuns verifies newest-first ordering and limits
func TestListRuns(t *testing.T) {
	store := createTestStore(t)
	base := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run, err := store.StartRun(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, err)
		ids = append(ids, run.RunID)
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[0], runs[2].RunID)

	runs, err = store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

// TestListRuns_OrdersByInstant verifies ordering holds across whole-second
// times, fractional times and zone offsets
func TestListRuns_OrdersByInstant(t *testing.T) {
	store := createTestStore(t)
	plus8 := time.FixedZone("MYT", 8*60*60)

	// 16:30 MYT is 08:30 UTC, the latest of the three.
	starts := []time.Time{
		time.Date(2026, 1, 25, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 25, 8, 0, 0, 100_000_000, time.UTC),
		time.Date(2026, 1, 25, 16, 30, 0, 0, plus8),
	}

	var ids []uuid.UUID
	for _, started := range starts {
		run, err := store.StartRun(started)
		require.NoError(t, err)
		ids = append(ids, run.RunID)
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{runs[0].RunID, runs[1].RunID, runs[2].RunID})
	assert.True(t, runs[0].StartedAt.Equal(starts[2]))
}

// TestRecordAndListFetches verifies attempts are stored in order and filter
func TestRecordAndListFetches(t *testing.T) {
	store := createTestStore(t)
	run, err := store.StartRun(time.Now())
	require.NoError(t, err)

	require.NoError(t, store.RecordFetch(Fetch{
		RunID: run.RunID, Source: "a", Kind: KindListing, URL: "https://a.com/",
		Status: StatusSaved, Path: strPtr("/data/a/original/scrape.json"),
	}))
	require.NoError(t, store.RecordFetch(Fetch{
		RunID: run.RunID, Source: "a", Kind: KindDetail, URL: "https://a.com/1",
		Status: StatusFailed, Error: strPtr("500 Internal Server Error"),
	}))
	require.NoError(t, store.RecordFetch(Fetch{
		RunID: run.RunID, Source: "b", Kind: KindDetail, URL: "https://b.com/1",
		Status: StatusSkipped,
	}))

	all, err := store.ListFetches(run.RunID, FetchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, KindListing, all[0].Kind)
	require.NotNil(t, all[0].Path)
	assert.Equal(t, "/data/a/original/scrape.json", *all[0].Path)
	assert.Nil(t, all[0].Error)
	require.NotNil(t, all[1].Error)
	assert.False(t, all[2].FetchedAt.IsZero(), "zero time should default to now")

	failed, err := store.ListFetches(run.RunID, FetchFilter{Status: strPtr(StatusFailed)})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://a.com/1", failed[0].URL)

	details, err := store.ListFetches(run.RunID, FetchFilter{Source: strPtr("a"), Kind: strPtr(KindDetail)})
	require.NoError(t, err)
	assert.Len(t, details, 1)

	other, err := store.ListFetches(uuid.New(), FetchFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

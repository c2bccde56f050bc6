package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	key := Key{DocumentID: "doc-1", ChunkIndex: 0, SourceHash: Hash("hello"), TargetLanguage: "zh"}

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, key, "你好"))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "你好", got)

	// changed source text is a miss
	stale := key
	stale.SourceHash = Hash("hello, world")
	_, ok, err = store.Get(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)

	// other target language is a separate entry
	other := key
	other.TargetLanguage = "ja"
	_, ok, err = store.Get(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)

	// overwrite on hash change
	require.NoError(t, store.Put(ctx, stale, "你好，世界"))
	got, ok, err = store.Get(ctx, stale)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "你好，世界", got)
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, Key{DocumentID: "doc-1", ChunkIndex: 2, SourceHash: "h2", TargetLanguage: "zh"}, "二"))
	entries, err := store.ListDocument(ctx, "doc-1", "zh")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].ChunkIndex)
	assert.Equal(t, 2, entries[1].ChunkIndex)
}

func TestSQLiteStore_Contract(t *testing.T) {
	t.Parallel()
	store, _ := newTestSQLiteStore(t)
	storeContract(t, store)
}

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()
	key := Key{DocumentID: "doc", ChunkIndex: 3, SourceHash: Hash("x"), TargetLanguage: "zh"}

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, "译"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "译", got)
}

func TestSQLiteStore_ConcurrentDocuments(t *testing.T) {
	t.Parallel()

	store, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for d := 0; d < 4; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			for c := 0; c < 10; c++ {
				key := Key{DocumentID: fmt.Sprintf("doc-%d", d), ChunkIndex: c, SourceHash: "h", TargetLanguage: "zh"}
				assert.NoError(t, store.Put(ctx, key, fmt.Sprintf("%d-%d", d, c)))
			}
		}(d)
	}
	wg.Wait()

	for d := 0; d < 4; d++ {
		entries, err := store.ListDocument(ctx, fmt.Sprintf("doc-%d", d), "zh")
		require.NoError(t, err)
		assert.Len(t, entries, 10)
	}
}

func TestSQLiteStore_Runs(t *testing.T) {
	t.Parallel()

	store, _ := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, RunRecord{RunID: "a", StartedAt: base, FinishedAt: base.Add(time.Minute), Succeeded: 2, Report: []byte(`{"run_id":"a"}`)}))
	require.NoError(t, store.SaveRun(ctx, RunRecord{RunID: "b", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(2 * time.Hour), Failed: 1, Report: []byte(`{"run_id":"b"}`)}))
	require.NoError(t, store.SaveRun(ctx, RunRecord{RunID: "a", StartedAt: base, FinishedAt: base.Add(time.Minute), Succeeded: 3, Report: []byte(`{"run_id":"a"}`)}))
	require.Error(t, store.SaveRun(ctx, RunRecord{}))

	runs, err := store.LoadRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID)
	assert.Equal(t, "a", runs[1].RunID)
	assert.Equal(t, 3, runs[1].Succeeded)
	assert.JSONEq(t, `{"run_id":"a"}`, string(runs[1].Report))
	assert.True(t, base.Equal(runs[1].StartedAt))

	limited, err := store.LoadRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNopStore(t *testing.T) {
	t.Parallel()

	var s Store = NopStore{}
	require.NoError(t, s.Put(context.Background(), Key{DocumentID: "d"}, "x"))
	_, ok, err := s.Get(context.Background(), Key{DocumentID: "d"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentLocks_SerializesSameDocument(t *testing.T) {
	t.Parallel()

	locks := NewDocumentLocks()
	unlockA := locks.Lock("a")

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := locks.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	// a different document is not blocked
	unlockB := locks.Lock("b")
	unlockB()

	select {
	case <-acquired:
		t.Fatal("second lock on the same document acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released")
	}
	<-released

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}

func TestHash(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash(""), 64)
}

func TestMigrationVersion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}

package tracking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(names ...string) Snapshot {
	rows := make([]ViewRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, ViewRow{StudentName: name, DerivedStatus: StatusSubmitted})
	}
	return Snapshot{Variant: VariantSubmission, Rows: rows}
}

func TestStoreRejectsOutOfOrderCommit(t *testing.T) {
	store := NewStore(0)
	key := Key(1, VariantSubmission)

	first := store.Begin(key)
	second := store.Begin(key)

	require.True(t, store.Commit(second, snapshotOf("fresh")))
	require.False(t, store.Commit(first, snapshotOf("stale")))

	snapshot, ok := store.Load(key)
	require.True(t, ok)
	require.Equal(t, "fresh", snapshot.Rows[0].StudentName)
}

func TestStoreInvalidateRejectsInFlightFetch(t *testing.T) {
	store := NewStore(0)
	key := Key(2, VariantGrading)

	ticket := store.Begin(key)
	store.Invalidate(key)
	require.False(t, store.Commit(ticket, snapshotOf("before-change")))

	_, ok := store.Load(key)
	require.False(t, ok)

	next := store.Begin(key)
	require.True(t, store.Commit(next, snapshotOf("after-change")))
	_, ok = store.Load(key)
	require.True(t, ok)
}

func TestStoreExpiresSnapshots(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(time.Minute)
	store.now = func() time.Time { return now }

	key := Key(3, VariantSubmission)
	require.True(t, store.Commit(store.Begin(key), snapshotOf("a")))

	_, ok := store.Load(key)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = store.Load(key)
	require.False(t, ok)
}

func TestStoreConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	store := NewStore(0)
	key := Key(4, VariantSubmission)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Commit(store.Begin(key), snapshotOf("x", "y", "z"))
				if snapshot, ok := store.Load(key); ok {
					assert.Len(t, snapshot.Rows, 3)
				}
			}
		}()
	}
	wg.Wait()
}

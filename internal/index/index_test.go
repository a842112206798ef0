package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_LookupMiss(t *testing.T) {
	idx := New(1)

	_, gen, ok := idx.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), gen)
}

func TestWriter_SetThenRefreshIsVisible(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)

	w.Set("a", Entry{Generation: 1, Start: 0, End: 10}, 0)
	_, _, ok := idx.Lookup("a")
	require.False(t, ok, "staged mutation must not be visible before Refresh")

	w.Refresh()

	entry, gen, ok := idx.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Entry{Generation: 1, Start: 0, End: 10}, entry)
	assert.Equal(t, uint64(1), gen)
}

func TestWriter_SetSupersedesAndTracksStaleBytes(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)

	w.Set("a", Entry{Generation: 1, Start: 0, End: 10}, 0)
	w.Refresh()
	assert.Equal(t, int64(0), idx.StaleBytes())

	w.Set("a", Entry{Generation: 1, Start: 10, End: 25}, 10)
	w.Refresh()

	entry, _, ok := idx.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Entry{Generation: 1, Start: 10, End: 25}, entry)
	assert.Equal(t, int64(10), idx.StaleBytes())
}

func TestWriter_DeleteRemovesKeyAndTracksStaleBytes(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)

	w.Set("a", Entry{Generation: 1, Start: 0, End: 5}, 0)
	w.Refresh()

	w.Delete("a", 5)
	w.Refresh()

	_, _, ok := idx.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, int64(5), idx.StaleBytes())
}

func TestWriter_SetGeneration(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)

	w.SetGeneration(2)
	w.Refresh()

	assert.Equal(t, uint64(2), idx.Generation())
}

func TestWriter_ReplaceAllResetsStaleBytesAndEntries(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)

	w.Set("a", Entry{Generation: 1, Start: 0, End: 5}, 0)
	w.Set("b", Entry{Generation: 1, Start: 5, End: 10}, 0)
	w.Refresh()
	w.Delete("b", 5)
	w.Refresh()
	require.Equal(t, int64(5), idx.StaleBytes())

	w.ReplaceAll(map[string]Entry{
		"a": {Generation: 2, Start: 0, End: 5},
	}, 2)
	w.Refresh()

	assert.Equal(t, int64(0), idx.StaleBytes())
	assert.Equal(t, uint64(2), idx.Generation())
	assert.Equal(t, 1, idx.Len())

	entry, _, ok := idx.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Entry{Generation: 2, Start: 0, End: 5}, entry)

	_, _, ok = idx.Lookup("b")
	assert.False(t, ok)
}

func TestIndex_SnapshotIsACopy(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)
	w.Set("a", Entry{Generation: 1, Start: 0, End: 5}, 0)
	w.Refresh()

	snap := idx.Snapshot()
	require.Len(t, snap, 1)

	snap["b"] = Entry{Generation: 1, Start: 5, End: 10}
	assert.Equal(t, 1, idx.Len(), "mutating a snapshot must not affect the index")
}

func TestIndex_ConcurrentReadsDoNotRace(t *testing.T) {
	idx := New(1)
	w := NewWriter(idx)
	w.Set("a", Entry{Generation: 1, Start: 0, End: 5}, 0)
	w.Refresh()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx.Lookup("a")
			idx.Snapshot()
			idx.Len()
		}()
	}
	wg.Wait()
}

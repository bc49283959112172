package pagestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WindowIndex_Appends_At_Monotonically_Growing_Offsets(t *testing.T) {
	t.Parallel()

	idx := newWindowIndex(1000)

	w1 := idx.allocate(1, "a", 100)
	w2 := idx.allocate(2, "b", 250)
	w3 := idx.allocate(3, "c", 50)

	assert.Equal(t, int64(0), w1.Offset)
	assert.Equal(t, int64(100), w2.Offset)
	assert.Equal(t, int64(350), w3.Offset)
	assert.Equal(t, int64(400), idx.totalSize())
}

func Test_WindowIndex_Replaces_Window_When_Page_Re_Added(t *testing.T) {
	t.Parallel()

	idx := newWindowIndex(1000)

	idx.allocate(1, "a", 100)
	idx.allocate(2, "b", 100)

	// Re-adding page 1 abandons its old slot and appends a fresh one.
	w := idx.allocate(1, "a", 150)

	assert.Equal(t, int64(200), w.Offset)
	assert.Equal(t, int64(250), idx.totalSize())

	got, ok := idx.lookup(1)
	require.True(t, ok)
	assert.Equal(t, w, got)

	// The replaced page moved to the back of the eviction queue.
	windows := idx.list()
	require.Len(t, windows, 2)
	assert.Equal(t, 2, windows[0].PageID)
	assert.Equal(t, 1, windows[1].PageID)
}

func Test_WindowIndex_Evicts_Oldest_First_When_Capacity_Exceeded(t *testing.T) {
	t.Parallel()

	// Capacity holds exactly two fixed-size pages.
	idx := newWindowIndex(200)

	idx.allocate(1, "a", 100)
	idx.allocate(2, "b", 100)
	idx.allocate(3, "c", 100)

	_, ok := idx.lookup(1)
	assert.False(t, ok, "oldest page should be evicted")

	_, ok = idx.lookup(2)
	assert.True(t, ok)

	_, ok = idx.lookup(3)
	assert.True(t, ok)

	assert.Equal(t, int64(200), idx.totalSize())
}

func Test_WindowIndex_Stores_Oversized_Page_After_Evicting_Everything(t *testing.T) {
	t.Parallel()

	idx := newWindowIndex(100)

	idx.allocate(1, "a", 60)
	idx.allocate(2, "b", 40)

	// A single page larger than the whole budget is still stored: the
	// index favors availability over rejection.
	w := idx.allocate(3, "c", 500)

	require.Len(t, idx.list(), 1)
	assert.Equal(t, 3, idx.list()[0].PageID)
	assert.Equal(t, int64(500), idx.totalSize())
	assert.Equal(t, int64(100), w.Offset)
}

func Test_WindowIndex_Total_Never_Exceeds_Capacity_For_Fitting_Pages(t *testing.T) {
	t.Parallel()

	const capacity = 1000

	idx := newWindowIndex(capacity)

	sizes := []int{100, 400, 250, 333, 90, 512, 7, 999, 123, 456}
	for i, size := range sizes {
		idx.allocate(i, "p", size)

		assert.LessOrEqual(t, idx.totalSize(), int64(capacity),
			"budget invariant violated after add %d", i)
	}
}

func Test_WindowIndex_Remove_Decrements_Accounting_But_Not_Extent(t *testing.T) {
	t.Parallel()

	idx := newWindowIndex(1000)

	idx.allocate(1, "a", 100)
	idx.allocate(2, "b", 100)

	idx.remove(1)

	assert.Equal(t, int64(100), idx.totalSize())

	_, ok := idx.lookup(1)
	assert.False(t, ok)

	// Dead bytes are never reclaimed: the next window lands after the
	// removed one.
	w := idx.allocate(3, "c", 100)
	assert.Equal(t, int64(200), w.Offset)
}

func Test_WindowIndex_Windows_Never_Overlap(t *testing.T) {
	t.Parallel()

	idx := newWindowIndex(500)

	for i := range 20 {
		idx.allocate(i%7, "p", 50+i*13)

		windows := idx.list()
		for a := range windows {
			for b := range windows {
				if a == b {
					continue
				}

				aEnd := windows[a].Offset + int64(windows[a].Length)
				bEnd := windows[b].Offset + int64(windows[b].Length)

				overlaps := windows[a].Offset < bEnd && windows[b].Offset < aEnd
				require.False(t, overlaps, "windows %v and %v overlap", windows[a], windows[b])
			}
		}
	}
}

func Test_WindowIndex_Restore_Rebuilds_Accounting(t *testing.T) {
	t.Parallel()

	idx := newWindowIndex(1000)

	idx.allocate(1, "a", 100)
	idx.allocate(2, "b", 200)

	restored := newWindowIndex(1000)
	restored.restore(idx.list(), idx.extent())

	assert.Equal(t, idx.totalSize(), restored.totalSize())
	assert.Equal(t, idx.extent(), restored.extent())
	assert.Equal(t, idx.list(), restored.list())

	// New allocations continue past the restored extent.
	w := restored.allocate(3, "c", 50)
	assert.Equal(t, int64(300), w.Offset)
}

package pagestore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pagevault/pkg/pagestore"
)

func Test_RequestStore_Delegates_Buffered_Pages_Only_On_Detach(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewRequestStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	store.AddPage(ctx, pagestore.NewRawPage(2, "p", []byte("two")))
	store.AddPage(ctx, pagestore.NewRawPage(3, "p", []byte("three")))
	store.AddPage(ctx, pagestore.NewRawPage(4, "p", []byte("four")))

	assert.Equal(t, 0, inner.count("session-a"), "no pages delegated before detach")

	store.Detach(ctx)

	assert.Equal(t, 3, inner.count("session-a"), "pages delegated on detach")
	assert.Equal(t, []int{2, 3, 4}, inner.addedIDs(), "flush preserves add order")

	inner.clear()

	// The buffer flushed; the outer store holds no independent copy.
	for _, id := range []int{2, 3, 4} {
		page, err := store.GetPage(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, page, "page %d should be gone after inner store cleared", id)
	}
}

func Test_RequestStore_Serves_Buffered_Pages_Within_The_Request(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewRequestStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	buffered := pagestore.NewRawPage(1, "p", []byte("uncommitted"))
	store.AddPage(ctx, buffered)

	page, err := store.GetPage(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, buffered, page.(*pagestore.RawPage))
}

func Test_RequestStore_Keeps_First_Seen_Position_With_Latest_Payload(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewRequestStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	store.AddPage(ctx, pagestore.NewRawPage(1, "p", []byte("old")))
	store.AddPage(ctx, pagestore.NewRawPage(2, "p", []byte("two")))
	store.AddPage(ctx, pagestore.NewRawPage(1, "p", []byte("new")))

	store.Detach(ctx)

	require.Equal(t, []int{1, 2}, inner.addedIDs(), "page 1 keeps its first-seen position")

	stored := inner.stored("session-a", 1)
	require.NotNil(t, stored)
	assert.Equal(t, []byte("new"), stored.(*pagestore.RawPage).Data())
}

func Test_RequestStore_RemovePage_Drops_Buffered_Page(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewRequestStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	page := pagestore.NewRawPage(1, "p", []byte("data"))

	store.AddPage(ctx, page)
	store.RemovePage(ctx, page)
	store.Detach(ctx)

	assert.Empty(t, inner.addedIDs(), "removed page must not be flushed")
}

func Test_RequestStore_Resets_Buffer_Between_Requests(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewRequestStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	store.AddPage(ctx, pagestore.NewRawPage(1, "p", []byte("first request")))
	store.Detach(ctx)

	store.AddPage(ctx, pagestore.NewRawPage(2, "p", []byte("second request")))
	store.Detach(ctx)

	assert.Equal(t, []int{1, 2}, inner.addedIDs(), "each page delegated exactly once")
}

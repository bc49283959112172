package pagestore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pagevault/pkg/pagestore"
)

func Test_CryptStore_Round_Trips_Page_Bytes(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewCryptStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	plaintext := []byte("secret component tree")

	store.AddPage(ctx, pagestore.NewRawPage(1, "p", plaintext))

	page, err := store.GetPage(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, plaintext, page.(*pagestore.RawPage).Data())
}

func Test_CryptStore_Stores_Ciphertext_Not_Plaintext(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewCryptStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	plaintext := []byte("secret component tree")

	store.AddPage(ctx, pagestore.NewRawPage(1, "p", plaintext))

	atRest := inner.stored("session-a", 1)
	require.NotNil(t, atRest)
	assert.NotEqual(t, plaintext, atRest.(*pagestore.RawPage).Data(),
		"bytes reaching the inner store must be encrypted")
}

func Test_CryptStore_Surfaces_Decrypt_Failure_For_Tampered_Bytes(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewCryptStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	store.AddPage(ctx, pagestore.NewRawPage(1, "p", []byte("data")))

	// Flip the last ciphertext byte at rest.
	atRest := inner.stored("session-a", 1).(*pagestore.RawPage)
	tampered := append([]byte(nil), atRest.Data()...)
	tampered[len(tampered)-1] ^= 0xff
	inner.replace("session-a", pagestore.NewRawPage(1, "p", tampered))

	page, err := store.GetPage(ctx, 1)
	require.ErrorIs(t, err, pagestore.ErrCrypt,
		"a corrupt page must surface, not look like an expired one")
	assert.Nil(t, page)
}

func Test_CryptStore_Uses_Distinct_Keys_Per_Session(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewCryptStore(inner)

	ctxA := pagestore.NewMemoryContext("session-a")
	ctxB := pagestore.NewMemoryContext("session-b")

	plaintext := []byte("same bytes in both sessions")

	store.AddPage(ctxA, pagestore.NewRawPage(1, "p", plaintext))
	store.AddPage(ctxB, pagestore.NewRawPage(1, "p", plaintext))

	// Swap session B's ciphertext into session A: A's key must reject it.
	fromB := inner.stored("session-b", 1).(*pagestore.RawPage)
	inner.replace("session-a", pagestore.NewRawPage(1, "p", fromB.Data()))

	_, err := store.GetPage(ctxA, 1)
	assert.ErrorIs(t, err, pagestore.ErrCrypt)

	// Session B still decrypts its own page.
	page, err := store.GetPage(ctxB, 1)
	require.NoError(t, err)
	assert.Equal(t, plaintext, page.(*pagestore.RawPage).Data())
}

func Test_CryptStore_Panics_On_Live_Page(t *testing.T) {
	t.Parallel()

	store := pagestore.NewCryptStore(newMockStore())
	ctx := pagestore.NewMemoryContext("session-a")

	require.Panics(t, func() {
		store.AddPage(ctx, &testPage{PageID: 1, Title: "live"})
	})
}

func Test_CryptStore_CanBeAsynchronous_Creates_Key_Eagerly(t *testing.T) {
	t.Parallel()

	inner := newMockStore()
	store := pagestore.NewCryptStore(inner)
	ctx := pagestore.NewMemoryContext("session-a")

	require.True(t, store.CanBeAsynchronous(ctx))
	assert.True(t, ctx.Bound())
	assert.NotNil(t, ctx.SessionData("pagevault:CryptStore"),
		"the cipher key must exist before any deferred call")
}

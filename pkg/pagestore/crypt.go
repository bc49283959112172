package pagestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// cryptKeyKey holds the session's cipher key in non-serialized session
// data, never on disk.
const cryptKeyKey = "pagevault:CryptStore"

// CryptStore transparently encrypts page bytes with a per-session key
// before delegating, and decrypts on the way back.
//
// The store is position-sensitive: it only works directly atop
// byte-oriented stores and requires every page to be a [RawPage]. Place a
// [SerializingStore] outside it when live pages are in play, and hand the
// terminal [DiskStore] no serializer so stored bytes stay opaque.
//
// Cipher failures are wrapped in [ErrCrypt] and surfaced, never treated
// as an absent page: a corrupt page must not look like one that expired.
type CryptStore struct {
	inner Store
}

var _ Store = (*CryptStore)(nil)

// NewCryptStore wraps inner with per-session encryption.
func NewCryptStore(inner Store) *CryptStore {
	return &CryptStore{inner: inner}
}

// sessionKey is the lazily created symmetric key for one session.
type sessionKey struct {
	key [sha256.Size]byte
}

// newSessionKey derives an AES-256 key from a random cipher key id.
func newSessionKey() *sessionKey {
	return &sessionKey{key: sha256.Sum256([]byte(uuid.NewString()))}
}

// AddPage encrypts the raw page and delegates. A page that is not in
// serialized form is a configuration defect and panics with [ErrNotRaw].
// An encryption failure panics with [ErrCrypt]: it must never be
// swallowed, and AddPage has no error channel.
func (s *CryptStore) AddPage(ctx Context, page Page) {
	raw, ok := page.(*RawPage)
	if !ok {
		panic(fmt.Sprintf("%v: crypt store works with serialized pages only, got page %d", ErrNotRaw, page.ID()))
	}

	encrypted, err := s.key(ctx).encrypt(raw.Data())
	if err != nil {
		panic(fmt.Sprintf("%v: encrypt page %d: %v", ErrCrypt, page.ID(), err))
	}

	s.inner.AddPage(ctx, NewRawPage(raw.ID(), raw.Type(), encrypted))
}

// GetPage retrieves and decrypts the page. Decryption failures are
// surfaced as [ErrCrypt].
func (s *CryptStore) GetPage(ctx Context, id int) (Page, error) {
	page, err := s.inner.GetPage(ctx, id)
	if err != nil || page == nil {
		return nil, err
	}

	raw, ok := page.(*RawPage)
	if !ok {
		return nil, fmt.Errorf("%w: inner store returned a live page %d", ErrNotRaw, id)
	}

	decrypted, err := s.key(ctx).decrypt(raw.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt page %d: %w", ErrCrypt, id, err)
	}

	return NewRawPage(raw.ID(), raw.Type(), decrypted), nil
}

// RemovePage delegates to the inner store.
func (s *CryptStore) RemovePage(ctx Context, page Page) {
	s.inner.RemovePage(ctx, page)
}

// RemoveAllPages delegates to the inner store.
func (s *CryptStore) RemoveAllPages(ctx Context) {
	s.inner.RemoveAllPages(ctx)
}

// CanBeAsynchronous eagerly creates the session key on the calling
// thread, then delegates. The key must exist before any deferred call:
// session state cannot be bound off-thread.
func (s *CryptStore) CanBeAsynchronous(ctx Context) bool {
	ctx.Bind()

	s.key(ctx)

	return s.inner.CanBeAsynchronous(ctx)
}

// Detach detaches the inner store.
func (s *CryptStore) Detach(ctx Context) {
	s.inner.Detach(ctx)
}

// Destroy destroys the inner store.
func (s *CryptStore) Destroy() {
	s.inner.Destroy()
}

// key returns the session's cipher key, creating it on first use.
func (s *CryptStore) key(ctx Context) *sessionKey {
	if key, ok := ctx.SessionData(cryptKeyKey).(*sessionKey); ok {
		return key
	}

	ctx.Bind()

	key, _ := ctx.SetSessionData(cryptKeyKey, newSessionKey()).(*sessionKey)

	return key
}

// encrypt seals data with AES-256-GCM, prepending the random nonce.
func (k *sessionKey) encrypt(data []byte) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())

	_, err = io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decrypt opens data sealed by encrypt.
func (k *sessionKey) decrypt(data []byte) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	return plaintext, nil
}

func (k *sessionKey) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	return gcm, nil
}

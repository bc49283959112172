package pagestore

import (
	"fmt"
	"log/slog"
)

// SerializingStore converts live pages to their byte form before they
// reach byte-oriented inner stores, and back on retrieval.
//
// Use it when the terminal store is configured without its own
// serializer, for example to keep a [CryptStore] working on opaque bytes.
type SerializingStore struct {
	inner      Store
	serializer Serializer
	logger     *slog.Logger
}

var _ Store = (*SerializingStore)(nil)

// NewSerializingStore wraps inner with page serialization. The
// serializer must not be nil. A nil logger defaults to [slog.Default].
func NewSerializingStore(inner Store, serializer Serializer, logger *slog.Logger) *SerializingStore {
	if serializer == nil {
		panic(fmt.Sprintf("%v: SerializingStore requires a serializer", ErrNoSerializer))
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SerializingStore{inner: inner, serializer: serializer, logger: logger}
}

// AddPage serializes a live page into a [RawPage] and delegates. Raw
// pages pass through unchanged. A serialization failure is logged and
// the page dropped, like any other storage failure in AddPage.
func (s *SerializingStore) AddPage(ctx Context, page Page) {
	if _, ok := page.(*RawPage); ok {
		s.inner.AddPage(ctx, page)

		return
	}

	data, err := s.serializer.Serialize(page)
	if err != nil {
		s.logger.Error("cannot serialize page", "page", page.ID(), "err", err)

		return
	}

	s.inner.AddPage(ctx, NewRawPage(page.ID(), fmt.Sprintf("%T", page), data))
}

// GetPage retrieves the raw page and deserializes it back to a live
// page. Deserialization failures are surfaced.
func (s *SerializingStore) GetPage(ctx Context, id int) (Page, error) {
	page, err := s.inner.GetPage(ctx, id)
	if err != nil || page == nil {
		return nil, err
	}

	raw, ok := page.(*RawPage)
	if !ok {
		return page, nil
	}

	live, err := s.serializer.Deserialize(raw.Data())
	if err != nil {
		return nil, fmt.Errorf("pagestore: deserialize page %d: %w", id, err)
	}

	return live, nil
}

// RemovePage delegates to the inner store.
func (s *SerializingStore) RemovePage(ctx Context, page Page) {
	s.inner.RemovePage(ctx, page)
}

// RemoveAllPages delegates to the inner store.
func (s *SerializingStore) RemoveAllPages(ctx Context) {
	s.inner.RemoveAllPages(ctx)
}

// CanBeAsynchronous delegates to the inner store.
func (s *SerializingStore) CanBeAsynchronous(ctx Context) bool {
	return s.inner.CanBeAsynchronous(ctx)
}

// Detach detaches the inner store.
func (s *SerializingStore) Detach(ctx Context) {
	s.inner.Detach(ctx)
}

// Destroy destroys the inner store.
func (s *SerializingStore) Destroy() {
	s.inner.Destroy()
}

package pagestore

import "sync"

// requestBufferKey holds the buffer in non-serialized session data.
const requestBufferKey = "pagevault:RequestStore"

// RequestStore buffers pages added during a request and flushes them to
// the inner store when the request detaches.
//
// Buffered pages are invisible to the inner store until [RequestStore.Detach]:
// the inner store must never observe partially built request state.
// Within the request, GetPage serves buffered pages first.
type RequestStore struct {
	inner Store
}

var _ Store = (*RequestStore)(nil)

// NewRequestStore wraps inner with request-scoped buffering.
func NewRequestStore(inner Store) *RequestStore {
	return &RequestStore{inner: inner}
}

// requestBuffer is an ordered set of pages keyed by id: a page added
// twice keeps its first-seen position but carries the latest payload.
type requestBuffer struct {
	mu    sync.Mutex
	pages []Page
}

// AddPage appends the page to the buffer. A page with an id already
// buffered replaces the earlier entry in place.
func (s *RequestStore) AddPage(ctx Context, page Page) {
	buffer := s.buffer(ctx, true)

	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	for i, buffered := range buffer.pages {
		if buffered.ID() == page.ID() {
			buffer.pages[i] = page

			return
		}
	}

	buffer.pages = append(buffer.pages, page)
}

// GetPage serves uncommitted writes from the buffer before delegating
// inward.
func (s *RequestStore) GetPage(ctx Context, id int) (Page, error) {
	if buffer := s.buffer(ctx, false); buffer != nil {
		buffer.mu.Lock()

		for _, buffered := range buffer.pages {
			if buffered.ID() == id {
				buffer.mu.Unlock()

				return buffered, nil
			}
		}

		buffer.mu.Unlock()
	}

	return s.inner.GetPage(ctx, id)
}

// RemovePage drops the page from the buffer and the inner store.
func (s *RequestStore) RemovePage(ctx Context, page Page) {
	if buffer := s.buffer(ctx, false); buffer != nil {
		buffer.mu.Lock()

		for i, buffered := range buffer.pages {
			if buffered.ID() == page.ID() {
				buffer.pages = append(buffer.pages[:i], buffer.pages[i+1:]...)

				break
			}
		}

		buffer.mu.Unlock()
	}

	s.inner.RemovePage(ctx, page)
}

// RemoveAllPages clears the buffer and the inner store.
func (s *RequestStore) RemoveAllPages(ctx Context) {
	if buffer := s.buffer(ctx, false); buffer != nil {
		buffer.mu.Lock()
		buffer.pages = nil
		buffer.mu.Unlock()
	}

	s.inner.RemoveAllPages(ctx)
}

// CanBeAsynchronous delegates to the inner store.
func (s *RequestStore) CanBeAsynchronous(ctx Context) bool {
	return s.inner.CanBeAsynchronous(ctx)
}

// Detach flushes buffered pages to the inner store in their recorded
// order, resets the buffer, then detaches the inner store.
func (s *RequestStore) Detach(ctx Context) {
	if buffer := s.buffer(ctx, false); buffer != nil {
		buffer.mu.Lock()
		flushed := buffer.pages
		buffer.pages = nil
		buffer.mu.Unlock()

		for _, page := range flushed {
			s.inner.AddPage(ctx, page)
		}
	}

	s.inner.Detach(ctx)
}

// Destroy destroys the inner store.
func (s *RequestStore) Destroy() {
	s.inner.Destroy()
}

func (s *RequestStore) buffer(ctx Context, create bool) *requestBuffer {
	if buffer, ok := ctx.SessionData(requestBufferKey).(*requestBuffer); ok {
		return buffer
	}

	if !create {
		return nil
	}

	ctx.Bind()

	buffer, _ := ctx.SetSessionData(requestBufferKey, &requestBuffer{}).(*requestBuffer)

	return buffer
}

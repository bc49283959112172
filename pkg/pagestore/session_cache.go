package pagestore

import "sync"

// sessionCacheKey holds the cache in non-serialized session data.
const sessionCacheKey = "pagevault:SessionCacheStore"

// SessionCacheStore keeps the most recently used pages of a session in
// session data, bypassing the inner store for the common immediate-reuse
// case (a page rendered and then called back in the next request).
//
// Writes always pass through to the inner store; the cache is only a
// read shortcut and loses nothing when it evicts.
type SessionCacheStore struct {
	inner    Store
	maxPages int
}

var _ Store = (*SessionCacheStore)(nil)

// NewSessionCacheStore wraps inner with an in-session cache of up to
// maxPages pages per session. maxPages below 1 is treated as 1.
func NewSessionCacheStore(inner Store, maxPages int) *SessionCacheStore {
	if maxPages < 1 {
		maxPages = 1
	}

	return &SessionCacheStore{inner: inner, maxPages: maxPages}
}

// sessionCache is an MRU list, most recent last.
type sessionCache struct {
	mu    sync.Mutex
	pages []Page
}

func (c *sessionCache) put(page Page, maxPages int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, cached := range c.pages {
		if cached.ID() == page.ID() {
			c.pages = append(c.pages[:i], c.pages[i+1:]...)

			break
		}
	}

	c.pages = append(c.pages, page)

	if len(c.pages) > maxPages {
		c.pages = c.pages[len(c.pages)-maxPages:]
	}
}

func (c *sessionCache) get(id int) Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cached := range c.pages {
		if cached.ID() == id {
			return cached
		}
	}

	return nil
}

func (c *sessionCache) remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, cached := range c.pages {
		if cached.ID() == id {
			c.pages = append(c.pages[:i], c.pages[i+1:]...)

			return
		}
	}
}

func (c *sessionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages = nil
}

// AddPage caches the page and writes through to the inner store.
func (s *SessionCacheStore) AddPage(ctx Context, page Page) {
	s.cache(ctx, true).put(page, s.maxPages)

	s.inner.AddPage(ctx, page)
}

// GetPage serves cached pages without touching the inner store; misses
// delegate inward and populate the cache.
func (s *SessionCacheStore) GetPage(ctx Context, id int) (Page, error) {
	if cache := s.cache(ctx, false); cache != nil {
		if page := cache.get(id); page != nil {
			return page, nil
		}
	}

	page, err := s.inner.GetPage(ctx, id)
	if err != nil || page == nil {
		return nil, err
	}

	s.cache(ctx, true).put(page, s.maxPages)

	return page, nil
}

// RemovePage drops the page from the cache and the inner store.
func (s *SessionCacheStore) RemovePage(ctx Context, page Page) {
	if cache := s.cache(ctx, false); cache != nil {
		cache.remove(page.ID())
	}

	s.inner.RemovePage(ctx, page)
}

// RemoveAllPages clears the cache and the inner store.
func (s *SessionCacheStore) RemoveAllPages(ctx Context) {
	if cache := s.cache(ctx, false); cache != nil {
		cache.clear()
	}

	s.inner.RemoveAllPages(ctx)
}

// CanBeAsynchronous delegates to the inner store.
func (s *SessionCacheStore) CanBeAsynchronous(ctx Context) bool {
	return s.inner.CanBeAsynchronous(ctx)
}

// Detach detaches the inner store.
func (s *SessionCacheStore) Detach(ctx Context) {
	s.inner.Detach(ctx)
}

// Destroy destroys the inner store.
func (s *SessionCacheStore) Destroy() {
	s.inner.Destroy()
}

func (s *SessionCacheStore) cache(ctx Context, create bool) *sessionCache {
	if cache, ok := ctx.SessionData(sessionCacheKey).(*sessionCache); ok {
		return cache
	}

	if !create {
		return nil
	}

	ctx.Bind()

	cache, _ := ctx.SetSessionData(sessionCacheKey, &sessionCache{}).(*sessionCache)

	return cache
}

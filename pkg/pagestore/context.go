package pagestore

import "sync"

// Context binds store operations to a specific HTTP session and request.
//
// It is supplied by the host request-handling layer; pagestore only relies
// on the narrow contract below. Session attributes survive across requests
// for the life of the session. Session data is session-scoped in-memory
// state that is never serialized with the session (cipher keys, request
// buffers).
type Context interface {
	// Bind ensures the underlying session exists.
	Bind()

	// SessionID returns the identifier of the underlying session.
	SessionID() string

	// SessionAttribute returns the session attribute stored under key, or
	// nil if absent.
	SessionAttribute(key string) any

	// SetSessionAttribute stores a session attribute under key.
	SetSessionAttribute(key string, value any)

	// SessionData returns the non-serialized session data stored under
	// key, or nil if absent.
	SessionData(key string) any

	// SetSessionData stores non-serialized session data under key unless a
	// value is already present, and returns the winning value. First set
	// wins, so concurrent requests for one session agree on shared state.
	SetSessionData(key string, value any) any

	// OnUnbind registers a teardown callback invoked with the session
	// identifier when the underlying session ends (expiry, invalidation).
	OnUnbind(f func(sessionID string))
}

// MemoryContext is an in-memory [Context] for tests and for embedders
// without a real session container. Safe for concurrent use.
type MemoryContext struct {
	mu        sync.Mutex
	sessionID string
	bound     bool
	attrs     map[string]any
	data      map[string]any
	unbind    []func(sessionID string)
}

// NewMemoryContext creates a context for the given session identifier.
func NewMemoryContext(sessionID string) *MemoryContext {
	return &MemoryContext{
		sessionID: sessionID,
		attrs:     map[string]any{},
		data:      map[string]any{},
	}
}

// Bind marks the session as existing.
func (c *MemoryContext) Bind() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bound = true
}

// Bound reports whether Bind has been called.
func (c *MemoryContext) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bound
}

// SessionID returns the session identifier.
func (c *MemoryContext) SessionID() string {
	return c.sessionID
}

// SessionAttribute returns the attribute stored under key, or nil.
func (c *MemoryContext) SessionAttribute(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attrs[key]
}

// SetSessionAttribute stores an attribute under key.
func (c *MemoryContext) SetSessionAttribute(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attrs[key] = value
}

// SessionData returns the session data stored under key, or nil.
func (c *MemoryContext) SessionData(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.data[key]
}

// SetSessionData stores value under key unless one is already present and
// returns the winning value.
func (c *MemoryContext) SetSessionData(key string, value any) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.data[key]; ok {
		return existing
	}

	c.data[key] = value

	return value
}

// OnUnbind registers a session teardown callback.
func (c *MemoryContext) OnUnbind(f func(sessionID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unbind = append(c.unbind, f)
}

// Unbind simulates session expiry: it fires all registered teardown
// callbacks and clears session state.
func (c *MemoryContext) Unbind() {
	c.mu.Lock()
	callbacks := c.unbind
	c.unbind = nil
	c.attrs = map[string]any{}
	c.data = map[string]any{}
	c.bound = false
	c.mu.Unlock()

	for _, f := range callbacks {
		f(c.sessionID)
	}
}

package pagestore

// Store is the contract implemented by every component in the store chain.
//
// Decorators hold a reference to exactly one inner Store and delegate
// inward; the chain terminates at a [DiskStore].
type Store interface {
	// AddPage makes the page retrievable under its id for the session the
	// context resolves to. Storage failures are logged and swallowed:
	// persisting a page must never break request handling.
	AddPage(ctx Context, page Page)

	// GetPage returns the page stored under id, or (nil, nil) when the
	// page is absent, evicted or no longer readable. Errors are reserved
	// for genuine defects such as cipher failures.
	GetPage(ctx Context, id int) (Page, error)

	// RemovePage drops a single page from storage.
	RemovePage(ctx Context, page Page)

	// RemoveAllPages drops all pages stored for the session the context
	// resolves to.
	RemoveAllPages(ctx Context)

	// CanBeAsynchronous reports whether AddPage may be called from a
	// background worker. Implementations may bind session state as a side
	// effect; [AsyncStore] calls this on the request thread before any
	// deferred delegation.
	CanBeAsynchronous(ctx Context) bool

	// Detach is the end-of-request hook.
	Detach(ctx Context)

	// Destroy is the application shutdown hook.
	Destroy()
}

// PersistentStore extends [Store] with diagnostics over durable storage.
type PersistentStore interface {
	Store

	// ContextIdentifiers returns the session identifiers with stored pages.
	ContextIdentifiers() []string

	// PersistentPages lists the windows stored for a session, oldest first.
	PersistentPages(sessionID string) []Window

	// ContextIdentifier resolves the session identifier for a context,
	// binding session state if necessary.
	ContextIdentifier(ctx Context) string

	// TotalSize returns the bytes used across all sessions.
	TotalSize() int64
}

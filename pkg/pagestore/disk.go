package pagestore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
)

// diskStoreAttrKey is the session attribute marking that a session has
// disk-backed page state. Binding it hooks session teardown.
const diskStoreAttrKey = "pagevault:DiskStore"

// indexFileName is the single-use index snapshot at the store folder
// root: written on Destroy, consumed and deleted on startup.
const indexFileName = "DiskPageStoreIndex"

// DiskStoreOptions configure a [DiskStore].
type DiskStoreOptions struct {
	// AppName names the owning application. At most one live DiskStore
	// may exist per application name within a registry.
	AppName string

	// Root is the folder the store keeps its data under. The store owns
	// {Root}/{AppName}-filestore.
	Root string

	// MaxPerSession is the byte budget per session. Oldest pages are
	// evicted once a session exceeds it.
	MaxPerSession int64

	// Serializer converts live pages to bytes and back. Optional; without
	// it the store accepts [RawPage] payloads only.
	Serializer Serializer

	// Logger receives swallowed storage errors. Defaults to
	// [slog.Default].
	Logger *slog.Logger

	// Registry to register with. Defaults to [DefaultRegistry].
	Registry *Registry
}

// DiskStore is a persistent page store keeping one backing file per
// session under a sharded folder layout.
//
// Construct with [NewDiskStore] and release with [Store.Destroy], which
// persists an index snapshot consumed by the next startup.
type DiskStore struct {
	appName       string
	folder        string
	maxPerSession int64
	serializer    Serializer
	logger        *slog.Logger
	registry      *Registry
	lock          *folderLock

	mu       sync.Mutex
	sessions map[string]*sessionStore
}

var _ PersistentStore = (*DiskStore)(nil)

// sessionMarker is the attribute value bound into a session on first use.
// It pins the session identifier: the container may change the visible
// session id after authentication, but stored pages stay under the
// identifier they were first written with.
type sessionMarker struct {
	appName    string
	identifier string
}

// NewDiskStore creates a disk store, loading any index snapshot a
// previous run left behind. A duplicate application name within the
// registry is a configuration error.
func NewDiskStore(opts DiskStoreOptions) (*DiskStore, error) {
	if opts.AppName == "" {
		return nil, fmt.Errorf("pagestore: AppName must not be empty")
	}

	if opts.Root == "" {
		return nil, fmt.Errorf("pagestore: Root must not be empty")
	}

	if opts.MaxPerSession <= 0 {
		return nil, fmt.Errorf("pagestore: MaxPerSession must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	store := &DiskStore{
		appName:       opts.AppName,
		folder:        filepath.Join(opts.Root, opts.AppName+"-filestore"),
		maxPerSession: opts.MaxPerSession,
		serializer:    opts.Serializer,
		logger:        logger,
		registry:      registry,
		sessions:      map[string]*sessionStore{},
	}

	err := registry.register(opts.AppName, store)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(store.folder, 0o755)
	if err != nil {
		registry.deregister(opts.AppName)

		return nil, fmt.Errorf("create store folder: %w", err)
	}

	store.lock, err = lockStoreFolder(store.folder)
	if err != nil {
		registry.deregister(opts.AppName)

		return nil, err
	}

	store.loadIndex()

	return store, nil
}

// AddPage stores the page for the session the context resolves to.
//
// Raw pages are written directly. Live pages require a configured
// [Serializer]; a live page without one is a configuration defect and
// panics with [ErrNoSerializer]. Storage failures are logged and the page
// is dropped.
func (d *DiskStore) AddPage(ctx Context, page Page) {
	session := d.resolveSession(ctx, true)
	if session == nil {
		return
	}

	var data []byte

	var pageType string

	if raw, ok := page.(*RawPage); ok {
		data = raw.Data()
		pageType = raw.Type()
	} else {
		if d.serializer == nil {
			panic(fmt.Sprintf("%v: cannot store live page %d", ErrNoSerializer, page.ID()))
		}

		serialized, err := d.serializer.Serialize(page)
		if err != nil {
			d.logger.Error("cannot serialize page",
				"session", session.sessionID, "page", page.ID(), "err", err)

			return
		}

		data = serialized
		pageType = fmt.Sprintf("%T", page)
	}

	d.logger.Debug("storing page", "session", session.sessionID, "page", page.ID())

	session.write(page.ID(), pageType, data)
}

// GetPage returns the page stored under id, or (nil, nil) when absent.
// Without a serializer the bytes are returned as a [RawPage] with type
// "unknown"; deserialization failures are surfaced.
func (d *DiskStore) GetPage(ctx Context, id int) (Page, error) {
	session := d.resolveSession(ctx, false)
	if session == nil {
		return nil, nil
	}

	data := session.read(id)
	if data == nil {
		return nil, nil
	}

	if d.serializer == nil {
		return NewRawPage(id, "unknown", data), nil
	}

	page, err := d.serializer.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("pagestore: deserialize page %d: %w", id, err)
	}

	return page, nil
}

// RemovePage drops a single page from the session's storage.
func (d *DiskStore) RemovePage(ctx Context, page Page) {
	session := d.resolveSession(ctx, false)
	if session == nil {
		return
	}

	session.remove(page.ID())
}

// RemoveAllPages destroys the whole per-session store, deleting its
// folder.
func (d *DiskStore) RemoveAllPages(ctx Context) {
	marker := d.marker(ctx, false)
	if marker == nil {
		return
	}

	d.removeSession(marker.identifier)
}

// CanBeAsynchronous always returns true. As a side effect it binds the
// session marker attribute on the calling thread, which must happen
// before any deferred delegation: session binding cannot safely occur off
// the request thread.
func (d *DiskStore) CanBeAsynchronous(ctx Context) bool {
	d.marker(ctx, true)

	return true
}

// Detach is a no-op.
func (d *DiskStore) Detach(Context) {}

// Destroy persists the index snapshot and removes this store from the
// registry.
func (d *DiskStore) Destroy() {
	d.logger.Debug("destroying disk store", "app", d.appName)

	d.saveIndex()
	d.lock.release()
	d.registry.deregister(d.appName)
}

// ContextIdentifiers returns all session identifiers with stored pages,
// sorted for determinism.
func (d *DiskStore) ContextIdentifiers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]string, 0, len(d.sessions))
	for id := range d.sessions {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// PersistentPages lists the windows stored for a session, oldest first.
func (d *DiskStore) PersistentPages(sessionID string) []Window {
	session := d.session(sessionID, false)
	if session == nil {
		return nil
	}

	return session.pages()
}

// ContextIdentifier resolves the session identifier for a context,
// binding the session marker if necessary.
func (d *DiskStore) ContextIdentifier(ctx Context) string {
	return d.marker(ctx, true).identifier
}

// TotalSize returns the bytes used across all sessions.
func (d *DiskStore) TotalSize() int64 {
	d.mu.Lock()
	sessions := make([]*sessionStore, 0, len(d.sessions))

	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	var total int64
	for _, s := range sessions {
		total += s.size()
	}

	return total
}

// marker returns the session marker attribute, binding a new one when
// create is set.
func (d *DiskStore) marker(ctx Context, create bool) *sessionMarker {
	ctx.Bind()

	if m, ok := ctx.SessionAttribute(diskStoreAttrKey).(*sessionMarker); ok {
		return m
	}

	if !create {
		return nil
	}

	m := &sessionMarker{appName: d.appName, identifier: ctx.SessionID()}
	ctx.SetSessionAttribute(diskStoreAttrKey, m)

	registry := d.registry
	logger := d.logger

	ctx.OnUnbind(func(string) {
		store := registry.Lookup(m.appName)
		if store == nil {
			logger.Warn("cannot remove session data because the disk store is no longer present",
				"session", m.identifier, "app", m.appName)

			return
		}

		store.removeSession(m.identifier)
	})

	return m
}

// resolveSession resolves the per-session store for a context.
func (d *DiskStore) resolveSession(ctx Context, create bool) *sessionStore {
	marker := d.marker(ctx, create)
	if marker == nil {
		return nil
	}

	return d.session(marker.identifier, create)
}

func (d *DiskStore) session(sessionID string, create bool) *sessionStore {
	d.mu.Lock()
	defer d.mu.Unlock()

	session := d.sessions[sessionID]
	if session == nil && create {
		session = newSessionStore(d.folder, sessionID, d.maxPerSession, d.logger)
		d.sessions[sessionID] = session
	}

	return session
}

func (d *DiskStore) removeSession(sessionID string) {
	d.mu.Lock()
	session := d.sessions[sessionID]
	delete(d.sessions, sessionID)
	d.mu.Unlock()

	if session != nil {
		session.destroy()
	}
}

// persistedSession is the gob-serializable form of one session's window
// index. Only metadata is persisted, never page bytes.
type persistedSession struct {
	SessionID string
	Windows   []Window
	Extent    int64
}

// persistedIndex is the gob-serializable snapshot of all sessions.
type persistedIndex struct {
	Sessions []persistedSession
}

// saveIndex writes the index snapshot atomically to the store folder.
func (d *DiskStore) saveIndex() {
	d.mu.Lock()
	index := persistedIndex{Sessions: make([]persistedSession, 0, len(d.sessions))}

	for id, session := range d.sessions {
		windows, extent := session.snapshot()
		index.Sessions = append(index.Sessions, persistedSession{
			SessionID: id,
			Windows:   windows,
			Extent:    extent,
		})
	}
	d.mu.Unlock()

	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(index)
	if err != nil {
		d.logger.Error("cannot encode page store index", "app", d.appName, "err", err)

		return
	}

	err = atomic.WriteFile(filepath.Join(d.folder, indexFileName), &buf)
	if err != nil {
		d.logger.Error("cannot write page store index", "app", d.appName, "err", err)
	}
}

// loadIndex restores session metadata from a snapshot left by a previous
// run. The snapshot is single-use: it is deleted after the load attempt,
// and an unreadable snapshot only logs — startup never fails over it.
func (d *DiskStore) loadIndex() {
	path := filepath.Join(d.folder, indexFileName)

	defer func() { _ = os.Remove(path) }()

	file, err := os.Open(path) //nolint:gosec // path is inside the store folder
	if err != nil {
		return
	}

	defer func() { _ = file.Close() }()

	var index persistedIndex

	err = gob.NewDecoder(file).Decode(&index)
	if err != nil {
		d.logger.Error("cannot load page store index, starting empty",
			"app", d.appName, "path", path, "err", err)

		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, persisted := range index.Sessions {
		session := newSessionStore(d.folder, persisted.SessionID, d.maxPerSession, d.logger)
		session.restore(persisted.Windows, persisted.Extent)
		d.sessions[persisted.SessionID] = session
	}
}

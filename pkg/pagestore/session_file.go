package pagestore

import (
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// dataFileName is the backing file inside each session folder.
const dataFileName = "data"

// shardDivisor bounds directory fan-out: session folders live two levels
// deep, each level named by a hash residue modulo this prime. Some file
// systems degrade beyond ~32k entries per directory.
const shardDivisor = 9973

// sessionStore owns one session's backing file and its window index.
//
// All operations for a session are serialized through mu; operations on
// different sessions proceed fully concurrently. Every operation opens a
// fresh file handle and closes it on all exit paths.
type sessionStore struct {
	mu        sync.Mutex
	sessionID string
	dir       string
	index     *windowIndex
	logger    *slog.Logger
	destroyed bool
}

func newSessionStore(storeFolder, sessionID string, capacity int64, logger *slog.Logger) *sessionStore {
	return &sessionStore{
		sessionID: sessionID,
		dir:       sessionFolder(storeFolder, sessionID),
		index:     newWindowIndex(capacity),
		logger:    logger,
	}
}

// write allocates a window for the page and writes data at its offset.
// Failures are logged and the page is dropped: durability problems must
// not break request handling.
func (s *sessionStore) write(pageID int, pageType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	window := s.index.allocate(pageID, pageType, len(data))

	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		s.logger.Error("cannot create session folder",
			"session", s.sessionID, "dir", s.dir, "err", err)

		return
	}

	file, err := os.OpenFile(filepath.Join(s.dir, dataFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		s.logger.Error("cannot save page because the data file cannot be opened",
			"session", s.sessionID, "page", pageID, "err", err)

		return
	}

	defer func() { _ = file.Close() }()

	_, err = file.WriteAt(data, window.Offset)
	if err != nil {
		s.logger.Error("error writing page data",
			"session", s.sessionID, "page", pageID, "err", err)
	}
}

// read returns the bytes stored for pageID, or nil when the window is
// missing or the file can no longer be opened.
func (s *sessionStore) read(pageID int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil
	}

	window, ok := s.index.lookup(pageID)
	if !ok {
		return nil
	}

	file, err := os.Open(filepath.Join(s.dir, dataFileName))
	if err != nil {
		return nil
	}

	defer func() { _ = file.Close() }()

	data := make([]byte, window.Length)

	_, err = file.ReadAt(data, window.Offset)
	if err != nil {
		s.logger.Error("error reading page data",
			"session", s.sessionID, "page", pageID, "err", err)

		return nil
	}

	return data
}

// remove drops the page's window. The bytes stay in the file but are
// unreachable.
func (s *sessionStore) remove(pageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.index.remove(pageID)
}

// destroy deletes the backing file and the session folder, then removes
// the two ancestor shard directories if they became empty, stopping at
// the first non-empty one.
func (s *sessionStore) destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.destroyed = true

	err := os.RemoveAll(s.dir)
	if err != nil {
		s.logger.Error("cannot delete session folder",
			"session", s.sessionID, "dir", s.dir, "err", err)

		return
	}

	removeEmptyAncestors(s.dir)
}

// size returns the bytes used by the session's live windows.
func (s *sessionStore) size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.index.totalSize()
}

// pages lists the session's windows, oldest first.
func (s *sessionStore) pages() []Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.index.list()
}

// snapshot returns the window list and used extent for index persistence.
func (s *sessionStore) snapshot() ([]Window, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.index.list(), s.index.extent()
}

// restore replaces the window index from a persisted snapshot.
func (s *sessionStore) restore(windows []Window, extent int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.restore(windows, extent)
}

// removeEmptyAncestors deletes the session folder's parent and
// grandparent shard directories when empty. Removal is bounded to those
// two levels and stops at the first non-empty ancestor.
func removeEmptyAncestors(sessionDir string) {
	high := filepath.Dir(sessionDir)
	if !removeIfEmpty(high) {
		return
	}

	removeIfEmpty(filepath.Dir(high))
}

func removeIfEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return false
	}

	return os.Remove(dir) == nil
}

// sessionFolder returns the sharded folder for a session:
// {storeFolder}/{hash mod 9973}/{(hash div 9973) mod 9973}/{sessionID}.
func sessionFolder(storeFolder, sessionID string) string {
	sid := sanitizeSessionID(sessionID)

	h := fnv.New32a()
	_, _ = h.Write([]byte(sid))
	sum := h.Sum32()

	low := strconv.FormatUint(uint64(sum%shardDivisor), 10)
	high := strconv.FormatUint(uint64((sum/shardDivisor)%shardDivisor), 10)

	return filepath.Join(storeFolder, low, high, sid)
}

// sanitizeSessionID replaces path-separator-like characters so a session
// identifier is always a single path element.
func sanitizeSessionID(sessionID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '/', '\\', ':':
			return '_'
		}

		return r
	}, sessionID)
}

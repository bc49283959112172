package pagestore

// Window is a byte range inside a session's backing file holding one
// page's serialized bytes.
type Window struct {
	PageID int
	Type   string
	Offset int64
	Length int
}

// windowIndex tracks the windows of one session's backing file and
// enforces the session's byte budget.
//
// Windows are kept in insertion order, which doubles as the eviction
// queue (oldest first). Offsets grow monotonically: slots abandoned by
// eviction or replacement become dead bytes in the file and are never
// reused. The file only shrinks when the session is destroyed.
//
// Not safe for concurrent use; callers serialize access per session.
type windowIndex struct {
	capacity   int64
	windows    []Window
	total      int64
	nextOffset int64
}

func newWindowIndex(capacity int64) *windowIndex {
	return &windowIndex{capacity: capacity}
}

// allocate reserves a window of the given length for pageID and returns
// it for the caller to write into.
//
// An existing window for pageID is abandoned first (replace semantics).
// If the new window would exceed the capacity, the oldest windows are
// evicted until it fits. A single page larger than the whole capacity
// evicts everything and is still stored: availability over rejection.
func (idx *windowIndex) allocate(pageID int, pageType string, length int) Window {
	idx.drop(pageID)

	for idx.total+int64(length) > idx.capacity && len(idx.windows) > 0 {
		oldest := idx.windows[0]
		idx.windows = idx.windows[1:]
		idx.total -= int64(oldest.Length)
	}

	w := Window{
		PageID: pageID,
		Type:   pageType,
		Offset: idx.nextOffset,
		Length: length,
	}

	idx.windows = append(idx.windows, w)
	idx.nextOffset += int64(length)
	idx.total += int64(length)

	return w
}

// lookup returns the window for pageID.
func (idx *windowIndex) lookup(pageID int) (Window, bool) {
	for _, w := range idx.windows {
		if w.PageID == pageID {
			return w, true
		}
	}

	return Window{}, false
}

// remove drops the window for pageID. The file bytes remain physically
// present but unreachable.
func (idx *windowIndex) remove(pageID int) {
	idx.drop(pageID)
}

// drop removes pageID from the queue and decrements the accounting.
func (idx *windowIndex) drop(pageID int) {
	for i, w := range idx.windows {
		if w.PageID == pageID {
			idx.windows = append(idx.windows[:i], idx.windows[i+1:]...)
			idx.total -= int64(w.Length)

			return
		}
	}
}

// restore replaces the index contents from a persisted snapshot.
func (idx *windowIndex) restore(windows []Window, nextOffset int64) {
	idx.windows = append([]Window(nil), windows...)
	idx.nextOffset = nextOffset
	idx.total = 0

	for _, w := range windows {
		idx.total += int64(w.Length)
	}
}

// totalSize returns the bytes used by live windows.
func (idx *windowIndex) totalSize() int64 {
	return idx.total
}

// extent returns the end of the used extent, the offset the next window
// would be appended at.
func (idx *windowIndex) extent() int64 {
	return idx.nextOffset
}

// list returns a copy of the windows in eviction order, oldest first.
func (idx *windowIndex) list() []Window {
	out := make([]Window, len(idx.windows))
	copy(out, idx.windows)

	return out
}

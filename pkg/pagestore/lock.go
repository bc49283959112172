package pagestore

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockFileName is the advisory lock file at the store folder root.
const lockFileName = "store.lock"

// folderLock is an advisory flock on the store folder, guarding against
// two processes writing the same store root. The lock file itself is
// never deleted.
type folderLock struct {
	file *os.File
}

// lockStoreFolder acquires an exclusive, non-blocking lock on the store
// folder. Returns [ErrStoreLocked] when another process holds it.
func lockStoreFolder(folder string) (*folderLock, error) {
	path := filepath.Join(folder, lockFileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // path is the configured store folder
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = file.Close()

		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%w: %s", ErrStoreLocked, folder)
		}

		return nil, fmt.Errorf("flock: %w", err)
	}

	return &folderLock{file: file}, nil
}

// release drops the lock. Safe to call on nil.
func (l *folderLock) release() {
	if l == nil {
		return
	}

	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
}

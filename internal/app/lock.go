package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"filmgov/internal/catalog"
)

// writerLock is an exclusive advisory lock held next to the database file
// for the lifetime of a mutating command.
type writerLock struct {
	path string
	lock *flock.Flock
}

// acquireWriterLock takes the lock at path without waiting. A lock held by
// another process yields catalog.ErrLocked.
func acquireWriterLock(path string) (*writerLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, catalog.ErrLocked)
	}
	return &writerLock{path: path, lock: l}, nil
}

func (w *writerLock) release() error {
	if w == nil {
		return nil
	}
	if err := w.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", w.path, err)
	}
	return nil
}

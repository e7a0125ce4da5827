package app

import (
	"errors"
	"path/filepath"
	"testing"

	"filmgov/internal/catalog"
)

func TestWriterLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "catalog.db.lock")

	first, err := acquireWriterLock(path)
	if err != nil {
		t.Fatalf("acquireWriterLock() error = %v", err)
	}

	if _, err := acquireWriterLock(path); !errors.Is(err, catalog.ErrLocked) {
		t.Fatalf("second acquireWriterLock() error = %v, want ErrLocked", err)
	}

	if err := first.release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	again, err := acquireWriterLock(path)
	if err != nil {
		t.Fatalf("acquireWriterLock() after release error = %v", err)
	}
	if err := again.release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}
}

func TestWriterLock_ReleaseNil(t *testing.T) {
	var w *writerLock
	if err := w.release(); err != nil {
		t.Errorf("release() on nil lock = %v", err)
	}
}

package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"filmgov/internal/catalog"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It stores all backups in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name    string
	backups map[string]map[int64][]byte // datasetID -> version -> data
	mu      sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:    name,
		backups: make(map[string]map[int64][]byte),
	}
}

// PutBackup stores a backup for a dataset under version.
func (m *MemoryVault) PutBackup(_ context.Context, datasetID string, version int64, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.backups[datasetID]
	if !ok {
		versions = make(map[int64][]byte)
		m.backups[datasetID] = versions
	}
	versions[version] = data
	return nil
}

// GetBackup writes a stored backup to w.
func (m *MemoryVault) GetBackup(_ context.Context, datasetID string, version int64, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.backups[datasetID][version]
	if !ok {
		return fmt.Errorf("backup %d not found for dataset: %s", version, datasetID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return nil
}

// ListVersions returns the stored versions for a dataset in ascending order.
func (m *MemoryVault) ListVersions(_ context.Context, datasetID string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := make([]int64, 0, len(m.backups[datasetID]))
	for v := range m.backups[datasetID] {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements catalog.Vault interface
var _ catalog.Vault = (*MemoryVault)(nil)

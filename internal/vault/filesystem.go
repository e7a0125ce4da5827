package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"filmgov/internal/catalog"
)

const backupExt = ".backup"

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores backups as files in a directory structure:
//
//	<root>/
//	  <datasetID>/
//	    <version>.backup
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}

	return &FileSystemVault{
		name: name,
		root: root,
	}, nil
}

// PutBackup stores a backup atomically. Storing an existing version replaces it.
func (v *FileSystemVault) PutBackup(_ context.Context, datasetID string, version int64, r io.Reader, size int64) error {
	dir, err := v.datasetDir(datasetID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	return v.writeFile(filepath.Join(dir, backupName(version)), r, size)
}

// GetBackup writes a stored backup to w.
func (v *FileSystemVault) GetBackup(_ context.Context, datasetID string, version int64, w io.Writer) error {
	dir, err := v.datasetDir(datasetID)
	if err != nil {
		return err
	}
	return v.readFile(filepath.Join(dir, backupName(version)), w,
		fmt.Sprintf("backup %d not found for dataset: %s", version, datasetID))
}

// ListVersions returns the stored versions in ascending order.
func (v *FileSystemVault) ListVersions(_ context.Context, datasetID string) ([]int64, error) {
	dir, err := v.datasetDir(datasetID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	var versions []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if version, ok := parseBackupName(e.Name()); ok {
			versions = append(versions, version)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// ValidateSetup verifies that the vault root is an accessible directory.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	return nil
}

func (v *FileSystemVault) datasetDir(datasetID string) (string, error) {
	if datasetID == "" || strings.ContainsAny(datasetID, `/\`) || datasetID == "." || datasetID == ".." {
		return "", fmt.Errorf("invalid dataset id: %q", datasetID)
	}
	return filepath.Join(v.root, datasetID), nil
}

func backupName(version int64) string {
	return strconv.FormatInt(version, 10) + backupExt
}

func parseBackupName(name string) (int64, bool) {
	s, ok := strings.CutSuffix(name, backupExt)
	if !ok {
		return 0, false
	}
	version, err := strconv.ParseInt(s, 10, 64)
	if err != nil || version <= 0 {
		return 0, false
	}
	return version, true
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (v *FileSystemVault) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemVault implements catalog.Vault interface
var _ catalog.Vault = (*FileSystemVault)(nil)

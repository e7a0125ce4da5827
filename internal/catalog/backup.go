package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupResult describes a stored backup.
type BackupResult struct {
	Version int64
	Size    int64
}

// Backups copies the live database to a vault and back.
type Backups struct {
	vault     Vault
	encryptor Encryptor
	datasetID string
	logger    Logger
}

// NewBackups creates a Backups for datasetID.
func NewBackups(vault Vault, encryptor Encryptor, datasetID string, logger Logger) *Backups {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Backups{vault: vault, encryptor: encryptor, datasetID: datasetID, logger: logger}
}

// Save writes a consistent copy of db, encrypts it and uploads it as version.
func (b *Backups) Save(ctx context.Context, db Database, version int64) (*BackupResult, error) {
	if err := b.vault.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "filmgov-backup-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plainPath := filepath.Join(tmpDir, "catalog.db")
	if err := db.BackupTo(ctx, plainPath); err != nil {
		return nil, storageError("copying database", err)
	}

	encPath := filepath.Join(tmpDir, "catalog.db.age")
	if err := b.encryptFile(plainPath, encPath); err != nil {
		return nil, err
	}

	f, err := os.Open(encPath)
	if err != nil {
		return nil, fmt.Errorf("opening encrypted backup: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat encrypted backup: %w", err)
	}

	if err := b.vault.PutBackup(ctx, b.datasetID, version, f, info.Size()); err != nil {
		return nil, fmt.Errorf("uploading backup: %w", err)
	}

	b.logger.Info("backup stored", "version", version, "size", info.Size())
	return &BackupResult{Version: version, Size: info.Size()}, nil
}

// Restore downloads a backup, decrypts it with dc and writes it to destPath.
// A version of 0 selects the latest backup. destPath is replaced atomically.
func (b *Backups) Restore(ctx context.Context, version int64, dc DecryptionContext, destPath string) (*BackupResult, error) {
	if version == 0 {
		latest, err := b.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if latest == 0 {
			return nil, fmt.Errorf("no backups stored for dataset %s", b.datasetID)
		}
		version = latest
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".restore-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(b.vault.GetBackup(ctx, b.datasetID, version, pw))
	}()
	err = dc.Decrypt(pr, tmp)
	pr.CloseWithError(err)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("decrypting backup %d: %w", version, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stat restored file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing restored file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", destPath, err)
	}
	success = true

	b.logger.Info("backup restored", "version", version, "path", destPath)
	return &BackupResult{Version: version, Size: info.Size()}, nil
}

// Latest returns the newest stored version, or 0 when there is none.
func (b *Backups) Latest(ctx context.Context) (int64, error) {
	versions, err := b.vault.ListVersions(ctx, b.datasetID)
	if err != nil {
		return 0, fmt.Errorf("listing backups: %w", err)
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

func (b *Backups) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating encrypted backup: %w", err)
	}
	if err := b.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing encrypted backup: %w", err)
	}
	return nil
}

package catalog

import (
	"context"
	"io"
)

// Vault stores database backups. Backups are addressed by dataset id and a
// version; versions are run ids and therefore increase over time.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutBackup stores a backup. size is the number of bytes that will be
	// read from r. Storing the same version twice replaces it.
	PutBackup(ctx context.Context, datasetID string, version int64, r io.Reader, size int64) error

	// GetBackup writes the stored backup to w.
	GetBackup(ctx context.Context, datasetID string, version int64, w io.Writer) error

	// ListVersions returns the stored versions in ascending order.
	ListVersions(ctx context.Context, datasetID string) ([]int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts backups with a public key and unlocks the matching
// private key with a passphrase for restores.
type Encryptor interface {
	// Setup performs one-time key generation. The public key is stored in
	// plaintext and the private key is encrypted with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the keys exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a restore.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}

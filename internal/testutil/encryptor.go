package testutil

import (
	"filmgov/internal/catalog"
	"filmgov/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() catalog.Encryptor {
	return encryption.NewTestEncryptor()
}

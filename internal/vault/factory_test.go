package vault

import (
	"context"
	"path/filepath"
	"testing"

	"filmgov/internal/catalog"
	"filmgov/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.VaultConfig
		wantErr  bool
		wantType string
		// validate runs ValidateSetup; skipped for backends that need a network.
		validate bool
	}{
		{
			name:     "memory",
			cfg:      config.VaultConfig{Type: "memory", Name: "mem"},
			wantType: "*vault.MemoryVault",
			validate: true,
		},
		{
			name:     "filesystem",
			cfg:      config.VaultConfig{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(t.TempDir(), "backups")},
			wantType: "*vault.FileSystemVault",
			validate: true,
		},
		{
			name:    "filesystem without root",
			cfg:     config.VaultConfig{Type: "filesystem", Name: "local"},
			wantErr: true,
		},
		{
			name: "s3 with static credentials and endpoint",
			cfg: config.VaultConfig{
				Type:              "s3",
				Name:              "offsite",
				S3Bucket:          "filmgov-backups",
				S3Prefix:          "/catalog/",
				S3Region:          "eu-west-1",
				S3Endpoint:        "http://localhost:9000",
				S3AccessKeyID:     "minio",
				S3SecretAccessKey: "minio-secret",
			},
			wantType: "*vault.S3Vault",
		},
		{
			name:    "s3 without bucket",
			cfg:     config.VaultConfig{Type: "s3", Name: "offsite", S3Region: "eu-west-1"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.VaultConfig{Type: "tape", Name: "archive"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewVaultFromConfig() = %T, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewVaultFromConfig() error = %v", err)
			}
			if typeName(got) != tt.wantType {
				t.Errorf("NewVaultFromConfig() = %s, want %s", typeName(got), tt.wantType)
			}
			if tt.validate {
				if err := got.ValidateSetup(ctx); err != nil {
					t.Errorf("ValidateSetup() error = %v", err)
				}
			}
		})
	}
}

func typeName(v catalog.Vault) string {
	switch v.(type) {
	case *MemoryVault:
		return "*vault.MemoryVault"
	case *FileSystemVault:
		return "*vault.FileSystemVault"
	case *S3Vault:
		return "*vault.S3Vault"
	}
	return "unknown"
}

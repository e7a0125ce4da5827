package vault

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"filmgov/internal/config"
)

func TestS3Vault_ObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		dataset string
		version int64
		want    string
		wantErr bool
	}{
		{name: "with prefix", prefix: "filmgov", dataset: "tmdb", version: 42, want: "filmgov/tmdb/00000000000000000042.backup"},
		{name: "prefix slashes trimmed", prefix: "/backups/filmgov/", dataset: "tmdb", version: 1, want: "backups/filmgov/tmdb/00000000000000000001.backup"},
		{name: "no prefix", prefix: "", dataset: "tmdb", version: 7, want: "tmdb/00000000000000000007.backup"},
		{name: "invalid dataset", prefix: "filmgov", dataset: "../etc", version: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewS3VaultFromClient("test", "bucket", tt.prefix, s3.New(s3.Options{Region: "us-east-1"}))
			got, err := v.objectKey(tt.dataset, tt.version)
			if (err != nil) != tt.wantErr {
				t.Fatalf("objectKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3Vault_ObjectNamesSortLexically(t *testing.T) {
	a, b := objectName(9), objectName(10)
	if strings.Compare(a, b) >= 0 {
		t.Errorf("objectName(9) = %q sorts after objectName(10) = %q", a, b)
	}
	if v, ok := parseBackupName(b); !ok || v != 10 {
		t.Errorf("parseBackupName(%q) = %d, %v; want 10, true", b, v, ok)
	}
}

func TestNewS3Vault_StaticCredentials(t *testing.T) {
	v, err := NewS3Vault(context.Background(), config.VaultConfig{
		Type:              "s3",
		Name:              "minio",
		S3Bucket:          "backups",
		S3Prefix:          "filmgov",
		S3Region:          "us-east-1",
		S3Endpoint:        "http://localhost:9000",
		S3AccessKeyID:     "minio",
		S3SecretAccessKey: "minio123",
	})
	if err != nil {
		t.Fatalf("NewS3Vault() error = %v", err)
	}
	if v.bucket != "backups" || v.prefix != "filmgov" {
		t.Errorf("vault = {bucket: %q, prefix: %q}, want {backups, filmgov}", v.bucket, v.prefix)
	}
	if !v.client.Options().UsePathStyle {
		t.Error("UsePathStyle = false, want true for custom endpoint")
	}
}

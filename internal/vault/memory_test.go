package vault

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestMemoryVault_PutAndGetBackup(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		version int64
		content string
	}{
		{name: "store and retrieve backup", version: 1, content: "hello world"},
		{name: "store empty backup", version: 2, content: ""},
		{name: "store large backup", version: 3, content: strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := vault.PutBackup(ctx, "tmdb", tt.version, strings.NewReader(tt.content), int64(len(tt.content))); err != nil {
				t.Fatalf("PutBackup() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetBackup(ctx, "tmdb", tt.version, &buf); err != nil {
				t.Fatalf("GetBackup() error = %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetBackup() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_PutBackup_SizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	err := vault.PutBackup(context.Background(), "tmdb", 1, strings.NewReader("hello"), 10)
	if err == nil {
		t.Fatal("PutBackup() expected error for size mismatch")
	}
	if !strings.Contains(err.Error(), "size mismatch") {
		t.Errorf("error = %v, want error containing 'size mismatch'", err)
	}

	versions, err := vault.ListVersions(context.Background(), "tmdb")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("ListVersions() = %v, want empty after failed put", versions)
	}
}

func TestMemoryVault_GetBackup_NotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	err := vault.GetBackup(context.Background(), "tmdb", 1, &buf)
	if err == nil {
		t.Fatal("GetBackup() expected error for missing backup")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want error containing 'not found'", err)
	}
}

func TestMemoryVault_ListVersions(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	for _, version := range []int64{5, 1, 3} {
		if err := vault.PutBackup(ctx, "tmdb", version, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("PutBackup(%d) error = %v", version, err)
		}
	}
	if err := vault.PutBackup(ctx, "other", 9, strings.NewReader("x"), 1); err != nil {
		t.Fatalf("PutBackup() error = %v", err)
	}

	got, err := vault.ListVersions(ctx, "tmdb")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if want := []int64{1, 3, 5}; !slices.Equal(got, want) {
		t.Errorf("ListVersions() = %v, want %v", got, want)
	}
}

func TestMemoryVault_Concurrent(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(version int64) {
			defer wg.Done()
			if err := vault.PutBackup(ctx, "tmdb", version, strings.NewReader("data"), 4); err != nil {
				t.Errorf("PutBackup(%d) error = %v", version, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := vault.ListVersions(ctx, "tmdb")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(got) != 20 {
		t.Errorf("len(ListVersions()) = %d, want 20", len(got))
	}
}

func TestMemoryVault_ValidateSetup(t *testing.T) {
	if err := NewMemoryVault("test-vault").ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

package vault

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates root directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		if _, err := os.Stat(root); err != nil {
			t.Errorf("root directory not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_PutBackup(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "store backup successfully", data: "sqlite bytes", size: 12},
		{name: "size mismatch", data: "hello", size: 100, wantErr: true},
		{name: "empty backup", data: "", size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			v, err := NewFileSystemVault("test", root)
			if err != nil {
				t.Fatalf("NewFileSystemVault() error = %v", err)
			}

			err = v.PutBackup(context.Background(), "tmdb", 7, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutBackup() error = %v, wantErr %v", err, tt.wantErr)
			}

			path := filepath.Join(root, "tmdb", "7.backup")
			data, readErr := os.ReadFile(path)
			if tt.wantErr {
				if readErr == nil {
					t.Error("backup file exists after failed PutBackup()")
				}
				return
			}
			if readErr != nil {
				t.Fatalf("failed to read backup file: %v", readErr)
			}
			if string(data) != tt.data {
				t.Errorf("backup = %q, want %q", string(data), tt.data)
			}
		})
	}
}

func TestFileSystemVault_PutBackup_Overwrites(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, data := range []string{"version 1", "version 2"} {
		if err := v.PutBackup(ctx, "tmdb", 1, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutBackup(%q) error = %v", data, err)
		}
	}

	var buf bytes.Buffer
	if err := v.GetBackup(ctx, "tmdb", 1, &buf); err != nil {
		t.Fatalf("GetBackup() error = %v", err)
	}
	if buf.String() != "version 2" {
		t.Errorf("backup = %q, want %q", buf.String(), "version 2")
	}
}

func TestFileSystemVault_GetBackup(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("retrieve existing backup", func(t *testing.T) {
		data := "hello world"
		if err := v.PutBackup(ctx, "tmdb", 3, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutBackup() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetBackup(ctx, "tmdb", 3, &buf); err != nil {
			t.Fatalf("GetBackup() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("backup = %q, want %q", buf.String(), data)
		}
	})

	t.Run("backup not found", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.GetBackup(ctx, "tmdb", 99, &buf)
		if err == nil {
			t.Fatal("GetBackup() expected error for missing version")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("error = %v, want error containing 'not found'", err)
		}
	})
}

func TestFileSystemVault_ListVersions(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("unknown dataset has no versions", func(t *testing.T) {
		got, err := v.ListVersions(ctx, "tmdb")
		if err != nil {
			t.Fatalf("ListVersions() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListVersions() = %v, want empty", got)
		}
	})

	t.Run("returns versions in numeric order", func(t *testing.T) {
		for _, version := range []int64{10, 2, 1} {
			if err := v.PutBackup(ctx, "tmdb", version, strings.NewReader("x"), 1); err != nil {
				t.Fatalf("PutBackup(%d) error = %v", version, err)
			}
		}
		// Stray files are ignored.
		if err := os.WriteFile(filepath.Join(root, "tmdb", "notes.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "tmdb", "abc.backup"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := v.ListVersions(ctx, "tmdb")
		if err != nil {
			t.Fatalf("ListVersions() error = %v", err)
		}
		if want := []int64{1, 2, 10}; !slices.Equal(got, want) {
			t.Errorf("ListVersions() = %v, want %v", got, want)
		}
	})
}

func TestFileSystemVault_InvalidDatasetID(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if err := v.PutBackup(ctx, id, 1, strings.NewReader("x"), 1); err == nil {
			t.Errorf("PutBackup(%q) expected error", id)
		}
		if _, err := v.ListVersions(ctx, id); err == nil {
			t.Errorf("ListVersions(%q) expected error", id)
		}
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("valid setup", func(t *testing.T) {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := v.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("root removed", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")
		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := os.RemoveAll(root); err != nil {
			t.Fatal(err)
		}
		if err := v.ValidateSetup(ctx); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}

func TestParseBackupName(t *testing.T) {
	tests := []struct {
		name   string
		want   int64
		wantOK bool
	}{
		{"12.backup", 12, true},
		{"00000000000000000012.backup", 12, true},
		{"0.backup", 0, false},
		{"-3.backup", 0, false},
		{"12.db", 0, false},
		{".tmp-123", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseBackupName(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseBackupName(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	keys := &CachedKeys{PrivateKeyB64: "priv", PublicKeyB64: "pub"}
	if err := store.Save("wallet-a", keys); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load("wallet-a")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.PrivateKeyB64 != "priv" || got.PublicKeyB64 != "pub" {
		t.Errorf("Load() = %+v, want saved keys", got)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	got, err := store.Load("nobody")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() = %+v, want nil for missing entry", got)
	}
}

func TestFileStore_RejectsPartialKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	tests := []struct {
		name string
		keys *CachedKeys
	}{
		{"missing private", &CachedKeys{PublicKeyB64: "pub"}},
		{"missing public", &CachedKeys{PrivateKeyB64: "priv"}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Save("w", tt.keys); !errors.Is(err, ErrPartialKeys) {
				t.Errorf("Save() error = %v, want ErrPartialKeys", err)
			}
		})
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes not meaningful on windows")
	}

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := store.Save("w", &CachedKeys{PrivateKeyB64: "a", PublicKeyB64: "b"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "w.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key file mode = %o, want 0600", perm)
	}
}

func TestFileStore_LegacyLifecycle(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	keys := &CachedKeys{PrivateKeyB64: "old-priv", PublicKeyB64: "old-pub"}
	if err := store.SaveLegacy("w", keys); err != nil {
		t.Fatalf("SaveLegacy() error = %v", err)
	}

	got, err := store.LoadLegacy("w")
	if err != nil {
		t.Fatalf("LoadLegacy() error = %v", err)
	}
	if !got.Complete() {
		t.Fatalf("LoadLegacy() = %+v, want complete keys", got)
	}

	// Legacy and durable namespaces are independent.
	durable, err := store.Load("w")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if durable != nil {
		t.Error("legacy entry leaked into durable namespace")
	}

	if err := store.DeleteLegacy("w"); err != nil {
		t.Fatalf("DeleteLegacy() error = %v", err)
	}
	got, err = store.LoadLegacy("w")
	if err != nil {
		t.Fatalf("LoadLegacy() after delete error = %v", err)
	}
	if got != nil {
		t.Error("legacy entry survived delete")
	}
}

func TestFileStore_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := store.Delete("nobody"); err != nil {
		t.Errorf("Delete() of missing entry error = %v", err)
	}
}

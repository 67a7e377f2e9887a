package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists cached keys as JSON files under a directory, one file
// per wallet address, mode 0600. Legacy session entries live in a "legacy"
// subdirectory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory (and its legacy subdirectory) if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("keystore: directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, "legacy"), 0700); err != nil {
		return nil, fmt.Errorf("keystore: create directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(address string) string {
	return filepath.Join(s.dir, address+".json")
}

func (s *FileStore) legacyPath(address string) string {
	return filepath.Join(s.dir, "legacy", address+".json")
}

// Load reads the durable cache entry for a wallet, or (nil, nil) if absent.
func (s *FileStore) Load(address string) (*CachedKeys, error) {
	return readKeys(s.path(address))
}

// Save writes the durable cache entry. Both halves must be present.
func (s *FileStore) Save(address string, keys *CachedKeys) error {
	return writeKeys(s.path(address), keys)
}

// Delete removes the durable cache entry. Missing entries are not an error.
func (s *FileStore) Delete(address string) error {
	return removeKeys(s.path(address))
}

// LoadLegacy reads the legacy session-scoped entry, or (nil, nil) if absent.
func (s *FileStore) LoadLegacy(address string) (*CachedKeys, error) {
	return readKeys(s.legacyPath(address))
}

// SaveLegacy writes a legacy entry. Exists for migration tests.
func (s *FileStore) SaveLegacy(address string, keys *CachedKeys) error {
	return writeKeys(s.legacyPath(address), keys)
}

// DeleteLegacy removes the legacy entry. Missing entries are not an error.
func (s *FileStore) DeleteLegacy(address string) error {
	return removeKeys(s.legacyPath(address))
}

func readKeys(path string) (*CachedKeys, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	var keys CachedKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("keystore: parse %s: %w", path, err)
	}
	return &keys, nil
}

func writeKeys(path string, keys *CachedKeys) error {
	if !keys.Complete() {
		return ErrPartialKeys
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written entry.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("keystore: rename %s: %w", path, err)
	}
	return nil
}

func removeKeys(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keystore: remove %s: %w", path, err)
	}
	return nil
}

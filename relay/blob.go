package relay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Blob storage errors.
var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrInvalidBlobPath = errors.New("invalid blob path")
)

// BlobStore holds encrypted attachment ciphertext keyed by storage path.
// The relay stores blobs exactly as uploaded; it has no key to inspect them.
type BlobStore interface {
	Put(path string, content []byte) error
	Get(path string) ([]byte, error)
	Delete(path string) error
}

// validBlobPath rejects paths that could escape a storage root.
func validBlobPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") {
		return false
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// MemoryBlobStore is an in-memory BlobStore for tests and single-node use.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty MemoryBlobStore.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Put stores a blob.
func (s *MemoryBlobStore) Put(path string, content []byte) error {
	if !validBlobPath(path) {
		return ErrInvalidBlobPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(content))
	copy(buf, content)
	s.blobs[path] = buf
	return nil
}

// Get returns a blob, or ErrBlobNotFound.
func (s *MemoryBlobStore) Get(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[path]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return content, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *MemoryBlobStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

// FSBlobStore stores blobs as files under a root directory.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates a blob store rooted at dir, creating it if needed.
func NewFSBlobStore(dir string) (*FSBlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob store directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSBlobStore{root: dir}, nil
}

func (s *FSBlobStore) fullPath(path string) (string, error) {
	if !validBlobPath(path) {
		return "", ErrInvalidBlobPath
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}

// Put writes a blob, creating parent directories as needed. The write goes
// through a temp file and rename so a crash never leaves a torn blob.
func (s *FSBlobStore) Put(path string, content []byte) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

// Get reads a blob, or ErrBlobNotFound.
func (s *FSBlobStore) Get(path string) ([]byte, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return content, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *FSBlobStore) Delete(path string) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

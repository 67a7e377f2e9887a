package keystore

import "sync"

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	durable map[string]CachedKeys
	legacy  map[string]CachedKeys
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		durable: make(map[string]CachedKeys),
		legacy:  make(map[string]CachedKeys),
	}
}

func (s *MemoryStore) Load(address string) (*CachedKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.durable[address]; ok {
		copy := k
		return &copy, nil
	}
	return nil, nil
}

func (s *MemoryStore) Save(address string, keys *CachedKeys) error {
	if !keys.Complete() {
		return ErrPartialKeys
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durable[address] = *keys
	return nil
}

func (s *MemoryStore) Delete(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.durable, address)
	return nil
}

func (s *MemoryStore) LoadLegacy(address string) (*CachedKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.legacy[address]; ok {
		copy := k
		return &copy, nil
	}
	return nil, nil
}

func (s *MemoryStore) SaveLegacy(address string, keys *CachedKeys) error {
	if !keys.Complete() {
		return ErrPartialKeys
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[address] = *keys
	return nil
}

func (s *MemoryStore) DeleteLegacy(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.legacy, address)
	return nil
}

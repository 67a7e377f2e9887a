package relay

import (
	"errors"
	"sort"
	"sync"

	"github.com/walletmail/client-go/internal/api"
)

// Store errors.
var (
	ErrRecordNotFound = errors.New("record not found")
)

// Store is the relay's metadata storage: escrow records, messages, drafts.
// Escrow upserts are last-write-wins; the relay does not referee concurrent
// devices beyond that.
type Store interface {
	GetEscrow(wallet string) (*api.EscrowRecord, error)
	UpsertEscrow(record *api.EscrowRecord) error

	SaveMessage(msg *api.MessageRecord) error
	GetMessage(id string) (*api.MessageRecord, error)
	ListInbox(wallet string) ([]api.MessageRecord, error)
	ListSent(wallet string) ([]api.MessageRecord, error)
	SetRead(id string, read bool) error
	SetStarred(id string, starred bool) error
	DeleteMessage(id string) error

	SaveDraft(draft *api.DraftRecord) error
	ListDrafts(wallet string) ([]api.DraftRecord, error)
	GetDraft(id string) (*api.DraftRecord, error)
	DeleteDraft(id string) error
}

// MemoryStore is an in-memory Store, suitable for tests and single-node
// deployments that accept losing mail on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	escrow   map[string]api.EscrowRecord
	messages map[string]api.MessageRecord
	drafts   map[string]api.DraftRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		escrow:   make(map[string]api.EscrowRecord),
		messages: make(map[string]api.MessageRecord),
		drafts:   make(map[string]api.DraftRecord),
	}
}

// GetEscrow returns the escrow record for wallet, or ErrRecordNotFound.
func (s *MemoryStore) GetEscrow(wallet string) (*api.EscrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.escrow[wallet]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

// UpsertEscrow stores or replaces the escrow record. Last write wins.
func (s *MemoryStore) UpsertEscrow(record *api.EscrowRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escrow[record.WalletAddress] = *record
	return nil
}

// SaveMessage stores a message record.
func (s *MemoryStore) SaveMessage(msg *api.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = *msg
	return nil
}

// GetMessage returns a message by ID.
func (s *MemoryStore) GetMessage(id string) (*api.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &msg, nil
}

// ListInbox returns messages addressed to wallet, newest first.
func (s *MemoryStore) ListInbox(wallet string) ([]api.MessageRecord, error) {
	return s.listMessages(func(m *api.MessageRecord) bool { return m.To == wallet })
}

// ListSent returns messages sent by wallet, newest first.
func (s *MemoryStore) ListSent(wallet string) ([]api.MessageRecord, error) {
	return s.listMessages(func(m *api.MessageRecord) bool { return m.From == wallet })
}

func (s *MemoryStore) listMessages(match func(*api.MessageRecord) bool) ([]api.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []api.MessageRecord
	for _, msg := range s.messages {
		if match(&msg) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetRead updates the read flag.
func (s *MemoryStore) SetRead(id string, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrRecordNotFound
	}
	msg.Read = read
	s.messages[id] = msg
	return nil
}

// SetStarred updates the starred flag.
func (s *MemoryStore) SetStarred(id string, starred bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrRecordNotFound
	}
	msg.Starred = starred
	s.messages[id] = msg
	return nil
}

// DeleteMessage removes a message.
func (s *MemoryStore) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return ErrRecordNotFound
	}
	delete(s.messages, id)
	return nil
}

// SaveDraft stores or replaces a draft.
func (s *MemoryStore) SaveDraft(draft *api.DraftRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draft.ID] = *draft
	return nil
}

// ListDrafts returns wallet's drafts, newest first.
func (s *MemoryStore) ListDrafts(wallet string) ([]api.DraftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []api.DraftRecord
	for _, d := range s.drafts {
		if d.Owner == wallet {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// GetDraft returns a draft by ID.
func (s *MemoryStore) GetDraft(id string) (*api.DraftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &d, nil
}

// DeleteDraft removes a draft.
func (s *MemoryStore) DeleteDraft(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return ErrRecordNotFound
	}
	delete(s.drafts, id)
	return nil
}

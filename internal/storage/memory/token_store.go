package memory

import (
	"context"
	"sort"
	"sync"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	data   map[domain.TokenID]*domain.Token // keyed by token_id
	payers map[domain.TokenID]domain.Identity
	nextID domain.TokenID
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data:   make(map[domain.TokenID]*domain.Token),
		payers: make(map[domain.TokenID]domain.Identity),
		nextID: 1,
	}
}

// Insert adds a new token, billed to payer. Returns ErrDuplicateKey if the
// token id exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token, payer domain.Identity) error {
	if t == nil || t.ID == 0 || !payer.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	tokenCopy := *t
	s.data[t.ID] = &tokenCopy
	s.payers[t.ID] = payer

	// Ids are never reused, even if an explicit id skips ahead.
	if t.ID >= s.nextID {
		s.nextID = t.ID + 1
	}
	return nil
}

// GetByID retrieves a token by its id. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByID(_ context.Context, id domain.TokenID) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	tokenCopy := *t
	return &tokenCopy, nil
}

// Update replaces an existing token record. Returns ErrNotFound if absent.
func (s *TokenStore) Update(_ context.Context, t *domain.Token) error {
	if t == nil || t.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; !exists {
		return storage.ErrNotFound
	}

	tokenCopy := *t
	s.data[t.ID] = &tokenCopy
	return nil
}

// NextID returns the next available token id.
func (s *TokenStore) NextID(_ context.Context) (domain.TokenID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nextID, nil
}

// List retrieves all tokens, ordered by id ASC.
func (s *TokenStore) List(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Token, 0, len(s.data))
	for _, t := range s.data {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)

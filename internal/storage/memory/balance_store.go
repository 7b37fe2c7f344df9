package memory

import (
	"context"
	"sort"
	"sync"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// balanceKey is the composite primary key (owner, token_id).
type balanceKey struct {
	owner   domain.Identity
	tokenID domain.TokenID
}

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.RWMutex
	data map[balanceKey]*domain.Balance
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		data: make(map[balanceKey]*domain.Balance),
	}
}

// Get retrieves the balance for (owner, tokenID). Returns ErrNotFound if no
// record exists.
func (s *BalanceStore) Get(_ context.Context, owner domain.Identity, tokenID domain.TokenID) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[balanceKey{owner, tokenID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	balanceCopy := *b
	return &balanceCopy, nil
}

// Insert adds a new balance record, billed to payer. Returns ErrDuplicateKey
// if (owner, tokenID) exists.
func (s *BalanceStore) Insert(_ context.Context, b *domain.Balance, payer domain.Identity) error {
	if b == nil || !b.Owner.IsValid() || b.TokenID == 0 || !payer.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{b.Owner, b.TokenID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	balanceCopy := *b
	balanceCopy.Payer = payer
	s.data[key] = &balanceCopy
	return nil
}

// Update replaces an existing balance record. Returns ErrNotFound if absent.
func (s *BalanceStore) Update(_ context.Context, b *domain.Balance) error {
	if b == nil || !b.Owner.IsValid() || b.TokenID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{b.Owner, b.TokenID}
	existing, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}

	balanceCopy := *b
	// The payer of the original record keeps paying for it.
	balanceCopy.Payer = existing.Payer
	s.data[key] = &balanceCopy
	return nil
}

// ListByOwner retrieves all balances of an owner, ordered by token id ASC.
func (s *BalanceStore) ListByOwner(_ context.Context, owner domain.Identity) ([]*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Balance
	for key, b := range s.data {
		if key.owner == owner {
			balanceCopy := *b
			result = append(result, &balanceCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})

	return result, nil
}

// ListByToken retrieves all balances for a token, ordered by owner ASC.
func (s *BalanceStore) ListByToken(_ context.Context, tokenID domain.TokenID) ([]*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Balance
	for key, b := range s.data {
		if key.tokenID == tokenID {
			balanceCopy := *b
			result = append(result, &balanceCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Owner < result[j].Owner
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BalanceStore = (*BalanceStore)(nil)

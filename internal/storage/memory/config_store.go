package memory

import (
	"context"
	"sync"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// ConfigStore is an in-memory implementation of storage.ConfigStore.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg *domain.TokenConfig
}

// NewConfigStore creates a new in-memory config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

// Get retrieves the configuration. Returns ErrNotFound if not set.
func (s *ConfigStore) Get(_ context.Context) (*domain.TokenConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	cfgCopy := *s.cfg
	return &cfgCopy, nil
}

// Set persists the configuration. Returns ErrDuplicateKey if already set.
func (s *ConfigStore) Set(_ context.Context, cfg *domain.TokenConfig) error {
	if cfg == nil || cfg.SymbolCode == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	cfgCopy := *cfg
	s.cfg = &cfgCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.ConfigStore = (*ConfigStore)(nil)

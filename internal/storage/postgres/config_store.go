package postgres

import (
	"context"
	"fmt"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// ConfigStore implements storage.ConfigStore using PostgreSQL.
type ConfigStore struct {
	db querier
}

// NewConfigStore creates a new ConfigStore.
func NewConfigStore(pool *Pool) *ConfigStore {
	return &ConfigStore{db: pool}
}

// Compile-time interface check.
var _ storage.ConfigStore = (*ConfigStore)(nil)

// Get retrieves the configuration. Returns ErrNotFound if not set.
func (s *ConfigStore) Get(ctx context.Context) (*domain.TokenConfig, error) {
	query := `SELECT symbol_code FROM token_config WHERE id = 1`

	var cfg domain.TokenConfig
	err := s.db.QueryRow(ctx, query).Scan(&cfg.SymbolCode)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &cfg, nil
}

// Set persists the configuration. Returns ErrDuplicateKey if already set;
// the configuration is write-once.
func (s *ConfigStore) Set(ctx context.Context, cfg *domain.TokenConfig) error {
	if cfg == nil {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO token_config (id, symbol_code) VALUES (1, $1)`

	_, err := s.db.Exec(ctx, query, cfg.SymbolCode)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

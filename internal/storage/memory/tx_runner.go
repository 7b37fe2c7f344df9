package memory

import (
	"context"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// TxRunner implements storage.TxRunner over the in-memory stores. It
// snapshots the stores before running a write set and restores them when the
// write set fails, so a failed operation leaves no partial state behind.
type TxRunner struct {
	config   *ConfigStore
	tokens   *TokenStore
	balances *BalanceStore
}

// NewTxRunner creates a runner over the given stores. The stores must be the
// same instances the caller reads from.
func NewTxRunner(config *ConfigStore, tokens *TokenStore, balances *BalanceStore) *TxRunner {
	return &TxRunner{config: config, tokens: tokens, balances: balances}
}

// WithinTx runs fn against the stores and rolls every write back when fn
// returns an error. Callers serialize operations, so no other writer runs
// between snapshot and restore.
func (r *TxRunner) WithinTx(_ context.Context, fn func(storage.Stores) error) error {
	cfg := r.config.snapshot()
	tokens := r.tokens.snapshot()
	balances := r.balances.snapshot()

	err := fn(storage.Stores{
		Config:   r.config,
		Tokens:   r.tokens,
		Balances: r.balances,
	})
	if err != nil {
		r.config.restore(cfg)
		r.tokens.restore(tokens)
		r.balances.restore(balances)
	}
	return err
}

func (s *ConfigStore) snapshot() *domain.TokenConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil
	}
	cfgCopy := *s.cfg
	return &cfgCopy
}

func (s *ConfigStore) restore(cfg *domain.TokenConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
}

type tokenSnapshot struct {
	data   map[domain.TokenID]*domain.Token
	payers map[domain.TokenID]domain.Identity
	nextID domain.TokenID
}

func (s *TokenStore) snapshot() tokenSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := tokenSnapshot{
		data:   make(map[domain.TokenID]*domain.Token, len(s.data)),
		payers: make(map[domain.TokenID]domain.Identity, len(s.payers)),
		nextID: s.nextID,
	}
	for id, t := range s.data {
		tokenCopy := *t
		snap.data[id] = &tokenCopy
	}
	for id, payer := range s.payers {
		snap.payers[id] = payer
	}
	return snap
}

func (s *TokenStore) restore(snap tokenSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = snap.data
	s.payers = snap.payers
	s.nextID = snap.nextID
}

func (s *BalanceStore) snapshot() map[balanceKey]*domain.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[balanceKey]*domain.Balance, len(s.data))
	for key, b := range s.data {
		balanceCopy := *b
		snap[key] = &balanceCopy
	}
	return snap
}

func (s *BalanceStore) restore(snap map[balanceKey]*domain.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = snap
}

// Verify interface compliance at compile time.
var _ storage.TxRunner = (*TxRunner)(nil)

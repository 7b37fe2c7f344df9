package postgres

import (
	"context"
	"fmt"

	"shared-asset-ledger/internal/storage"
)

// TxRunner implements storage.TxRunner on a single PostgreSQL transaction:
// the whole write set of an operation commits or rolls back together.
type TxRunner struct {
	pool    *Pool
	journal storage.JournalStore
}

// NewTxRunner creates a runner over the pool. When the journal lives in
// another backend, pass its store as journal and the runner hands it out in
// place of the transactional journal; with a nil journal the journal writes
// join the transaction.
func NewTxRunner(pool *Pool, journal storage.JournalStore) *TxRunner {
	return &TxRunner{pool: pool, journal: journal}
}

// WithinTx runs fn against transaction-scoped stores, committing only when
// fn succeeds. An external journal is written inside fn as well, so its
// failure aborts the transaction before anything is committed.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(storage.Stores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stores := storage.Stores{
		Config:   &ConfigStore{db: tx},
		Tokens:   &TokenStore{db: tx},
		Balances: &BalanceStore{db: tx},
		Journal:  &JournalStore{db: tx},
	}
	if r.journal != nil {
		stores.Journal = r.journal
	}

	if err := fn(stores); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.TxRunner = (*TxRunner)(nil)

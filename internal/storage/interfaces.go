package storage

import (
	"context"

	"shared-asset-ledger/internal/domain"
)

// ConfigStore provides access to the singleton ledger configuration.
type ConfigStore interface {
	// Get retrieves the configuration. Returns ErrNotFound if not set.
	Get(ctx context.Context) (*domain.TokenConfig, error)

	// Set persists the configuration. Returns ErrDuplicateKey if already set;
	// the configuration is write-once.
	Set(ctx context.Context, cfg *domain.TokenConfig) error
}

// TokenStore provides access to the token registry.
type TokenStore interface {
	// Insert adds a new token, billed to payer. Returns ErrDuplicateKey if
	// the token id exists.
	Insert(ctx context.Context, t *domain.Token, payer domain.Identity) error

	// GetByID retrieves a token by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id domain.TokenID) (*domain.Token, error)

	// Update replaces an existing token record. Returns ErrNotFound if absent.
	Update(ctx context.Context, t *domain.Token) error

	// NextID returns the next available token id. IDs are never reused.
	NextID(ctx context.Context) (domain.TokenID, error)

	// List retrieves all tokens, ordered by id ASC.
	List(ctx context.Context) ([]*domain.Token, error)
}

// BalanceStore provides access to per-(owner, token) balance records.
type BalanceStore interface {
	// Get retrieves the balance for (owner, tokenID). Returns ErrNotFound
	// if no record exists.
	Get(ctx context.Context, owner domain.Identity, tokenID domain.TokenID) (*domain.Balance, error)

	// Insert adds a new balance record, billed to payer. Returns
	// ErrDuplicateKey if (owner, tokenID) exists.
	Insert(ctx context.Context, b *domain.Balance, payer domain.Identity) error

	// Update replaces an existing balance record. Returns ErrNotFound if absent.
	Update(ctx context.Context, b *domain.Balance) error

	// ListByOwner retrieves all balances of an owner, ordered by token id ASC.
	ListByOwner(ctx context.Context, owner domain.Identity) ([]*domain.Balance, error)

	// ListByToken retrieves all balances for a token, ordered by owner ASC.
	// This is a derived holders view, never authoritative ledger state.
	ListByToken(ctx context.Context, tokenID domain.TokenID) ([]*domain.Balance, error)
}

// JournalStore provides access to the append-only operation journal.
type JournalStore interface {
	// Insert adds a new entry. Returns ErrDuplicateKey if entry_id or seq exists.
	Insert(ctx context.Context, e *domain.JournalEntry) error

	// InsertBulk adds multiple entries. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, entries []*domain.JournalEntry) error

	// GetByTokenID retrieves all entries for a token, ordered by seq ASC.
	GetByTokenID(ctx context.Context, tokenID domain.TokenID) ([]*domain.JournalEntry, error)

	// GetByTimeRange retrieves entries applied within [start, end] (inclusive,
	// ms), ordered by seq ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.JournalEntry, error)

	// GetAll retrieves all entries, ordered by seq ASC.
	GetAll(ctx context.Context) ([]*domain.JournalEntry, error)

	// LastSeq returns the highest sequence number in the journal, 0 when
	// the journal is empty.
	LastSeq(ctx context.Context) (uint64, error)
}

// Stores is the transactional view of the ledger stores handed to a write
// set by a TxRunner. Journal may be nil when the runner does not manage the
// journal backend.
type Stores struct {
	Config   ConfigStore
	Tokens   TokenStore
	Balances BalanceStore
	Journal  JournalStore
}

// TxRunner executes a write set atomically: every write fn made is rolled
// back when fn returns an error, so a failed operation leaves no partial
// state behind.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

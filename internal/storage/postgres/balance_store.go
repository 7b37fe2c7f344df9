package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shared-asset-ledger/internal/asset"
	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	db querier
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{db: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get retrieves the balance for (owner, tokenID). Returns ErrNotFound if no
// record exists.
func (s *BalanceStore) Get(ctx context.Context, owner domain.Identity, tokenID domain.TokenID) (*domain.Balance, error) {
	query := `
		SELECT owner, token_id, units, symbol_code, symbol_precision, payer
		FROM balances
		WHERE owner = $1 AND token_id = $2
	`

	row := s.db.QueryRow(ctx, query, string(owner), int64(tokenID))
	b, err := scanBalance(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Insert adds a new balance record, billed to payer. Returns ErrDuplicateKey
// if (owner, tokenID) exists.
func (s *BalanceStore) Insert(ctx context.Context, b *domain.Balance, payer domain.Identity) error {
	if b == nil || !b.Owner.IsValid() || b.TokenID == 0 || !payer.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO balances (owner, token_id, units, symbol_code, symbol_precision, payer)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		string(b.Owner),
		int64(b.TokenID),
		b.Amount.Units,
		b.Amount.Symbol.Code,
		int16(b.Amount.Symbol.Precision),
		string(payer),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

// Update replaces an existing balance record. Returns ErrNotFound if absent.
// The payer recorded at insert time is not changed.
func (s *BalanceStore) Update(ctx context.Context, b *domain.Balance) error {
	if b == nil || !b.Owner.IsValid() || b.TokenID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE balances
		SET units = $3, symbol_code = $4, symbol_precision = $5
		WHERE owner = $1 AND token_id = $2
	`

	tag, err := s.db.Exec(ctx, query,
		string(b.Owner),
		int64(b.TokenID),
		b.Amount.Units,
		b.Amount.Symbol.Code,
		int16(b.Amount.Symbol.Precision),
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByOwner retrieves all balances of an owner, ordered by token id ASC.
func (s *BalanceStore) ListByOwner(ctx context.Context, owner domain.Identity) ([]*domain.Balance, error) {
	query := `
		SELECT owner, token_id, units, symbol_code, symbol_precision, payer
		FROM balances
		WHERE owner = $1
		ORDER BY token_id ASC
	`

	rows, err := s.db.Query(ctx, query, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list balances by owner: %w", err)
	}
	defer rows.Close()

	return scanBalances(rows)
}

// ListByToken retrieves all balances for a token, ordered by owner ASC.
func (s *BalanceStore) ListByToken(ctx context.Context, tokenID domain.TokenID) ([]*domain.Balance, error) {
	query := `
		SELECT owner, token_id, units, symbol_code, symbol_precision, payer
		FROM balances
		WHERE token_id = $1
		ORDER BY owner ASC
	`

	rows, err := s.db.Query(ctx, query, int64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("list balances by token: %w", err)
	}
	defer rows.Close()

	return scanBalances(rows)
}

// scanBalance scans a single row into a Balance.
func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var (
		b               domain.Balance
		owner           string
		tokenID         int64
		units           int64
		symbolCode      string
		symbolPrecision int16
		payer           string
	)

	err := row.Scan(&owner, &tokenID, &units, &symbolCode, &symbolPrecision, &payer)
	if err != nil {
		return nil, err
	}

	b.Owner = domain.Identity(owner)
	b.TokenID = domain.TokenID(tokenID)
	b.Amount = asset.Amount{
		Units:  units,
		Symbol: asset.Symbol{Code: symbolCode, Precision: uint8(symbolPrecision)},
	}
	b.Payer = domain.Identity(payer)

	return &b, nil
}

// scanBalances scans multiple rows.
func scanBalances(rows pgx.Rows) ([]*domain.Balance, error) {
	var balances []*domain.Balance

	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}
	return balances, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shared-asset-ledger/internal/asset"
	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	db querier
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{db: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token, billed to payer. Returns ErrDuplicateKey if the
// token id exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token, payer domain.Identity) error {
	if t == nil || t.ID == 0 || !payer.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			id, issuer, supply_units, max_supply_units, symbol_code, symbol_precision,
			status, name, description, field1, field2, field3, payer
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.Exec(ctx, query,
		int64(t.ID),
		string(t.Issuer),
		t.Supply.Units,
		t.MaxSupply.Units,
		t.MaxSupply.Symbol.Code,
		int16(t.MaxSupply.Symbol.Precision),
		int64(t.Status),
		t.Name,
		t.Description,
		t.Field1,
		t.Field2,
		t.Field3,
		string(payer),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByID retrieves a token by its id. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByID(ctx context.Context, id domain.TokenID) (*domain.Token, error) {
	query := `
		SELECT id, issuer, supply_units, max_supply_units, symbol_code, symbol_precision,
		       status, name, description, field1, field2, field3
		FROM tokens
		WHERE id = $1
	`

	row := s.db.QueryRow(ctx, query, int64(id))
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by id: %w", err)
	}
	return t, nil
}

// Update replaces an existing token record. Returns ErrNotFound if absent.
// The payer recorded at insert time is not changed.
func (s *TokenStore) Update(ctx context.Context, t *domain.Token) error {
	if t == nil || t.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE tokens
		SET issuer = $2, supply_units = $3, max_supply_units = $4, symbol_code = $5,
		    symbol_precision = $6, status = $7, name = $8, description = $9,
		    field1 = $10, field2 = $11, field3 = $12
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		int64(t.ID),
		string(t.Issuer),
		t.Supply.Units,
		t.MaxSupply.Units,
		t.MaxSupply.Symbol.Code,
		int16(t.MaxSupply.Symbol.Precision),
		int64(t.Status),
		t.Name,
		t.Description,
		t.Field1,
		t.Field2,
		t.Field3,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// NextID returns the next available token id. Ids are never reused; tokens
// are never deleted, so max(id)+1 is safe.
func (s *TokenStore) NextID(ctx context.Context) (domain.TokenID, error) {
	query := `SELECT COALESCE(MAX(id), 0) + 1 FROM tokens`

	var next int64
	if err := s.db.QueryRow(ctx, query).Scan(&next); err != nil {
		return 0, fmt.Errorf("next token id: %w", err)
	}
	return domain.TokenID(next), nil
}

// List retrieves all tokens, ordered by id ASC.
func (s *TokenStore) List(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT id, issuer, supply_units, max_supply_units, symbol_code, symbol_precision,
		       status, name, description, field1, field2, field3
		FROM tokens
		ORDER BY id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// scanToken scans a single row into a Token, rebuilding the amounts from the
// stored units and symbol columns.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		t               domain.Token
		id              int64
		issuer          string
		supplyUnits     int64
		maxSupplyUnits  int64
		symbolCode      string
		symbolPrecision int16
		status          int64
	)

	err := row.Scan(
		&id,
		&issuer,
		&supplyUnits,
		&maxSupplyUnits,
		&symbolCode,
		&symbolPrecision,
		&status,
		&t.Name,
		&t.Description,
		&t.Field1,
		&t.Field2,
		&t.Field3,
	)
	if err != nil {
		return nil, err
	}

	symbol := asset.Symbol{Code: symbolCode, Precision: uint8(symbolPrecision)}
	t.ID = domain.TokenID(id)
	t.Issuer = domain.Identity(issuer)
	t.Supply = asset.Amount{Units: supplyUnits, Symbol: symbol}
	t.MaxSupply = asset.Amount{Units: maxSupplyUnits, Symbol: symbol}
	t.Status = uint32(status)

	return &t, nil
}

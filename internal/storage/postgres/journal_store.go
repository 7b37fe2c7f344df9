package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// JournalStore implements storage.JournalStore using PostgreSQL.
type JournalStore struct {
	db querier
}

// NewJournalStore creates a new JournalStore.
func NewJournalStore(pool *Pool) *JournalStore {
	return &JournalStore{db: pool}
}

// Compile-time interface check.
var _ storage.JournalStore = (*JournalStore)(nil)

const insertJournalQuery = `
	INSERT INTO journal (
		entry_id, seq, op, token_id, from_identity, to_identity,
		units, payer, memo, value, applied_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// Insert adds a new entry. Returns ErrDuplicateKey if entry_id or seq exists.
func (s *JournalStore) Insert(ctx context.Context, e *domain.JournalEntry) error {
	if e == nil || e.EntryID == "" || e.Seq == 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.db.Exec(ctx, insertJournalQuery, journalArgs(e)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// InsertBulk adds multiple entries atomically. Fails entire batch on any
// duplicate.
func (s *JournalStore) InsertBulk(ctx context.Context, entries []*domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if e == nil || e.EntryID == "" || e.Seq == 0 {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertJournalQuery, journalArgs(e)...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert journal entry in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTokenID retrieves all entries for a token, ordered by seq ASC.
func (s *JournalStore) GetByTokenID(ctx context.Context, tokenID domain.TokenID) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, seq, op, token_id, from_identity, to_identity,
		       units, payer, memo, value, applied_at
		FROM journal
		WHERE token_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.Query(ctx, query, int64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("get journal by token id: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// GetByTimeRange retrieves entries applied within [start, end] (inclusive,
// ms), ordered by seq ASC.
func (s *JournalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, seq, op, token_id, from_identity, to_identity,
		       units, payer, memo, value, applied_at
		FROM journal
		WHERE applied_at >= $1 AND applied_at <= $2
		ORDER BY seq ASC
	`

	rows, err := s.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get journal by time range: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// GetAll retrieves all entries, ordered by seq ASC.
func (s *JournalStore) GetAll(ctx context.Context) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, seq, op, token_id, from_identity, to_identity,
		       units, payer, memo, value, applied_at
		FROM journal
		ORDER BY seq ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all journal entries: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// LastSeq returns the highest sequence number in the journal, 0 when empty.
func (s *JournalStore) LastSeq(ctx context.Context) (uint64, error) {
	query := `SELECT COALESCE(MAX(seq), 0) FROM journal`

	var last int64
	if err := s.db.QueryRow(ctx, query).Scan(&last); err != nil {
		return 0, fmt.Errorf("get last journal seq: %w", err)
	}
	return uint64(last), nil
}

// journalArgs builds the insert argument list for an entry.
func journalArgs(e *domain.JournalEntry) []any {
	return []any{
		e.EntryID,
		int64(e.Seq),
		string(e.Op),
		int64(e.TokenID),
		string(e.From),
		string(e.To),
		e.Units,
		string(e.Payer),
		e.Memo,
		e.Value,
		e.AppliedAt,
	}
}

// scanJournalEntries scans multiple rows.
func scanJournalEntries(rows pgx.Rows) ([]*domain.JournalEntry, error) {
	var entries []*domain.JournalEntry

	for rows.Next() {
		var (
			e       domain.JournalEntry
			seq     int64
			op      string
			tokenID int64
			from    string
			to      string
			payer   string
		)

		err := rows.Scan(
			&e.EntryID, &seq, &op, &tokenID, &from, &to,
			&e.Units, &payer, &e.Memo, &e.Value, &e.AppliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}

		e.Seq = uint64(seq)
		e.Op = domain.Op(op)
		e.TokenID = domain.TokenID(tokenID)
		e.From = domain.Identity(from)
		e.To = domain.Identity(to)
		e.Payer = domain.Identity(payer)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

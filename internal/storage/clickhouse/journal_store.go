package clickhouse

import (
	"context"
	"fmt"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// JournalStore implements storage.JournalStore using ClickHouse. It serves
// as the archive backend for the journal; MergeTree does not enforce
// uniqueness, so duplicates are detected with explicit checks before insert.
type JournalStore struct {
	conn *Conn
}

// NewJournalStore creates a new JournalStore.
func NewJournalStore(conn *Conn) *JournalStore {
	return &JournalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.JournalStore = (*JournalStore)(nil)

// Insert adds a new entry. Returns ErrDuplicateKey if entry_id or seq exists.
func (s *JournalStore) Insert(ctx context.Context, e *domain.JournalEntry) error {
	if e == nil || e.EntryID == "" || e.Seq == 0 {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.JournalEntry{e})
}

// InsertBulk adds multiple entries. Fails entire batch on any duplicate.
func (s *JournalStore) InsertBulk(ctx context.Context, entries []*domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seenIDs := make(map[string]struct{})
	seenSeqs := make(map[uint64]struct{})
	for _, e := range entries {
		if e == nil || e.EntryID == "" || e.Seq == 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seenIDs[e.EntryID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seenSeqs[e.Seq]; exists {
			return storage.ErrDuplicateKey
		}
		seenIDs[e.EntryID] = struct{}{}
		seenSeqs[e.Seq] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, e := range entries {
		exists, err := s.exists(ctx, e.EntryID, e.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO journal (
			entry_id, seq, op, token_id, from_identity, to_identity,
			units, payer, memo, value, applied_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range entries {
		err = batch.Append(
			e.EntryID, e.Seq, string(e.Op), uint64(e.TokenID),
			string(e.From), string(e.To), e.Units, string(e.Payer),
			e.Memo, e.Value, e.AppliedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTokenID retrieves all entries for a token, ordered by seq ASC.
func (s *JournalStore) GetByTokenID(ctx context.Context, tokenID domain.TokenID) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, seq, op, token_id, from_identity, to_identity,
		       units, payer, memo, value, applied_at
		FROM journal
		WHERE token_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("query by token id: %w", err)
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
		WHERE applied_at >= ? AND applied_at <= ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
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

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all entries: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// LastSeq returns the highest sequence number in the journal, 0 when empty.
func (s *JournalStore) LastSeq(ctx context.Context) (uint64, error) {
	query := `SELECT max(seq) FROM journal`

	var last uint64
	if err := s.conn.QueryRow(ctx, query).Scan(&last); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return last, nil
}

// exists checks if an entry with the given id or seq exists.
func (s *JournalStore) exists(ctx context.Context, entryID string, seq uint64) (bool, error) {
	query := `
		SELECT count(*) FROM journal
		WHERE entry_id = ? OR seq = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, entryID, seq).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows used by the scanners.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanJournalEntries scans multiple rows.
func scanJournalEntries(rows chRows) ([]*domain.JournalEntry, error) {
	var entries []*domain.JournalEntry

	for rows.Next() {
		var (
			e       domain.JournalEntry
			op      string
			tokenID uint64
			from    string
			to      string
			payer   string
		)

		err := rows.Scan(
			&e.EntryID, &e.Seq, &op, &tokenID, &from, &to,
			&e.Units, &payer, &e.Memo, &e.Value, &e.AppliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}

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

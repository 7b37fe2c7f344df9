package memory

import (
	"context"
	"sort"
	"sync"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// JournalStore is an in-memory implementation of storage.JournalStore.
type JournalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.JournalEntry // keyed by entry_id
	seqs map[uint64]struct{}
}

// NewJournalStore creates a new in-memory journal store.
func NewJournalStore() *JournalStore {
	return &JournalStore{
		data: make(map[string]*domain.JournalEntry),
		seqs: make(map[uint64]struct{}),
	}
}

// Insert adds a new entry. Returns ErrDuplicateKey if entry_id or seq exists.
func (s *JournalStore) Insert(_ context.Context, e *domain.JournalEntry) error {
	if e == nil || e.EntryID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(e)
}

// InsertBulk adds multiple entries. Fails entire batch on any duplicate,
// leaving the store unchanged.
func (s *JournalStore) InsertBulk(_ context.Context, entries []*domain.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching the store.
	seen := make(map[string]struct{}, len(entries))
	seenSeqs := make(map[uint64]struct{}, len(entries))
	for _, e := range entries {
		if e == nil || e.EntryID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[e.EntryID]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := seenSeqs[e.Seq]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.data[e.EntryID]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.seqs[e.Seq]; dup {
			return storage.ErrDuplicateKey
		}
		seen[e.EntryID] = struct{}{}
		seenSeqs[e.Seq] = struct{}{}
	}

	for _, e := range entries {
		if err := s.insertLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *JournalStore) insertLocked(e *domain.JournalEntry) error {
	if _, exists := s.data[e.EntryID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.seqs[e.Seq]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *e
	s.data[e.EntryID] = &entryCopy
	s.seqs[e.Seq] = struct{}{}
	return nil
}

// GetByTokenID retrieves all entries for a token, ordered by seq ASC.
func (s *JournalStore) GetByTokenID(_ context.Context, tokenID domain.TokenID) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range s.data {
		if e.TokenID == tokenID {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sortBySeq(result)
	return result, nil
}

// GetByTimeRange retrieves entries applied within [start, end] (inclusive),
// ordered by seq ASC.
func (s *JournalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range s.data {
		if e.AppliedAt >= start && e.AppliedAt <= end {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sortBySeq(result)
	return result, nil
}

// GetAll retrieves all entries, ordered by seq ASC.
func (s *JournalStore) GetAll(_ context.Context) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.JournalEntry, 0, len(s.data))
	for _, e := range s.data {
		entryCopy := *e
		result = append(result, &entryCopy)
	}

	sortBySeq(result)
	return result, nil
}

// LastSeq returns the highest sequence number in the journal, 0 when empty.
func (s *JournalStore) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for seq := range s.seqs {
		if seq > last {
			last = seq
		}
	}
	return last, nil
}

func sortBySeq(entries []*domain.JournalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
}

// Verify interface compliance at compile time.
var _ storage.JournalStore = (*JournalStore)(nil)

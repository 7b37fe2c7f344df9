// Package ledger implements the multi-token ledger state machine: token
// creation under a supply cap, issuance, peer-to-peer transfer, and the
// metadata/status setters. Every operation is a single validate-then-commit
// transition; if any precondition fails, no record has been touched.
//
// Storage and authorization are injected: stores come from internal/storage
// and the set of authorizing identities arrives as an auth.Context on every
// call, so the core carries the conservation and authorization invariants
// without binding to a storage engine or signing scheme.
package ledger

import (
	"context"
	"sync"
	"time"

	"shared-asset-ledger/internal/auth"
	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/idhash"
	"shared-asset-ledger/internal/observability"
	"shared-asset-ledger/internal/storage"
)

// DefaultMaxSupplyUnits is the supply cap assigned to every new token: 100
// whole units at precision 0, one unit per lot.
const DefaultMaxSupplyUnits int64 = 100

// Ledger is one ledger contract instance. It exclusively owns its config,
// token, and balance stores; operations are serialized by an internal mutex
// so a single instance can back a server.
type Ledger struct {
	mu sync.Mutex

	controller domain.Identity // the ledger's controlling identity
	capUnits   int64           // max supply assigned to every new token

	config   storage.ConfigStore
	tokens   storage.TokenStore
	balances storage.BalanceStore
	journal  storage.JournalStore // optional audit trail
	runner   storage.TxRunner     // atomic commit of each operation's write set

	metrics *observability.Metrics
	notify  func(*domain.JournalEntry)
	now     func() int64 // ms clock, swappable for tests and replay

	nextSeq uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithJournal attaches an append-only journal store; every committed
// operation writes one entry.
func WithJournal(js storage.JournalStore) Option {
	return func(l *Ledger) { l.journal = js }
}

// WithTxRunner attaches a transaction runner. With a runner every
// operation's writes, the journal entry included, commit or roll back as one
// unit; without one the writes go to the stores directly and a late write
// failure can leave partial state.
func WithTxRunner(r storage.TxRunner) Option {
	return func(l *Ledger) { l.runner = r }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithMaxSupplyUnits overrides the per-token supply cap.
func WithMaxSupplyUnits(units int64) Option {
	return func(l *Ledger) { l.capUnits = units }
}

// WithClock overrides the millisecond clock used for journal timestamps.
func WithClock(now func() int64) Option {
	return func(l *Ledger) { l.now = now }
}

// WithStartSeq sets the first journal sequence number, for resuming an
// existing journal.
func WithStartSeq(seq uint64) Option {
	return func(l *Ledger) { l.nextSeq = seq }
}

// WithNotify registers a callback invoked after each committed operation's
// journal entry. Used by the WebSocket feed.
func WithNotify(fn func(*domain.JournalEntry)) Option {
	return func(l *Ledger) { l.notify = fn }
}

// New creates a Ledger controlled by the given identity.
func New(controller domain.Identity, config storage.ConfigStore, tokens storage.TokenStore, balances storage.BalanceStore, opts ...Option) *Ledger {
	l := &Ledger{
		controller: controller,
		capUnits:   DefaultMaxSupplyUnits,
		config:     config,
		tokens:     tokens,
		balances:   balances,
		now:        func() int64 { return time.Now().UnixMilli() },
		nextSeq:    1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Controller returns the ledger's controlling identity.
func (l *Ledger) Controller() domain.Identity {
	return l.controller
}

// commit runs one operation's write set. With a runner attached the writes
// go through a transactional view and roll back together on failure;
// otherwise fn writes to the stores directly.
func (l *Ledger) commit(ctx context.Context, fn func(storage.Stores) error) error {
	if l.runner != nil {
		return l.runner.WithinTx(ctx, fn)
	}
	return fn(storage.Stores{
		Config:   l.config,
		Tokens:   l.tokens,
		Balances: l.balances,
		Journal:  l.journal,
	})
}

// record journals one operation as the final write of its commit set, so a
// journal failure aborts the whole operation. The sequence number is not
// advanced here; committed does that once the commit went through.
func (l *Ledger) record(ctx context.Context, s storage.Stores, e *domain.JournalEntry) error {
	e.Seq = l.nextSeq
	e.AppliedAt = l.now()
	e.EntryID = idhash.ComputeEntryID(e)

	j := l.journalIn(s)
	if j == nil {
		return nil
	}
	if err := j.Insert(ctx, e); err != nil {
		if l.metrics != nil {
			l.metrics.JournalInsertErrors.Inc()
		}
		return err
	}
	return nil
}

// journalIn picks the journal for one commit: the transactional view when
// the runner supplies one, otherwise the attached store. Journaling is
// enabled by WithJournal; without it no entry is written.
func (l *Ledger) journalIn(s storage.Stores) storage.JournalStore {
	if l.journal == nil {
		return nil
	}
	if s.Journal != nil {
		return s.Journal
	}
	return l.journal
}

// committed finalizes one committed operation: advances the sequence and
// notifies feed subscribers.
func (l *Ledger) committed(e *domain.JournalEntry) {
	l.nextSeq++
	if l.metrics != nil && l.journal != nil {
		l.metrics.JournalEntries.Inc()
	}
	if l.notify != nil {
		l.notify(e)
	}
}

// observe reports one finished operation to metrics.
func (l *Ledger) observe(op string, start time.Time, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordOperation(op, time.Since(start).Seconds(), err)
	if err != nil {
		l.metrics.RecordOperationError(op, errorKind(err))
	}
}

// requireAuth checks the oracle for one identity.
func requireAuth(ac auth.Context, id domain.Identity) error {
	if !ac.Authorized(id) {
		return ErrUnauthorized
	}
	return nil
}

// validateField checks the 256 byte metadata/memo bound.
func validateField(s string) error {
	if len(s) > domain.MaxFieldBytes {
		return ErrFieldTooLong
	}
	return nil
}

// validateStatus checks the status positivity rule.
func validateStatus(status uint32) error {
	if status == 0 {
		return ErrInvalidStatus
	}
	return nil
}

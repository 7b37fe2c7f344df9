package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/observability"
)

const (
	feedBuffer       = 64
	feedWriteTimeout = 10 * time.Second
)

// feed broadcasts committed journal entries to WebSocket subscribers.
// Slow subscribers have entries dropped rather than stalling the ledger.
type feed struct {
	metrics  *observability.Metrics
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[chan *domain.JournalEntry]struct{}
}

func newFeed(metrics *observability.Metrics, logger *log.Logger) *feed {
	return &feed{
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subs: make(map[chan *domain.JournalEntry]struct{}),
	}
}

// Publish fans an entry out to all subscribers without blocking.
func (f *feed) Publish(e *domain.JournalEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs {
		select {
		case ch <- e:
		default:
			if f.metrics != nil {
				f.metrics.FeedDropped.Inc()
			}
		}
	}
}

func (f *feed) subscribe() chan *domain.JournalEntry {
	ch := make(chan *domain.JournalEntry, feedBuffer)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.FeedSubscribers.Inc()
	}
	return ch
}

func (f *feed) unsubscribe(ch chan *domain.JournalEntry) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.FeedSubscribers.Dec()
	}
}

// handleSubscribe upgrades the connection and streams journal entries as
// JSON messages until the client disconnects.
func (f *feed) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Printf("feed upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := f.subscribe()
	defer f.unsubscribe(ch)

	// Reader goroutine detects client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e := <-ch:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(entryJSON(e)); err != nil {
				return
			}
		}
	}
}

// journalEntryResponse is the wire form of a journal entry.
type journalEntryResponse struct {
	EntryID   string `json:"entry_id"`
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	TokenID   uint64 `json:"token_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Units     int64  `json:"units,omitempty"`
	Payer     string `json:"payer,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Value     string `json:"value,omitempty"`
	AppliedAt int64  `json:"applied_at"`
}

func entryJSON(e *domain.JournalEntry) journalEntryResponse {
	return journalEntryResponse{
		EntryID:   e.EntryID,
		Seq:       e.Seq,
		Op:        string(e.Op),
		TokenID:   uint64(e.TokenID),
		From:      string(e.From),
		To:        string(e.To),
		Units:     e.Units,
		Payer:     string(e.Payer),
		Memo:      e.Memo,
		Value:     e.Value,
		AppliedAt: e.AppliedAt,
	}
}

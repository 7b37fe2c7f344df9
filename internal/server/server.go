// Package server exposes the ledger over HTTP: JSON endpoints for every
// operation and query, a Prometheus metrics endpoint, and a WebSocket feed
// of committed journal entries.
package server

import (
	"log"
	"net/http"

	"shared-asset-ledger/internal/ledger"
	"shared-asset-ledger/internal/observability"
	"shared-asset-ledger/internal/storage"
	"shared-asset-ledger/internal/verification"
)

// Options configures the server.
type Options struct {
	Ledger   *ledger.Ledger
	Journal  storage.JournalStore
	Verifier *verification.Verifier
	Metrics  *observability.Metrics
	Logger   *log.Logger

	// AllowInsecureAuth accepts a plain identity list in place of
	// signatures. Intended for local development and tests only.
	AllowInsecureAuth bool
}

// Server handles HTTP requests against a ledger.
type Server struct {
	ledger            *ledger.Ledger
	journal           storage.JournalStore
	verifier          *verification.Verifier
	metrics           *observability.Metrics
	logger            *log.Logger
	allowInsecureAuth bool
	feed              *feed
}

// New creates a new Server. The returned server's Feed must be wired into
// the ledger with ledger.WithNotify for the WebSocket feed to carry entries.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags|log.Lshortfile)
	}

	return &Server{
		ledger:            opts.Ledger,
		journal:           opts.Journal,
		verifier:          opts.Verifier,
		metrics:           opts.Metrics,
		logger:            logger,
		allowInsecureAuth: opts.AllowInsecureAuth,
		feed:              newFeed(opts.Metrics, logger),
	}
}

// Feed returns the journal entry callback for ledger.WithNotify.
func (s *Server) Feed() *feed {
	return s.feed
}

// SetLedger attaches the ledger. The server and ledger reference each other
// (the ledger notifies the server's feed), so the ledger is attached after
// both are constructed.
func (s *Server) SetLedger(l *ledger.Ledger) {
	s.ledger = l
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Operations
	mux.HandleFunc("POST /v1/configure", s.handleConfigure)
	mux.HandleFunc("POST /v1/tokens", s.handleCreate)
	mux.HandleFunc("POST /v1/issue", s.handleIssue)
	mux.HandleFunc("POST /v1/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/tokens/{id}/status", s.handleSetStatus)
	mux.HandleFunc("POST /v1/tokens/{id}/name", s.handleSetField(fieldName))
	mux.HandleFunc("POST /v1/tokens/{id}/description", s.handleSetField(fieldDescription))
	mux.HandleFunc("POST /v1/tokens/{id}/field1", s.handleSetField(fieldOne))
	mux.HandleFunc("POST /v1/tokens/{id}/field2", s.handleSetField(fieldTwo))
	mux.HandleFunc("POST /v1/tokens/{id}/field3", s.handleSetField(fieldThree))

	// Queries
	mux.HandleFunc("GET /v1/config", s.handleGetConfig)
	mux.HandleFunc("GET /v1/tokens", s.handleListTokens)
	mux.HandleFunc("GET /v1/tokens/{id}", s.handleGetToken)
	mux.HandleFunc("GET /v1/tokens/{id}/holders", s.handleHolders)
	mux.HandleFunc("GET /v1/balances/{owner}", s.handleBalancesByOwner)
	mux.HandleFunc("GET /v1/balances/{owner}/{id}", s.handleGetBalance)
	mux.HandleFunc("GET /v1/journal", s.handleJournal)
	mux.HandleFunc("GET /v1/verify", s.handleVerify)

	// Feed
	mux.HandleFunc("GET /ws/journal", s.feed.handleSubscribe)

	// Health and metrics
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	return mux
}

// Package main runs the ledger service: the HTTP API, the Prometheus
// metrics endpoint and the WebSocket journal feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/ledger"
	"shared-asset-ledger/internal/observability"
	"shared-asset-ledger/internal/server"
	"shared-asset-ledger/internal/storage"
	chstore "shared-asset-ledger/internal/storage/clickhouse"
	"shared-asset-ledger/internal/storage/memory"
	"shared-asset-ledger/internal/storage/migrations"
	pgstore "shared-asset-ledger/internal/storage/postgres"
	"shared-asset-ledger/internal/verification"
)

// ledgerStores holds the storage implementations behind the ledger and the
// transaction runner committing each operation's write set atomically.
type ledgerStores struct {
	config   storage.ConfigStore
	tokens   storage.TokenStore
	balances storage.BalanceStore
	journal  storage.JournalStore
	runner   storage.TxRunner
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("LEDGER_ADDR", ":8080"), "HTTP listen address")
	controller := flag.String("controller", os.Getenv("LEDGER_CONTROLLER"), "Controller identity authorizing configure and create")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the journal archive")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	insecureAuth := flag.Bool("insecure-auth", false, "Accept identity lists in place of signatures (development only)")
	maxSupply := flag.Int64("max-supply", ledger.DefaultMaxSupplyUnits, "Max supply units for newly created tokens")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *controller == "" {
		logger.Fatal("--controller is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Resume the journal sequence after a restart
	startSeq, err := nextSeq(ctx, stores.journal)
	if err != nil {
		logger.Fatalf("Failed to read journal: %v", err)
	}
	if startSeq > 1 {
		logger.Printf("Resuming journal at seq %d", startSeq)
	}

	metrics := observability.NewMetrics("")

	srv := server.New(server.Options{
		Journal:           stores.journal,
		Verifier:          verification.NewVerifier(stores.tokens, stores.balances),
		Metrics:           metrics,
		Logger:            logger,
		AllowInsecureAuth: *insecureAuth,
	})
	if *insecureAuth {
		logger.Println("WARNING: insecure auth enabled, identity lists are trusted without signatures")
	}

	led := ledger.New(domain.Identity(*controller), stores.config, stores.tokens, stores.balances,
		ledger.WithJournal(stores.journal),
		ledger.WithTxRunner(stores.runner),
		ledger.WithMetrics(metrics),
		ledger.WithMaxSupplyUnits(*maxSupply),
		ledger.WithStartSeq(startSeq),
		ledger.WithNotify(srv.Feed().Publish),
	)
	srv.SetLedger(led)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Starting HTTP server on %s (controller %s)", *addr, *controller)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the ledger stores. With --use-memory everything is
// in-process; otherwise Postgres holds the authoritative state and, when a
// DSN is given, ClickHouse archives the journal.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*ledgerStores, func(), error) {
	if useMemory {
		config := memory.NewConfigStore()
		tokens := memory.NewTokenStore()
		balances := memory.NewBalanceStore()
		stores := &ledgerStores{
			config:   config,
			tokens:   tokens,
			balances: balances,
			journal:  memory.NewJournalStore(),
			runner:   memory.NewTxRunner(config, tokens, balances),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &ledgerStores{
		config:   pgstore.NewConfigStore(pool),
		tokens:   pgstore.NewTokenStore(pool),
		balances: pgstore.NewBalanceStore(pool),
		journal:  pgstore.NewJournalStore(pool),
		runner:   pgstore.NewTxRunner(pool, nil),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.journal = chstore.NewJournalStore(conn)
		stores.runner = pgstore.NewTxRunner(pool, stores.journal)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// nextSeq returns the sequence number following the last journaled entry.
func nextSeq(ctx context.Context, journal storage.JournalStore) (uint64, error) {
	last, err := journal.LastSeq(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

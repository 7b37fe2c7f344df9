package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"shared-asset-ledger/internal/asset"
	"shared-asset-ledger/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// schema. Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations applies the embedded schema. Duplicated from the migrations
// package to avoid an import cycle (migrations imports this package).
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	for _, stmt := range testSchema {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply schema statement")
	}
}

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS token_config (
		id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		symbol_code TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id BIGINT PRIMARY KEY CHECK (id > 0),
		issuer TEXT NOT NULL,
		supply_units BIGINT NOT NULL CHECK (supply_units >= 0),
		max_supply_units BIGINT NOT NULL CHECK (max_supply_units >= 0),
		symbol_code TEXT NOT NULL,
		symbol_precision SMALLINT NOT NULL,
		status BIGINT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		field1 TEXT NOT NULL DEFAULT '',
		field2 TEXT NOT NULL DEFAULT '',
		field3 TEXT NOT NULL DEFAULT '',
		payer TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		owner TEXT NOT NULL,
		token_id BIGINT NOT NULL REFERENCES tokens(id),
		units BIGINT NOT NULL CHECK (units >= 0),
		symbol_code TEXT NOT NULL,
		symbol_precision SMALLINT NOT NULL,
		payer TEXT NOT NULL,
		PRIMARY KEY (owner, token_id)
	)`,
	`CREATE TABLE IF NOT EXISTS journal (
		entry_id TEXT PRIMARY KEY,
		seq BIGINT NOT NULL UNIQUE CHECK (seq > 0),
		op TEXT NOT NULL,
		token_id BIGINT NOT NULL,
		from_identity TEXT NOT NULL DEFAULT '',
		to_identity TEXT NOT NULL DEFAULT '',
		units BIGINT NOT NULL DEFAULT 0,
		payer TEXT NOT NULL DEFAULT '',
		memo TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL DEFAULT '',
		applied_at BIGINT NOT NULL
	)`,
}

// testAmount builds an SHR amount for test fixtures.
func testAmount(units int64) asset.Amount {
	return asset.Amount{Units: units, Symbol: asset.Symbol{Code: "SHR", Precision: 0}}
}

// createTestToken inserts a token row for stores that reference tokens(id).
func createTestToken(t *testing.T, ctx context.Context, pool *Pool, id domain.TokenID) {
	t.Helper()

	store := NewTokenStore(pool)
	token := &domain.Token{
		ID:        id,
		Issuer:    "issuer",
		Supply:    testAmount(0),
		MaxSupply: testAmount(100),
		Status:    1,
	}
	require.NoError(t, store.Insert(ctx, token, "controller"))
}

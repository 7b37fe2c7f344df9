package domain

// TokenConfig is the singleton ledger configuration.
// Written once by the configure operation and never changed afterward.
// Corresponds to the token_config table in PostgreSQL.
type TokenConfig struct {
	SymbolCode string // currency code shared by every token this ledger issues
}

package domain

import "shared-asset-ledger/internal/asset"

// TokenID identifies a token within the registry. IDs are assigned either by
// the caller or by the registry (auto-increment) and are never reused.
type TokenID uint64

// MaxFieldBytes bounds every descriptive metadata string and memo.
const MaxFieldBytes = 256

// Token is one mintable/transferable asset type in the registry.
// Corresponds to the tokens table in PostgreSQL.
type Token struct {
	ID        TokenID      // PRIMARY KEY
	Issuer    Identity     // identity permitted to issue and update this token
	Supply    asset.Amount // current supply, only ever increases
	MaxSupply asset.Amount // fixed cap, same symbol as Supply
	Status    uint32       // caller-defined lifecycle marker, must be > 0

	// Descriptive metadata, each field bounded to MaxFieldBytes.
	Name        string
	Description string
	Field1      string
	Field2      string
	Field3      string
}

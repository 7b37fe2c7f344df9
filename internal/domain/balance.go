package domain

import "shared-asset-ledger/internal/asset"

// Balance is one account's holding of one token, keyed by (owner, token_id).
// Created lazily on first credit and never deleted; a zero balance record may
// persist. Corresponds to the balances table in PostgreSQL.
type Balance struct {
	Owner   Identity     // outer namespace
	TokenID TokenID      // back-reference to the token
	Amount  asset.Amount // never negative, same symbol as the token
	Payer   Identity     // identity billed for the record's storage footprint
}

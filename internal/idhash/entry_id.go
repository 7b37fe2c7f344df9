package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"shared-asset-ledger/internal/domain"
)

// ComputeEntryID computes a deterministic journal entry id using SHA256.
// Formula: SHA256(seq|op|token_id|from|to|units|payer|memo|value)
// Returns hex-encoded hash (64 characters).
//
// AppliedAt is deliberately excluded so replaying the same operation
// sequence always yields the same entry ids.
func ComputeEntryID(e *domain.JournalEntry) string {
	data := fmt.Sprintf("%d|%s|%d|%s|%s|%d|%s|%s|%s",
		e.Seq,
		string(e.Op),
		uint64(e.TokenID),
		string(e.From),
		string(e.To),
		e.Units,
		string(e.Payer),
		e.Memo,
		e.Value,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

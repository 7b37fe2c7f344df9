package domain

// Identity names an account that can own balances, issue tokens, or
// authorize operations. In the signature-verifying deployment it is the
// base58 encoding of an ed25519 public key; tests use plain strings.
type Identity string

// IsValid reports whether the identity is non-empty.
func (i Identity) IsValid() bool {
	return i != ""
}

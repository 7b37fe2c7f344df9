package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"shared-asset-ledger/internal/domain"
)

// Verification errors.
var (
	// ErrBadIdentity is returned when an identity is not a base58-encoded
	// canonical ed25519 public key.
	ErrBadIdentity = errors.New("identity is not a valid ed25519 public key")

	// ErrBadSignature is returned when a signature does not verify against
	// the payload and the claimed identity.
	ErrBadSignature = errors.New("signature verification failed")
)

// Signature is one identity's signature over an operation payload.
type Signature struct {
	Identity domain.Identity // base58-encoded ed25519 public key
	Sig      []byte          // 64-byte ed25519 signature
}

// Verify checks every signature against the payload and returns the Context
// authorizing the identities that signed. Any invalid identity or signature
// fails the whole set; a partial authorization is never returned.
func Verify(payload []byte, sigs []Signature) (Context, error) {
	ids := make([]domain.Identity, 0, len(sigs))
	for _, s := range sigs {
		pub, err := decodeIdentity(s.Identity)
		if err != nil {
			return Context{}, err
		}
		if len(s.Sig) != ed25519.SignatureSize || !ed25519.Verify(pub, payload, s.Sig) {
			return Context{}, fmt.Errorf("%w: %s", ErrBadSignature, s.Identity)
		}
		ids = append(ids, s.Identity)
	}
	return NewContext(ids...), nil
}

// IdentityFromPublicKey returns the ledger identity for an ed25519 public key.
func IdentityFromPublicKey(pub ed25519.PublicKey) domain.Identity {
	return domain.Identity(base58.Encode(pub))
}

// decodeIdentity decodes and validates a base58 ed25519 public key.
// The key must be a canonical encoding of a point on the curve.
func decodeIdentity(id domain.Identity) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(id))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %s", ErrBadIdentity, id)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadIdentity, id)
	}
	return ed25519.PublicKey(raw), nil
}

package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"shared-asset-ledger/internal/auth"
	"shared-asset-ledger/internal/domain"
)

var errNoAuthorization = errors.New("request carries no authorization")

// signedRequest is the envelope for every mutating request. Signatures are
// computed over the exact bytes of the payload field, so clients must send
// the payload byte-identical to what they signed.
type signedRequest struct {
	Payload    json.RawMessage    `json:"payload"`
	Signatures []requestSignature `json:"signatures,omitempty"`

	// Identities is honored only when the server allows insecure auth.
	Identities []domain.Identity `json:"identities,omitempty"`
}

type requestSignature struct {
	Identity domain.Identity `json:"identity"`
	Sig      string          `json:"sig"` // base64
}

// authorize resolves the authorization context of a request: ed25519
// signatures over the payload, or a bare identity list in insecure mode.
func (s *Server) authorize(req *signedRequest) (auth.Context, error) {
	if len(req.Signatures) > 0 {
		sigs := make([]auth.Signature, 0, len(req.Signatures))
		for _, rs := range req.Signatures {
			raw, err := base64.StdEncoding.DecodeString(rs.Sig)
			if err != nil {
				return auth.Context{}, fmt.Errorf("decode signature of %s: %w", rs.Identity, err)
			}
			sigs = append(sigs, auth.Signature{Identity: rs.Identity, Sig: raw})
		}
		return auth.Verify(req.Payload, sigs)
	}

	if s.allowInsecureAuth && len(req.Identities) > 0 {
		return auth.NewContext(req.Identities...), nil
	}

	return auth.Context{}, errNoAuthorization
}

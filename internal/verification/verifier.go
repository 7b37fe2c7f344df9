// Package verification recomputes the ledger's conservation invariants from
// storage: supply bounds, non-negative balances, and the rule that every
// token's balances sum exactly to its supply.
package verification

import (
	"context"
	"fmt"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// Violation describes one broken invariant for one token.
type Violation struct {
	TokenID domain.TokenID `json:"token_id"`
	Kind    string         `json:"kind"` // supply_bounds | conservation | negative_balance | symbol_mismatch
	Detail  string         `json:"detail"`
}

// Report contains the result of verifying every token in the registry.
type Report struct {
	TokensChecked int         `json:"tokens_checked"`
	Violations    []Violation `json:"violations,omitempty"`
}

// OK reports whether no violations were found.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Verifier checks ledger invariants against token and balance stores.
type Verifier struct {
	tokens   storage.TokenStore
	balances storage.BalanceStore
}

// NewVerifier creates a new invariant verifier.
func NewVerifier(tokens storage.TokenStore, balances storage.BalanceStore) *Verifier {
	return &Verifier{tokens: tokens, balances: balances}
}

// VerifyToken checks all invariants for a single token.
func (v *Verifier) VerifyToken(ctx context.Context, tokenID domain.TokenID) ([]Violation, error) {
	token, err := v.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("load token %d: %w", tokenID, err)
	}
	return v.verify(ctx, token)
}

// VerifyAll checks all invariants for every token in the registry.
func (v *Verifier) VerifyAll(ctx context.Context) (*Report, error) {
	tokens, err := v.tokens.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	report := &Report{TokensChecked: len(tokens)}
	for _, token := range tokens {
		violations, err := v.verify(ctx, token)
		if err != nil {
			return nil, err
		}
		report.Violations = append(report.Violations, violations...)
	}
	return report, nil
}

func (v *Verifier) verify(ctx context.Context, token *domain.Token) ([]Violation, error) {
	var violations []Violation

	if token.Supply.Units < 0 || token.Supply.Units > token.MaxSupply.Units {
		violations = append(violations, Violation{
			TokenID: token.ID,
			Kind:    "supply_bounds",
			Detail:  fmt.Sprintf("supply %d outside [0, %d]", token.Supply.Units, token.MaxSupply.Units),
		})
	}
	if !token.Supply.Symbol.Equal(token.MaxSupply.Symbol) {
		violations = append(violations, Violation{
			TokenID: token.ID,
			Kind:    "symbol_mismatch",
			Detail:  fmt.Sprintf("supply symbol %s != max supply symbol %s", token.Supply.Symbol, token.MaxSupply.Symbol),
		})
	}

	balances, err := v.balances.ListByToken(ctx, token.ID)
	if err != nil {
		return nil, fmt.Errorf("list balances for token %d: %w", token.ID, err)
	}

	var sum int64
	for _, b := range balances {
		if b.Amount.Units < 0 {
			violations = append(violations, Violation{
				TokenID: token.ID,
				Kind:    "negative_balance",
				Detail:  fmt.Sprintf("%s holds %d", b.Owner, b.Amount.Units),
			})
		}
		if !b.Amount.Symbol.Equal(token.Supply.Symbol) {
			violations = append(violations, Violation{
				TokenID: token.ID,
				Kind:    "symbol_mismatch",
				Detail:  fmt.Sprintf("balance of %s has symbol %s", b.Owner, b.Amount.Symbol),
			})
		}
		sum += b.Amount.Units
	}

	if sum != token.Supply.Units {
		violations = append(violations, Violation{
			TokenID: token.ID,
			Kind:    "conservation",
			Detail:  fmt.Sprintf("balances sum %d != supply %d", sum, token.Supply.Units),
		})
	}

	return violations, nil
}

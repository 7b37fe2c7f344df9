package ledger

import (
	"context"
	"errors"
	"fmt"

	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// Read-only queries. These never mutate state and need no authorization.

// Config returns the ledger configuration, or ErrNotConfigured.
func (l *Ledger) Config(ctx context.Context) (*domain.TokenConfig, error) {
	cfg, err := l.config.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Token returns one token by id, or ErrTokenNotFound.
func (l *Ledger) Token(ctx context.Context, tokenID domain.TokenID) (*domain.Token, error) {
	return l.getToken(ctx, tokenID)
}

// Tokens returns all tokens ordered by id.
func (l *Ledger) Tokens(ctx context.Context) ([]*domain.Token, error) {
	return l.tokens.List(ctx)
}

// Balance returns the (owner, tokenID) balance record, or ErrNoBalance when
// the account was never credited for the token.
func (l *Ledger) Balance(ctx context.Context, owner domain.Identity, tokenID domain.TokenID) (*domain.Balance, error) {
	b, err := l.balances.Get(ctx, owner, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s has no balance for token %d", ErrNoBalance, owner, tokenID)
		}
		return nil, fmt.Errorf("load balance: %w", err)
	}
	return b, nil
}

// BalancesByOwner returns all balance records of an owner, ordered by token id.
func (l *Ledger) BalancesByOwner(ctx context.Context, owner domain.Identity) ([]*domain.Balance, error) {
	return l.balances.ListByOwner(ctx, owner)
}

// Holders returns the accounts currently holding a nonzero balance of a
// token, ordered by owner. This is a view derived from the balance ledger,
// never authoritative state of its own.
func (l *Ledger) Holders(ctx context.Context, tokenID domain.TokenID) ([]*domain.Balance, error) {
	all, err := l.balances.ListByToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	holders := all[:0]
	for _, b := range all {
		if b.Amount.Units > 0 {
			holders = append(holders, b)
		}
	}
	return holders, nil
}

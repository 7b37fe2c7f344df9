package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shared-asset-ledger/internal/asset"
	"shared-asset-ledger/internal/auth"
	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage"
)

// Configure sets the write-once ledger configuration: the symbol code shared
// by every token this ledger issues. Requires authorization by the ledger's
// controlling identity. Fails with ErrAlreadyConfigured on a second call; the
// second value is never applied.
func (l *Ledger) Configure(ctx context.Context, ac auth.Context, symbolCode string) (err error) {
	defer func(start time.Time) { l.observe("configure", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	if err = requireAuth(ac, l.controller); err != nil {
		return err
	}
	if !asset.NewSymbol(symbolCode, 0).IsValid() {
		return fmt.Errorf("%w: %q", asset.ErrInvalidSymbol, symbolCode)
	}

	entry := &domain.JournalEntry{
		Op:    domain.OpConfigure,
		From:  l.controller,
		Value: symbolCode,
	}
	err = l.commit(ctx, func(s storage.Stores) error {
		if err := s.Config.Set(ctx, &domain.TokenConfig{SymbolCode: symbolCode}); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrAlreadyConfigured
			}
			return fmt.Errorf("persist config: %w", err)
		}
		return l.record(ctx, s, entry)
	})
	if err != nil {
		return err
	}

	l.committed(entry)
	return nil
}

// Create registers a new token with an auto-assigned id, zero supply, and
// the fixed max supply cap. Requires authorization by the ledger's
// controlling identity; the issuer is merely recorded as the future
// authority for the token.
func (l *Ledger) Create(ctx context.Context, ac auth.Context, issuer domain.Identity, status uint32, name, description, field1, field2, field3 string) (id domain.TokenID, err error) {
	defer func(start time.Time) { l.observe("create", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	id, err = l.tokens.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("next token id: %w", err)
	}
	if err = l.create(ctx, ac, id, issuer, status, name, description, field1, field2, field3); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateWithID registers a new token under a caller-supplied id. Fails with
// ErrDuplicateTokenID if the id is already taken.
func (l *Ledger) CreateWithID(ctx context.Context, ac auth.Context, id domain.TokenID, issuer domain.Identity, status uint32, name, description, field1, field2, field3 string) (err error) {
	defer func(start time.Time) { l.observe("create", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	// Id 0 is reserved as "no token"; auto-assignment starts at 1.
	if id == 0 {
		return ErrInvalidTokenID
	}
	return l.create(ctx, ac, id, issuer, status, name, description, field1, field2, field3)
}

// create validates and commits one token registration. Caller holds the lock.
func (l *Ledger) create(ctx context.Context, ac auth.Context, id domain.TokenID, issuer domain.Identity, status uint32, name, description, field1, field2, field3 string) error {
	if err := requireAuth(ac, l.controller); err != nil {
		return err
	}

	cfg, err := l.config.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotConfigured
		}
		return fmt.Errorf("load config: %w", err)
	}

	if !issuer.IsValid() {
		return ErrInvalidIdentity
	}
	if err := validateStatus(status); err != nil {
		return err
	}
	for _, f := range []string{name, description, field1, field2, field3} {
		if err := validateField(f); err != nil {
			return err
		}
	}

	symbol := asset.NewSymbol(cfg.SymbolCode, 0)
	token := &domain.Token{
		ID:          id,
		Issuer:      issuer,
		Supply:      asset.New(0, symbol),
		MaxSupply:   asset.New(l.capUnits, symbol),
		Status:      status,
		Name:        name,
		Description: description,
		Field1:      field1,
		Field2:      field2,
		Field3:      field3,
	}

	payload, err := json.Marshal(domain.CreatePayload{
		Issuer:      issuer,
		Status:      status,
		Name:        name,
		Description: description,
		Field1:      field1,
		Field2:      field2,
		Field3:      field3,
	})
	if err != nil {
		return fmt.Errorf("encode create payload: %w", err)
	}

	entry := &domain.JournalEntry{
		Op:      domain.OpCreate,
		TokenID: id,
		From:    issuer,
		Payer:   l.controller,
		Value:   string(payload),
	}
	err = l.commit(ctx, func(s storage.Stores) error {
		if err := s.Tokens.Insert(ctx, token, l.controller); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrDuplicateTokenID
			}
			return fmt.Errorf("insert token: %w", err)
		}
		return l.record(ctx, s, entry)
	})
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.TokensCreated.Inc()
	}
	l.committed(entry)
	return nil
}

// Issue mints quantity of a token to an account. Requires authorization by
// the token's issuer; the issuer subsidizes a newly created balance record.
// Fails with ErrSupplyExceeded when the new supply would pass the cap.
func (l *Ledger) Issue(ctx context.Context, ac auth.Context, to domain.Identity, tokenID domain.TokenID, quantity asset.Amount, memo string) (err error) {
	defer func(start time.Time) { l.observe("issue", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err = l.config.Get(ctx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotConfigured
		}
		return fmt.Errorf("load config: %w", err)
	}

	token, err := l.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if err = requireAuth(ac, token.Issuer); err != nil {
		return err
	}

	if !to.IsValid() {
		return ErrInvalidIdentity
	}
	if err = validateQuantity(quantity, token); err != nil {
		return err
	}
	if err = validateField(memo); err != nil {
		return err
	}

	newSupply, addErr := token.Supply.Add(quantity)
	if addErr != nil || newSupply.Units > token.MaxSupply.Units {
		return fmt.Errorf("%w: supply %d + %d > max %d",
			ErrSupplyExceeded, token.Supply.Units, quantity.Units, token.MaxSupply.Units)
	}

	// All checks passed; commit.
	token.Supply = newSupply
	entry := &domain.JournalEntry{
		Op:      domain.OpIssue,
		TokenID: tokenID,
		From:    token.Issuer,
		To:      to,
		Units:   quantity.Units,
		Payer:   token.Issuer,
		Memo:    memo,
	}
	err = l.commit(ctx, func(s storage.Stores) error {
		if err := s.Tokens.Update(ctx, token); err != nil {
			return fmt.Errorf("update supply: %w", err)
		}
		if err := credit(ctx, s, to, tokenID, quantity, token.Issuer); err != nil {
			return err
		}
		return l.record(ctx, s, entry)
	})
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.UnitsIssued.Add(float64(quantity.Units))
	}
	l.committed(entry)
	return nil
}

// Transfer moves quantity of a token between accounts. Requires
// authorization by the sender. If the receiver independently authorized the
// same operation, the receiver pays for a newly created balance record;
// otherwise the sender pays. Supply is conserved.
func (l *Ledger) Transfer(ctx context.Context, ac auth.Context, from, to domain.Identity, tokenID domain.TokenID, quantity asset.Amount, memo string) (err error) {
	defer func(start time.Time) { l.observe("transfer", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	if !from.IsValid() || !to.IsValid() {
		return ErrInvalidIdentity
	}
	if from == to {
		return ErrSelfTransfer
	}
	if err = requireAuth(ac, from); err != nil {
		return err
	}

	token, err := l.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if err = validateQuantity(quantity, token); err != nil {
		return err
	}
	if err = validateField(memo); err != nil {
		return err
	}

	// Sanity bound only; the sender's balance is the binding constraint.
	if quantity.Units > token.Supply.Units {
		return fmt.Errorf("%w: %d exceeds token supply %d",
			ErrInvalidAmount, quantity.Units, token.Supply.Units)
	}

	// Receiver subsidizes a new balance record only when it co-signed the
	// transfer; otherwise the sender pays.
	payer := from
	if ac.Authorized(to) {
		payer = to
	}

	entry := &domain.JournalEntry{
		Op:      domain.OpTransfer,
		TokenID: tokenID,
		From:    from,
		To:      to,
		Units:   quantity.Units,
		Payer:   payer,
		Memo:    memo,
	}
	err = l.commit(ctx, func(s storage.Stores) error {
		if err := debit(ctx, s, from, tokenID, quantity); err != nil {
			return err
		}
		if err := credit(ctx, s, to, tokenID, quantity, payer); err != nil {
			return err
		}
		return l.record(ctx, s, entry)
	})
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.Transfers.Inc()
	}
	l.committed(entry)
	return nil
}

// SetStatus updates a token's lifecycle status. Requires authorization by
// the token's issuer.
func (l *Ledger) SetStatus(ctx context.Context, ac auth.Context, tokenID domain.TokenID, status uint32) error {
	return l.setField(ctx, ac, tokenID, domain.OpSetStatus, strconv.FormatUint(uint64(status), 10),
		func(t *domain.Token) error {
			if err := validateStatus(status); err != nil {
				return err
			}
			t.Status = status
			return nil
		})
}

// SetName updates a token's name. Requires authorization by the token's issuer.
func (l *Ledger) SetName(ctx context.Context, ac auth.Context, tokenID domain.TokenID, name string) error {
	return l.setField(ctx, ac, tokenID, domain.OpSetName, name,
		func(t *domain.Token) error {
			if err := validateField(name); err != nil {
				return err
			}
			t.Name = name
			return nil
		})
}

// SetDescription updates a token's description. Requires authorization by
// the token's issuer.
func (l *Ledger) SetDescription(ctx context.Context, ac auth.Context, tokenID domain.TokenID, description string) error {
	return l.setField(ctx, ac, tokenID, domain.OpSetDescription, description,
		func(t *domain.Token) error {
			if err := validateField(description); err != nil {
				return err
			}
			t.Description = description
			return nil
		})
}

// SetField1 updates a token's first free-form metadata field.
func (l *Ledger) SetField1(ctx context.Context, ac auth.Context, tokenID domain.TokenID, value string) error {
	return l.setField(ctx, ac, tokenID, domain.OpSetField1, value,
		func(t *domain.Token) error {
			if err := validateField(value); err != nil {
				return err
			}
			t.Field1 = value
			return nil
		})
}

// SetField2 updates a token's second free-form metadata field.
func (l *Ledger) SetField2(ctx context.Context, ac auth.Context, tokenID domain.TokenID, value string) error {
	return l.setField(ctx, ac, tokenID, domain.OpSetField2, value,
		func(t *domain.Token) error {
			if err := validateField(value); err != nil {
				return err
			}
			t.Field2 = value
			return nil
		})
}

// SetField3 updates a token's third free-form metadata field.
func (l *Ledger) SetField3(ctx context.Context, ac auth.Context, tokenID domain.TokenID, value string) error {
	return l.setField(ctx, ac, tokenID, domain.OpSetField3, value,
		func(t *domain.Token) error {
			if err := validateField(value); err != nil {
				return err
			}
			t.Field3 = value
			return nil
		})
}

// setField runs one issuer-authorized single-field mutation.
func (l *Ledger) setField(ctx context.Context, ac auth.Context, tokenID domain.TokenID, op domain.Op, value string, apply func(*domain.Token) error) (err error) {
	defer func(start time.Time) { l.observe(string(op), start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	token, err := l.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if err = requireAuth(ac, token.Issuer); err != nil {
		return err
	}
	if err = apply(token); err != nil {
		return err
	}

	entry := &domain.JournalEntry{
		Op:      op,
		TokenID: tokenID,
		From:    token.Issuer,
		Value:   value,
	}
	err = l.commit(ctx, func(s storage.Stores) error {
		if err := s.Tokens.Update(ctx, token); err != nil {
			return fmt.Errorf("update token: %w", err)
		}
		return l.record(ctx, s, entry)
	})
	if err != nil {
		return err
	}

	l.committed(entry)
	return nil
}

// getToken loads a token, mapping a missing record to ErrTokenNotFound.
func (l *Ledger) getToken(ctx context.Context, tokenID domain.TokenID) (*domain.Token, error) {
	token, err := l.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTokenNotFound, tokenID)
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// validateQuantity checks well-formedness, positivity, and symbol match
// against the token.
func validateQuantity(quantity asset.Amount, token *domain.Token) error {
	if !quantity.IsValid() || !quantity.IsPositive() {
		return ErrInvalidAmount
	}
	if !quantity.Symbol.Equal(token.MaxSupply.Symbol) {
		return fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch,
			quantity.Symbol, token.MaxSupply.Symbol)
	}
	return nil
}

// credit adds quantity to the (owner, tokenID) balance, creating the record
// billed to payer on first credit. Callers have already authorized the
// surrounding action and validated the quantity's symbol; writes go through
// the commit set's store view.
func credit(ctx context.Context, s storage.Stores, owner domain.Identity, tokenID domain.TokenID, quantity asset.Amount, payer domain.Identity) error {
	balance, err := s.Balances.Get(ctx, owner, tokenID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load balance: %w", err)
		}
		b := &domain.Balance{Owner: owner, TokenID: tokenID, Amount: quantity}
		if err := s.Balances.Insert(ctx, b, payer); err != nil {
			return fmt.Errorf("insert balance: %w", err)
		}
		return nil
	}

	sum, err := balance.Amount.Add(quantity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	balance.Amount = sum
	if err := s.Balances.Update(ctx, balance); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// debit subtracts quantity from the (owner, tokenID) balance. Rejects any
// subtraction that would go negative; the record persists at zero.
func debit(ctx context.Context, s storage.Stores, owner domain.Identity, tokenID domain.TokenID, quantity asset.Amount) error {
	balance, err := s.Balances.Get(ctx, owner, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s has no balance for token %d", ErrNoBalance, owner, tokenID)
		}
		return fmt.Errorf("load balance: %w", err)
	}

	if quantity.Units > balance.Amount.Units {
		return fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientBalance, balance.Amount.Units, quantity.Units)
	}

	diff, err := balance.Amount.Sub(quantity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	balance.Amount = diff
	if err := s.Balances.Update(ctx, balance); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

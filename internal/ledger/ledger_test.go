package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shared-asset-ledger/internal/asset"
	"shared-asset-ledger/internal/auth"
	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/storage/memory"
)

const (
	controller = domain.Identity("ledger.ctl")
	issuer     = domain.Identity("issuer")
	alice      = domain.Identity("alice")
	bob        = domain.Identity("bob")
)

type testEnv struct {
	ledger   *Ledger
	tokens   *memory.TokenStore
	balances *memory.BalanceStore
	journal  *memory.JournalStore
}

// newTestEnv builds a ledger on memory stores with a fixed clock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	config := memory.NewConfigStore()
	env := &testEnv{
		tokens:   memory.NewTokenStore(),
		balances: memory.NewBalanceStore(),
		journal:  memory.NewJournalStore(),
	}
	env.ledger = New(controller, config, env.tokens, env.balances,
		WithJournal(env.journal),
		WithTxRunner(memory.NewTxRunner(config, env.tokens, env.balances)),
		WithClock(func() int64 { return 1704067200000 }),
	)
	return env
}

// newConfiguredEnv additionally applies Configure("SHR").
func newConfiguredEnv(t *testing.T) *testEnv {
	t.Helper()

	env := newTestEnv(t)
	if err := env.ledger.Configure(context.Background(), auth.NewContext(controller), "SHR"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return env
}

func shr(units int64) asset.Amount {
	return asset.New(units, asset.NewSymbol("SHR", 0))
}

// createToken registers a token for issuer and returns its id.
func createToken(t *testing.T, env *testEnv) domain.TokenID {
	t.Helper()

	id, err := env.ledger.Create(context.Background(), auth.NewContext(controller),
		issuer, 1, "Shared Asset", "one share lot", "", "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return id
}

// checkConservation verifies that the sum of all balances equals the supply.
func checkConservation(t *testing.T, env *testEnv, tokenID domain.TokenID) {
	t.Helper()

	ctx := context.Background()
	token, err := env.tokens.GetByID(ctx, tokenID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	balances, err := env.balances.ListByToken(ctx, tokenID)
	if err != nil {
		t.Fatalf("ListByToken failed: %v", err)
	}

	var sum int64
	for _, b := range balances {
		if b.Amount.Units < 0 {
			t.Errorf("negative balance for %s: %d", b.Owner, b.Amount.Units)
		}
		sum += b.Amount.Units
	}
	if sum != token.Supply.Units {
		t.Errorf("conservation violated: balances sum %d, supply %d", sum, token.Supply.Units)
	}
	if token.Supply.Units < 0 || token.Supply.Units > token.MaxSupply.Units {
		t.Errorf("supply out of bounds: %d not in [0, %d]", token.Supply.Units, token.MaxSupply.Units)
	}
}

func TestConfigure_WriteOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ac := auth.NewContext(controller)

	if err := env.ledger.Configure(ctx, ac, "SHR"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	err := env.ledger.Configure(ctx, ac, "OTHER")
	if !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("Expected ErrAlreadyConfigured, got %v", err)
	}

	cfg, err := env.ledger.Config(ctx)
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if cfg.SymbolCode != "SHR" {
		t.Errorf("second configure value was applied: got %s", cfg.SymbolCode)
	}
}

func TestConfigure_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	err := env.ledger.Configure(context.Background(), auth.NewContext(issuer), "SHR")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}

	if _, err := env.ledger.Config(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Error("unauthorized configure must not persist anything")
	}
}

func TestConfigure_BadSymbol(t *testing.T) {
	env := newTestEnv(t)
	ac := auth.NewContext(controller)

	for _, code := range []string{"", "shr", "TOOLONGCD"} {
		if err := env.ledger.Configure(context.Background(), ac, code); err == nil {
			t.Errorf("expected error for symbol %q", code)
		}
	}
}

func TestCreate_NotConfigured(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Create(context.Background(), auth.NewContext(controller),
		issuer, 1, "Token", "", "", "", "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	env := newConfiguredEnv(t)

	first := createToken(t, env)
	second := createToken(t, env)
	if first != 1 || second != 2 {
		t.Errorf("id assignment mismatch: got %d, %d", first, second)
	}

	token, err := env.ledger.Token(context.Background(), first)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Supply.Units != 0 {
		t.Errorf("new token supply: got %d, want 0", token.Supply.Units)
	}
	if token.MaxSupply.Units != DefaultMaxSupplyUnits {
		t.Errorf("new token max supply: got %d, want %d", token.MaxSupply.Units, DefaultMaxSupplyUnits)
	}
	if token.MaxSupply.Symbol.Code != "SHR" || token.MaxSupply.Symbol.Precision != 0 {
		t.Errorf("new token symbol: got %v", token.MaxSupply.Symbol)
	}
	if token.Issuer != issuer {
		t.Errorf("issuer mismatch: got %s", token.Issuer)
	}
}

func TestCreate_Unauthorized(t *testing.T) {
	env := newConfiguredEnv(t)

	// The issuer alone cannot create; only the controlling identity can.
	_, err := env.ledger.Create(context.Background(), auth.NewContext(issuer),
		issuer, 1, "Token", "", "", "", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestCreate_FieldTooLong(t *testing.T) {
	env := newConfiguredEnv(t)
	long := strings.Repeat("x", 257)

	_, err := env.ledger.Create(context.Background(), auth.NewContext(controller),
		issuer, 1, long, "", "", "", "")
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("Expected ErrFieldTooLong, got %v", err)
	}

	// Exactly 256 bytes is allowed.
	_, err = env.ledger.Create(context.Background(), auth.NewContext(controller),
		issuer, 1, strings.Repeat("x", 256), "", "", "", "")
	if err != nil {
		t.Fatalf("256-byte name rejected: %v", err)
	}
}

func TestCreate_InvalidStatus(t *testing.T) {
	env := newConfiguredEnv(t)

	_, err := env.ledger.Create(context.Background(), auth.NewContext(controller),
		issuer, 0, "Token", "", "", "", "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("Expected ErrInvalidStatus, got %v", err)
	}
}

func TestCreateWithID_Duplicate(t *testing.T) {
	env := newConfiguredEnv(t)
	ctx := context.Background()
	ac := auth.NewContext(controller)

	if err := env.ledger.CreateWithID(ctx, ac, 5, issuer, 1, "Token", "", "", "", ""); err != nil {
		t.Fatalf("CreateWithID failed: %v", err)
	}

	err := env.ledger.CreateWithID(ctx, ac, 5, issuer, 1, "Other", "", "", "", "")
	if !errors.Is(err, ErrDuplicateTokenID) {
		t.Fatalf("Expected ErrDuplicateTokenID, got %v", err)
	}

	// Auto-increment continues past the explicit id.
	id, err := env.ledger.Create(ctx, ac, issuer, 1, "Next", "", "", "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != 6 {
		t.Errorf("auto id after explicit 5: got %d, want 6", id)
	}
}

func TestCreateWithID_ZeroIDRejected(t *testing.T) {
	env := newConfiguredEnv(t)
	ctx := context.Background()

	err := env.ledger.CreateWithID(ctx, auth.NewContext(controller), 0, issuer, 1, "Token", "", "", "", "")
	if !errors.Is(err, ErrInvalidTokenID) {
		t.Fatalf("Expected ErrInvalidTokenID, got %v", err)
	}

	tokens, err := env.tokens.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("Rejected create registered a token: %d", len(tokens))
	}
}

func TestIssue_TokenNotFound(t *testing.T) {
	env := newConfiguredEnv(t)

	err := env.ledger.Issue(context.Background(), auth.NewContext(issuer), alice, 99, shr(10), "")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestIssue_Unauthorized(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	err := env.ledger.Issue(ctx, auth.NewContext(alice), alice, id, shr(10), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}

	// The controller is not the issuer either.
	err = env.ledger.Issue(ctx, auth.NewContext(controller), alice, id, shr(10), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}

	// Nothing moved.
	token, err := env.ledger.Token(ctx, id)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Supply.Units != 0 {
		t.Errorf("supply changed by unauthorized issue: %d", token.Supply.Units)
	}
	if _, err := env.ledger.Balance(ctx, alice, id); !errors.Is(err, ErrNoBalance) {
		t.Error("balance record created by unauthorized issue")
	}
}

func TestIssue_SupplyExceeded(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()
	ac := auth.NewContext(issuer)

	if err := env.ledger.Issue(ctx, ac, alice, id, shr(60), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	err := env.ledger.Issue(ctx, ac, alice, id, shr(41), "")
	if !errors.Is(err, ErrSupplyExceeded) {
		t.Fatalf("Expected ErrSupplyExceeded, got %v", err)
	}

	// The failed issue applied no mutation.
	token, err := env.ledger.Token(ctx, id)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Supply.Units != 60 {
		t.Errorf("supply after rejected issue: got %d, want 60", token.Supply.Units)
	}
	b, err := env.ledger.Balance(ctx, alice, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if b.Amount.Units != 60 {
		t.Errorf("balance after rejected issue: got %d, want 60", b.Amount.Units)
	}

	// Issuing up to the cap exactly is allowed.
	if err := env.ledger.Issue(ctx, ac, alice, id, shr(40), ""); err != nil {
		t.Fatalf("Issue to cap failed: %v", err)
	}
	checkConservation(t, env, id)
}

func TestIssue_InvalidQuantity(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()
	ac := auth.NewContext(issuer)

	for _, q := range []asset.Amount{shr(0), shr(-5)} {
		if err := env.ledger.Issue(ctx, ac, alice, id, q, ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount for %d units, got %v", q.Units, err)
		}
	}

	err := env.ledger.Issue(ctx, ac, alice, id, asset.New(10, asset.NewSymbol("USD", 0)), "")
	if !errors.Is(err, ErrSymbolMismatch) {
		t.Errorf("Expected ErrSymbolMismatch, got %v", err)
	}

	err = env.ledger.Issue(ctx, ac, alice, id, shr(10), strings.Repeat("m", 257))
	if !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("Expected ErrFieldTooLong for long memo, got %v", err)
	}
}

func TestIssue_CreditsPayer(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(10), "first lot"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// The issuer subsidizes the new balance record.
	b, err := env.ledger.Balance(ctx, alice, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if b.Payer != issuer {
		t.Errorf("payer mismatch: got %s, want %s", b.Payer, issuer)
	}
}

func TestTransfer_RoundTrip(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(100), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := env.ledger.Transfer(ctx, auth.NewContext(alice), alice, bob, id, shr(40), "rent"); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	token, err := env.ledger.Token(ctx, id)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Supply.Units != 100 {
		t.Errorf("supply changed by transfer: got %d, want 100", token.Supply.Units)
	}

	a, err := env.ledger.Balance(ctx, alice, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if a.Amount.Units != 60 {
		t.Errorf("sender balance: got %d, want 60", a.Amount.Units)
	}

	b, err := env.ledger.Balance(ctx, bob, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if b.Amount.Units != 40 {
		t.Errorf("receiver balance: got %d, want 40", b.Amount.Units)
	}

	checkConservation(t, env, id)
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(30), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	err := env.ledger.Transfer(ctx, auth.NewContext(alice), alice, bob, id, shr(31), "")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	// Both balances unchanged.
	a, err := env.ledger.Balance(ctx, alice, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if a.Amount.Units != 30 {
		t.Errorf("sender balance after rejected transfer: got %d, want 30", a.Amount.Units)
	}
	if _, err := env.ledger.Balance(ctx, bob, id); !errors.Is(err, ErrNoBalance) {
		t.Error("receiver record created by rejected transfer")
	}
}

func TestTransfer_NoBalance(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	// Supply exists, but bob was never credited.
	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(30), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	err := env.ledger.Transfer(ctx, auth.NewContext(bob), bob, alice, id, shr(10), "")
	if !errors.Is(err, ErrNoBalance) {
		t.Fatalf("Expected ErrNoBalance, got %v", err)
	}
}

func TestTransfer_ExactBalanceLeavesZeroRecord(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(25), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := env.ledger.Transfer(ctx, auth.NewContext(alice), alice, bob, id, shr(25), ""); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	// The sender's record persists at exactly zero.
	a, err := env.ledger.Balance(ctx, alice, id)
	if err != nil {
		t.Fatalf("sender record deleted after exact transfer: %v", err)
	}
	if a.Amount.Units != 0 {
		t.Errorf("sender balance: got %d, want 0", a.Amount.Units)
	}

	b, err := env.ledger.Balance(ctx, bob, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if b.Amount.Units != 25 {
		t.Errorf("receiver balance: got %d, want 25", b.Amount.Units)
	}
	checkConservation(t, env, id)
}

func TestTransfer_Unauthorized(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(30), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// bob cannot move alice's balance.
	err := env.ledger.Transfer(ctx, auth.NewContext(bob), alice, bob, id, shr(10), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestTransfer_SelfTransfer(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)

	err := env.ledger.Transfer(context.Background(), auth.NewContext(alice), alice, alice, id, shr(1), "")
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("Expected ErrSelfTransfer, got %v", err)
	}
}

func TestTransfer_PayerSelection(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(100), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Sender-only authorization: the sender pays for bob's new record.
	if err := env.ledger.Transfer(ctx, auth.NewContext(alice), alice, bob, id, shr(10), ""); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	b, err := env.ledger.Balance(ctx, bob, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if b.Payer != alice {
		t.Errorf("payer mismatch: got %s, want %s", b.Payer, alice)
	}

	// Receiver co-authorizes: the receiver pays for its own new record.
	carol := domain.Identity("carol")
	if err := env.ledger.Transfer(ctx, auth.NewContext(alice, carol), alice, carol, id, shr(10), ""); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	c, err := env.ledger.Balance(ctx, carol, id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if c.Payer != carol {
		t.Errorf("payer mismatch: got %s, want %s", c.Payer, carol)
	}
}

func TestSetName_Idempotent(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()
	ac := auth.NewContext(issuer)

	if err := env.ledger.SetName(ctx, ac, id, "X"); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if err := env.ledger.SetName(ctx, ac, id, "X"); err != nil {
		t.Fatalf("Second SetName failed: %v", err)
	}

	token, err := env.ledger.Token(ctx, id)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Name != "X" {
		t.Errorf("name mismatch: got %s, want X", token.Name)
	}

	// Oversized value is rejected and the stored name is unchanged.
	err = env.ledger.SetName(ctx, ac, id, strings.Repeat("y", 257))
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("Expected ErrFieldTooLong, got %v", err)
	}
	token, err = env.ledger.Token(ctx, id)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Name != "X" {
		t.Errorf("name changed by rejected setter: got %s", token.Name)
	}
}

func TestSetters_RequireIssuer(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	// Even the controlling identity cannot update a token it does not issue.
	for name, call := range map[string]func() error{
		"SetStatus":      func() error { return env.ledger.SetStatus(ctx, auth.NewContext(controller), id, 2) },
		"SetName":        func() error { return env.ledger.SetName(ctx, auth.NewContext(controller), id, "n") },
		"SetDescription": func() error { return env.ledger.SetDescription(ctx, auth.NewContext(controller), id, "d") },
		"SetField1":      func() error { return env.ledger.SetField1(ctx, auth.NewContext(controller), id, "f") },
		"SetField2":      func() error { return env.ledger.SetField2(ctx, auth.NewContext(controller), id, "f") },
		"SetField3":      func() error { return env.ledger.SetField3(ctx, auth.NewContext(controller), id, "f") },
	} {
		if err := call(); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestSetters_TokenNotFound(t *testing.T) {
	env := newConfiguredEnv(t)

	err := env.ledger.SetDescription(context.Background(), auth.NewContext(issuer), 42, "d")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestSetStatus_Zero(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)

	err := env.ledger.SetStatus(context.Background(), auth.NewContext(issuer), id, 0)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("Expected ErrInvalidStatus, got %v", err)
	}
}

func TestSetFields_Commit(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()
	ac := auth.NewContext(issuer)

	if err := env.ledger.SetStatus(ctx, ac, id, 3); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := env.ledger.SetDescription(ctx, ac, id, "updated"); err != nil {
		t.Fatalf("SetDescription failed: %v", err)
	}
	if err := env.ledger.SetField1(ctx, ac, id, "a"); err != nil {
		t.Fatalf("SetField1 failed: %v", err)
	}
	if err := env.ledger.SetField2(ctx, ac, id, "b"); err != nil {
		t.Fatalf("SetField2 failed: %v", err)
	}
	if err := env.ledger.SetField3(ctx, ac, id, "c"); err != nil {
		t.Fatalf("SetField3 failed: %v", err)
	}

	token, err := env.ledger.Token(ctx, id)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.Status != 3 || token.Description != "updated" ||
		token.Field1 != "a" || token.Field2 != "b" || token.Field3 != "c" {
		t.Errorf("setter results not committed: %+v", token)
	}
}

func TestConservation_AcrossOperationSequence(t *testing.T) {
	env := newConfiguredEnv(t)
	ctx := context.Background()
	first := createToken(t, env)
	second := createToken(t, env)

	ops := []func() error{
		func() error { return env.ledger.Issue(ctx, auth.NewContext(issuer), alice, first, shr(50), "") },
		func() error { return env.ledger.Issue(ctx, auth.NewContext(issuer), bob, first, shr(30), "") },
		func() error { return env.ledger.Issue(ctx, auth.NewContext(issuer), alice, second, shr(70), "") },
		func() error {
			return env.ledger.Transfer(ctx, auth.NewContext(alice), alice, bob, first, shr(20), "")
		},
		func() error {
			return env.ledger.Transfer(ctx, auth.NewContext(bob), bob, alice, first, shr(50), "")
		},
		func() error {
			return env.ledger.Transfer(ctx, auth.NewContext(alice), alice, "carol", second, shr(70), "")
		},
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d failed: %v", i, err)
		}
		checkConservation(t, env, first)
		checkConservation(t, env, second)
	}
}

func TestJournal_RecordsCommittedOperationsOnly(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(10), "lot"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A rejected operation must leave no journal entry.
	if err := env.ledger.Issue(ctx, auth.NewContext(alice), alice, id, shr(10), ""); err == nil {
		t.Fatal("expected unauthorized issue to fail")
	}

	entries, err := env.journal.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	// configure + create + issue
	if len(entries) != 3 {
		t.Fatalf("journal length mismatch: got %d, want 3", len(entries))
	}

	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("seq mismatch at %d: got %d", i, e.Seq)
		}
		if e.EntryID == "" {
			t.Errorf("entry %d missing id", i)
		}
	}
	if entries[0].Op != domain.OpConfigure || entries[1].Op != domain.OpCreate || entries[2].Op != domain.OpIssue {
		t.Errorf("op order mismatch: %s, %s, %s", entries[0].Op, entries[1].Op, entries[2].Op)
	}
	if entries[2].Units != 10 || entries[2].To != alice || entries[2].Memo != "lot" {
		t.Errorf("issue entry content mismatch: %+v", entries[2])
	}
}

func TestHolders_DerivedView(t *testing.T) {
	env := newConfiguredEnv(t)
	id := createToken(t, env)
	ctx := context.Background()

	if err := env.ledger.Issue(ctx, auth.NewContext(issuer), alice, id, shr(40), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	// alice empties her balance into bob; her zero record must drop out of
	// the holders view while remaining in the balance ledger.
	if err := env.ledger.Transfer(ctx, auth.NewContext(alice), alice, bob, id, shr(40), ""); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	holders, err := env.ledger.Holders(ctx, id)
	if err != nil {
		t.Fatalf("Holders failed: %v", err)
	}
	if len(holders) != 1 || holders[0].Owner != bob {
		t.Errorf("holders mismatch: %+v", holders)
	}
}

// flakyJournal fails Insert while armed, simulating a journal backend outage
// mid-operation.
type flakyJournal struct {
	*memory.JournalStore
	fail bool
}

func (j *flakyJournal) Insert(ctx context.Context, e *domain.JournalEntry) error {
	if j.fail {
		return errors.New("journal backend unavailable")
	}
	return j.JournalStore.Insert(ctx, e)
}

// newFlakyEnv builds a ledger whose journal can be switched to fail.
func newFlakyEnv(t *testing.T) (*Ledger, *testEnv, *flakyJournal) {
	t.Helper()

	config := memory.NewConfigStore()
	env := &testEnv{
		tokens:   memory.NewTokenStore(),
		balances: memory.NewBalanceStore(),
	}
	journal := &flakyJournal{JournalStore: memory.NewJournalStore()}
	env.journal = journal.JournalStore
	led := New(controller, config, env.tokens, env.balances,
		WithJournal(journal),
		WithTxRunner(memory.NewTxRunner(config, env.tokens, env.balances)),
		WithClock(func() int64 { return 1704067200000 }),
	)
	env.ledger = led

	if err := led.Configure(context.Background(), auth.NewContext(controller), "SHR"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return led, env, journal
}

func TestIssue_JournalFailureLeavesNoState(t *testing.T) {
	led, env, journal := newFlakyEnv(t)
	ctx := context.Background()
	id := createToken(t, env)

	journal.fail = true
	if err := led.Issue(ctx, auth.NewContext(issuer), alice, id, shr(10), ""); err == nil {
		t.Fatal("Expected Issue to fail with the journal down")
	}

	token, err := env.tokens.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if token.Supply.Units != 0 {
		t.Errorf("Supply mutated by failed issue: got %d, want 0", token.Supply.Units)
	}
	if _, err := env.balances.Get(ctx, alice, id); err == nil {
		t.Error("Balance record exists after failed issue")
	}
	entries, err := env.journal.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Journal length after failed issue: got %d, want 2", len(entries))
	}

	// The next committed operation continues the sequence without a gap.
	journal.fail = false
	if err := led.Issue(ctx, auth.NewContext(issuer), alice, id, shr(10), ""); err != nil {
		t.Fatalf("Issue failed after journal recovered: %v", err)
	}
	entries, err = env.journal.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if last := entries[len(entries)-1].Seq; last != 3 {
		t.Errorf("Seq after recovery: got %d, want 3", last)
	}
	checkConservation(t, env, id)
}

func TestTransfer_JournalFailureLeavesNoState(t *testing.T) {
	led, env, journal := newFlakyEnv(t)
	ctx := context.Background()
	id := createToken(t, env)
	if err := led.Issue(ctx, auth.NewContext(issuer), alice, id, shr(100), ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	journal.fail = true
	if err := led.Transfer(ctx, auth.NewContext(alice), alice, bob, id, shr(40), ""); err == nil {
		t.Fatal("Expected Transfer to fail with the journal down")
	}

	b, err := env.balances.Get(ctx, alice, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if b.Amount.Units != 100 {
		t.Errorf("Sender balance mutated by failed transfer: got %d, want 100", b.Amount.Units)
	}
	if _, err := env.balances.Get(ctx, bob, id); err == nil {
		t.Error("Receiver balance record exists after failed transfer")
	}
	entries, err := env.journal.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Journal length after failed transfer: got %d, want 3", len(entries))
	}
	checkConservation(t, env, id)
}

package ledger

import "errors"

// Every precondition failure aborts the whole operation with one of these
// kinds and applies no mutation. All of them are deterministic functions of
// the input and current state, so identical inputs against identical state
// always fail (or succeed) identically.
var (
	// ErrAlreadyConfigured is returned when configure is called twice.
	ErrAlreadyConfigured = errors.New("ledger is already configured")

	// ErrNotConfigured is returned when an operation requires the symbol
	// configuration and none has been set.
	ErrNotConfigured = errors.New("ledger is not configured")

	// ErrTokenNotFound is returned when the referenced token does not exist.
	ErrTokenNotFound = errors.New("token does not exist")

	// ErrDuplicateTokenID is returned when an explicitly supplied token id
	// is already taken.
	ErrDuplicateTokenID = errors.New("token id already exists")

	// ErrInvalidTokenID is returned when an explicitly supplied token id is
	// the reserved value 0.
	ErrInvalidTokenID = errors.New("token id 0 is reserved")

	// ErrFieldTooLong is returned when a metadata string or memo exceeds
	// the 256 byte bound.
	ErrFieldTooLong = errors.New("field exceeds 256 bytes")

	// ErrInvalidStatus is returned for a zero status value.
	ErrInvalidStatus = errors.New("status must be positive")

	// ErrInvalidIdentity is returned for an empty account identity.
	ErrInvalidIdentity = errors.New("identity must not be empty")

	// ErrSelfTransfer is returned when sender and receiver are the same.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrInvalidAmount is returned for a malformed or non-positive quantity.
	ErrInvalidAmount = errors.New("invalid or non-positive quantity")

	// ErrSymbolMismatch is returned when a quantity's symbol differs from
	// the token's symbol.
	ErrSymbolMismatch = errors.New("quantity symbol does not match token symbol")

	// ErrSupplyExceeded is returned when issuing would push supply above
	// the token's max supply.
	ErrSupplyExceeded = errors.New("quantity exceeds available supply")

	// ErrNoBalance is returned when debiting an account that has no balance
	// record for the token.
	ErrNoBalance = errors.New("no balance record for owner")

	// ErrInsufficientBalance is returned when debiting more than the
	// account holds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnauthorized is returned when the operation lacks the required
	// authorization.
	ErrUnauthorized = errors.New("missing required authorization")
)

// errorKind maps an operation error to a stable metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyConfigured):
		return "already_configured"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, ErrDuplicateTokenID):
		return "duplicate_token_id"
	case errors.Is(err, ErrInvalidTokenID):
		return "invalid_token_id"
	case errors.Is(err, ErrFieldTooLong):
		return "field_too_long"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrSymbolMismatch):
		return "symbol_mismatch"
	case errors.Is(err, ErrSupplyExceeded):
		return "supply_exceeded"
	case errors.Is(err, ErrNoBalance):
		return "no_balance"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}

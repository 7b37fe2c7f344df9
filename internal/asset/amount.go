// Package asset implements the fixed-point quantity type used by the ledger.
// An Amount carries raw integer units together with a Symbol (currency code +
// decimal precision); arithmetic is only valid between Amounts sharing a
// symbol and is checked for overflow.
package asset

import (
	"errors"
	"fmt"
)

// MaxUnits is the largest magnitude an Amount may hold, matching the
// 2^62-1 bound of the original on-chain asset type.
const MaxUnits int64 = (1 << 62) - 1

// MaxSymbolCodeLen bounds the currency code length.
const MaxSymbolCodeLen = 7

// Arithmetic and validation errors.
var (
	// ErrOverflow is returned when an addition or subtraction would leave
	// the valid units range.
	ErrOverflow = errors.New("amount arithmetic overflows")

	// ErrSymbolMismatch is returned when combining Amounts of different symbols.
	ErrSymbolMismatch = errors.New("amounts have different symbols")

	// ErrInvalidSymbol is returned for a malformed symbol code.
	ErrInvalidSymbol = errors.New("invalid symbol code")
)

// Symbol identifies a currency: an uppercase A-Z code of 1..7 characters
// plus the number of decimal places its amounts are expressed in.
type Symbol struct {
	Code      string // uppercase A-Z, 1..7 chars
	Precision uint8  // number of decimal places
}

// NewSymbol creates a Symbol.
func NewSymbol(code string, precision uint8) Symbol {
	return Symbol{Code: code, Precision: precision}
}

// IsValid reports whether the symbol code is well-formed.
func (s Symbol) IsValid() bool {
	if len(s.Code) == 0 || len(s.Code) > MaxSymbolCodeLen {
		return false
	}
	for i := 0; i < len(s.Code); i++ {
		if s.Code[i] < 'A' || s.Code[i] > 'Z' {
			return false
		}
	}
	return true
}

// Equal reports whether two symbols have the same code and precision.
func (s Symbol) Equal(other Symbol) bool {
	return s.Code == other.Code && s.Precision == other.Precision
}

// String formats the symbol as "PRECISION,CODE" (e.g. "0,SHR").
func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// Amount is a fixed-point quantity: raw integer units at Symbol.Precision
// decimal places.
type Amount struct {
	Units  int64
	Symbol Symbol
}

// New creates an Amount of the given raw units.
func New(units int64, symbol Symbol) Amount {
	return Amount{Units: units, Symbol: symbol}
}

// IsValid reports whether the amount has a well-formed symbol and its units
// are inside the representable range.
func (a Amount) IsValid() bool {
	return a.Symbol.IsValid() && a.Units >= -MaxUnits && a.Units <= MaxUnits
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.Units > 0
}

// Add returns a + b. Returns ErrSymbolMismatch or ErrOverflow without
// producing a partial result.
func (a Amount) Add(b Amount) (Amount, error) {
	if !a.Symbol.Equal(b.Symbol) {
		return Amount{}, ErrSymbolMismatch
	}
	sum := a.Units + b.Units
	if (b.Units > 0 && sum < a.Units) || (b.Units < 0 && sum > a.Units) {
		return Amount{}, ErrOverflow
	}
	if sum > MaxUnits || sum < -MaxUnits {
		return Amount{}, ErrOverflow
	}
	return Amount{Units: sum, Symbol: a.Symbol}, nil
}

// Sub returns a - b. Returns ErrSymbolMismatch or ErrOverflow without
// producing a partial result.
func (a Amount) Sub(b Amount) (Amount, error) {
	if !a.Symbol.Equal(b.Symbol) {
		return Amount{}, ErrSymbolMismatch
	}
	diff := a.Units - b.Units
	if (b.Units < 0 && diff < a.Units) || (b.Units > 0 && diff > a.Units) {
		return Amount{}, ErrOverflow
	}
	if diff > MaxUnits || diff < -MaxUnits {
		return Amount{}, ErrOverflow
	}
	return Amount{Units: diff, Symbol: a.Symbol}, nil
}

// String formats the amount with its precision applied (e.g. "100 SHR",
// "1.50 USD").
func (a Amount) String() string {
	if a.Symbol.Precision == 0 {
		return fmt.Sprintf("%d %s", a.Units, a.Symbol.Code)
	}
	div := int64(1)
	for i := uint8(0); i < a.Symbol.Precision; i++ {
		div *= 10
	}
	whole := a.Units / div
	frac := a.Units % div
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%0*d %s", whole, a.Symbol.Precision, frac, a.Symbol.Code)
}

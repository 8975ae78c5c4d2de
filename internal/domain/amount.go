/**
 * @description
 * This file defines the Amount type used for every token quantity in the issuer.
 * Amounts are fixed-point signed integers carrying three implied decimal digits,
 * which keeps all ledger arithmetic in integer space and avoids floating-point
 * inaccuracies with financial data.
 *
 * @notes
 * - Event payloads and the ledger itself always use raw base units; the decimal
 *   conversion helpers exist only for the API/config boundary, where operators
 *   supply human-readable values such as "10.5".
 */

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of implied decimal digits carried by an Amount.
const AmountDecimals = 3

// Amount is a token quantity in base units (thousandths of a whole token).
type Amount int64

var (
	// ErrAmountNegative is returned when an operation receives a negative amount.
	ErrAmountNegative = errors.New("amount must not be negative")
	// ErrAmountNotPositive is returned when an operation requires a strictly positive amount.
	ErrAmountNotPositive = errors.New("amount must be positive")
	// ErrAmountOverflow is returned when a checked subtraction would go below zero.
	ErrAmountOverflow = errors.New("insufficient amount")
)

// NewAmount converts raw base units into an Amount.
func NewAmount(baseUnits int64) Amount {
	return Amount(baseUnits)
}

// ParseAmount converts a human-readable decimal string (e.g. "10.5") into base units.
// More than AmountDecimals fractional digits is rejected rather than silently truncated.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	scaled := d.Shift(AmountDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, AmountDecimals)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	return Amount(scaled.IntPart()), nil
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a < 0 }

// CheckedSub subtracts b from a, failing if the result would be negative.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrAmountOverflow
	}
	return a - b, nil
}

// SaturatingSub subtracts b from a, clamping at zero.
func (a Amount) SaturatingSub(b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}

// String renders the amount as raw base units. Event payloads rely on this form.
func (a Amount) String() string {
	return fmt.Sprintf("%d", int64(a))
}

// Decimal renders the amount as a human-readable decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -AmountDecimals)
}

// FormatDecimal renders the amount as a human-readable decimal string.
func (a Amount) FormatDecimal() string {
	return a.Decimal().String()
}

/**
 * @description
 * This file defines the fee policy types for the issuer: a FeeSpec is either a
 * fixed amount or a percentage of the transacted amount, and StableCoinConfig
 * bundles the per-issuer fee and exchange-limit policy.
 *
 * @notes
 * - Percentage fees round half-up, using integer arithmetic only; the product
 *   is widened to 128 bits so no representable amount can overflow it.
 * - A fixed fee is returned unconditionally, even when it exceeds the amount;
 *   callers bound-check separately (CheckedSub on the transacted amount).
 */

package domain

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrPercentageOutOfRange is returned when a percentage fee above 100 is configured.
var ErrPercentageOutOfRange = errors.New("percentage fee must be between 0 and 100")

// FeeKind discriminates the two fee policies.
type FeeKind string

const (
	FeeKindFixed      FeeKind = "fixed"
	FeeKindPercentage FeeKind = "percentage"
)

// FeeSpec is a fee policy: a fixed amount or a percentage in [0, 100].
type FeeSpec struct {
	Kind       FeeKind `json:"kind"`
	Fixed      Amount  `json:"fixed,omitempty"`
	Percentage uint8   `json:"percentage,omitempty"`
}

// FixedFee builds a fixed-amount fee spec.
func FixedFee(fee Amount) FeeSpec {
	return FeeSpec{Kind: FeeKindFixed, Fixed: fee}
}

// PercentageFee builds a percentage fee spec. Percentages above 100 are rejected
// here, at the configuration boundary, never at calculation time.
func PercentageFee(percentage uint8) (FeeSpec, error) {
	if percentage > 100 {
		return FeeSpec{}, ErrPercentageOutOfRange
	}
	return FeeSpec{Kind: FeeKindPercentage, Percentage: percentage}, nil
}

// CalculateFee computes the fee owed on amount under this spec.
func (f FeeSpec) CalculateFee(amount Amount) Amount {
	switch f.Kind {
	case FeeKindFixed:
		return f.Fixed
	case FeeKindPercentage:
		if f.Percentage == 0 {
			return 0
		}
		return divRounded(amount, int64(f.Percentage))
	default:
		return 0
	}
}

// String renders the spec the way events record it: "1" for Fixed(1), "1%" for Percentage(1).
func (f FeeSpec) String() string {
	if f.Kind == FeeKindPercentage {
		return fmt.Sprintf("%d%%", f.Percentage)
	}
	return f.Fixed.String()
}

// divRounded computes v * p / 100 rounded half-up. The product is carried in
// 128 bits so the largest representable amount at p=100 cannot overflow.
func divRounded(v Amount, p int64) Amount {
	if v <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(v), uint64(p))
	quo, rem := bits.Div64(hi, lo, 100)
	if rem >= 50 {
		quo++
	}
	return Amount(quo)
}

// StableCoinConfig is the per-issuer policy: transfer and exchange fees plus the
// exchange limit assigned to newly created users. Each issuer instance owns its
// config; there is no process-wide mutable state.
type StableCoinConfig struct {
	TransferFee          FeeSpec
	WrappedExchangeFee   FeeSpec
	DefaultExchangeLimit Amount
}

// DefaultStableCoinConfig returns the issuer's starting policy: a fixed
// transfer fee of one base unit, a 1% wrapped-exchange fee and a 1000-unit
// default limit.
func DefaultStableCoinConfig() StableCoinConfig {
	return StableCoinConfig{
		TransferFee:          FixedFee(1),
		WrappedExchangeFee:   FeeSpec{Kind: FeeKindPercentage, Percentage: 1},
		DefaultExchangeLimit: 1000,
	}
}

// Package fixedpoint implements the integer fixed-point arithmetic used for
// interest rates and accrual. Rates are fractions scaled by a 1e18 denominator
// and all math is checked: operations fail with ErrOverflow instead of
// wrapping, and division always rounds down so accrual never over-credits.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Denominator is the fixed-point scale: a Rate of 1e18 means 100% per second.
const Denominator uint64 = 1_000_000_000_000_000_000

// rateDigits is the decimal exponent matching Denominator.
const rateDigits = 18

// ErrOverflow is returned when a checked computation does not fit in the
// result type.
var ErrOverflow = errors.New("arithmetic overflow")

// Rate is an interest rate per second, scaled by Denominator.
// Rate(5e16) is 5% per second.
type Rate uint64

var denom256 = uint256.NewInt(Denominator)

// ParseRate converts a decimal string such as "0.05" into a Rate,
// truncating anything below the fixed-point resolution.
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse rate %q: rate must not be negative", s)
	}
	scaled := d.Shift(rateDigits).Truncate(0).BigInt()
	if !scaled.IsUint64() {
		return 0, fmt.Errorf("parse rate %q: %w", s, ErrOverflow)
	}
	return Rate(scaled.Uint64()), nil
}

// Decimal returns the rate as an exact decimal fraction, for display and
// config round-trips. The stored integer representation stays authoritative.
func (r Rate) Decimal() decimal.Decimal {
	return decimal.NewFromUint64(uint64(r)).Shift(-rateDigits)
}

func (r Rate) String() string {
	return r.Decimal().String()
}

// Interest returns floor(principal * r * elapsed / Denominator), the interest
// accrued on principal over elapsed seconds. The triple product is carried in
// a 256-bit accumulator, so the only overflow case is the final result not
// fitting in uint64.
func Interest(principal uint64, r Rate, elapsed int64) (uint64, error) {
	if elapsed <= 0 || principal == 0 || r == 0 {
		return 0, nil
	}
	acc := uint256.NewInt(principal)
	acc.Mul(acc, uint256.NewInt(uint64(r)))
	acc.Mul(acc, uint256.NewInt(uint64(elapsed)))
	acc.Div(acc, denom256)
	if !acc.IsUint64() {
		return 0, fmt.Errorf("interest on %d at %s over %ds: %w", principal, r, elapsed, ErrOverflow)
	}
	return acc.Uint64(), nil
}

// Grow returns principal plus the interest accrued over elapsed seconds.
func Grow(principal uint64, r Rate, elapsed int64) (uint64, error) {
	interest, err := Interest(principal, r, elapsed)
	if err != nil {
		return 0, err
	}
	return AddChecked(principal, interest)
}

// AddChecked returns a+b, failing instead of wrapping.
func AddChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("add %d + %d: %w", a, b, ErrOverflow)
	}
	return sum, nil
}

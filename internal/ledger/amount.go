package ledger

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultAuctionDuration is the bidding window opened by a first bid.
	DefaultAuctionDuration = 24 * time.Hour

	// CashbackVesting is how long a winner waits after redemption before the
	// cashback can be claimed.
	CashbackVesting = 30 * 24 * time.Hour
)

// MaxAmountDigits bounds the decimal digits of any amount. 78 digits holds
// every uint256 value.
const MaxAmountDigits = 78

// CashbackRate is the share of the winning bid returned to the winner.
var CashbackRate = decimal.New(95, -2)

// Cashback returns floor(paid × CashbackRate).
func Cashback(paid decimal.Decimal) decimal.Decimal {
	return paid.Mul(CashbackRate).Floor()
}

// ParseAmount parses a token amount. Plain integers and scientific notation
// ("10e18") are accepted; fractional and negative values are not.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// MustAmount is like ParseAmount but panics on error.
// Use only in tests or for constants.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ValidateAmount checks that d is a non-negative integer of at most
// MaxAmountDigits digits. The exponent is bounded before any rescaling, so
// inputs like "1e50000000" are rejected without being expanded.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}
	if !exponentInRange(d) {
		return fmt.Errorf("amount exceeds %d digits", MaxAmountDigits)
	}
	if !d.IsInteger() {
		return fmt.Errorf("amount must be a whole number of base units")
	}
	if len(d.BigInt().String()) > MaxAmountDigits {
		return fmt.Errorf("amount exceeds %d digits", MaxAmountDigits)
	}
	return nil
}

// FormatAmount renders an amount as a plain integer string, the form used
// for storage and the journal. Values whose exponent is out of range keep
// their coefficient/exponent form instead of being expanded.
func FormatAmount(d decimal.Decimal) string {
	if !exponentInRange(d) {
		return d.Coefficient().String() + "e" + strconv.FormatInt(int64(d.Exponent()), 10)
	}
	return d.StringFixed(0)
}

func exponentInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -MaxAmountDigits && exp <= MaxAmountDigits
}

// Instant bounds: times outside this range have no int64 nanosecond form.
var (
	MinInstant = time.Unix(0, math.MinInt64).UTC()
	MaxInstant = time.Unix(0, math.MaxInt64).UTC()
)

// InstantInRange reports whether t can be stored as unix nanoseconds.
func InstantInRange(t time.Time) bool {
	return !t.Before(MinInstant) && !t.After(MaxInstant)
}

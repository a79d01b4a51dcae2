package types

import "github.com/shopspring/decimal"

const (
	// CurrencyScale is the scale at which monetary values are finally stored.
	CurrencyScale = 2

	// RateScale is the intermediate scale used when applying percentage
	// rates. Rates are never truncated to currency scale before being
	// multiplied, otherwise stacked surcharges compound rounding error.
	RateScale = 20
)

// IsPositive reports whether x > 0 at full precision.
func IsPositive(x decimal.Decimal) bool {
	return x.GreaterThan(decimal.Zero)
}

// IsNegative reports whether x < 0 at full precision.
func IsNegative(x decimal.Decimal) bool {
	return x.LessThan(decimal.Zero)
}

// IsZero reports whether x == 0 at full precision.
func IsZero(x decimal.Decimal) bool {
	return x.IsZero()
}

// ApplyPercent returns amount * percent / 100 computed at RateScale with
// banker's rounding. The result keeps the intermediate scale; callers round
// to currency scale only at the point a value is stored or returned.
func ApplyPercent(amount decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Shift(-2).RoundBank(RateScale)
}

// RoundCurrency rounds a monetary value to currency scale using banker's rounding.
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(CurrencyScale)
}

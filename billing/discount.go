/*
discount.go - Percentage discount policy

PURPOSE:
  Validates and applies percentage discounts. Used identically for
  registration fees and course fees. Pure functions, no side effects.

INVARIANTS:
  - Discount percent must be in [0,100] inclusive; anything else is a
    validation error, never silently clamped.
  - The discounted amount is never negative.
*/
package billing

import "github.com/shopspring/decimal"

// ValidateDiscount checks that a discount percent is in [0,100].
// A missing discount is resolved to zero by the caller before this runs;
// invalid input is never coerced.
func ValidateDiscount(field string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return NewValidationError(field, "discount out of range, must be 0-100%")
	}
	return nil
}

// ApplyDiscount returns base reduced by percent, rounded to cents.
// Fails with a validation error when percent is outside [0,100].
func ApplyDiscount(base, percent decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateDiscount("discount", percent); err != nil {
		return decimal.Zero, err
	}
	discounted := RoundMoney(base.Mul(hundred.Sub(percent)).Div(hundred))
	if discounted.IsNegative() {
		return decimal.Zero, nil
	}
	return discounted, nil
}

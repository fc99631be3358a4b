package shared

import "github.com/shopspring/decimal"

// BalanceTolerance is the maximum absolute debit/credit difference a batch
// may carry and still be considered balanced at two decimal places.
const BalanceTolerance = 0.005

// Round rounds a monetary amount to the given number of decimal places using
// half-up rounding. Reports round at build time; stored values are never
// truncated.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Balanced reports whether debit and credit totals agree within tolerance.
func Balanced(debit, credit float64) bool {
	diff := decimal.NewFromFloat(debit).Sub(decimal.NewFromFloat(credit)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(BalanceTolerance))
}

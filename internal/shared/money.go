package shared

import "math"

// RoundCents rounds a monetary amount to two decimal places. Amounts are
// stored as float64; rounding at the persistence boundary keeps drift out
// of stored totals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

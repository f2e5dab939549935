package domain

import "math"

// Round2 rounds a monetary quantity to 2 decimal places, half away from
// zero. Applied only at presentation and aggregation boundaries, never
// mid-calculation, so rounding error does not compound.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package optimizer

import "github.com/shopspring/decimal"

// roundDown truncates a quantity to the given decimal places. Sells and
// buys both round down so rounding can only move a trade toward
// feasibility: a sell never exceeds its lot, a buy never overspends.
func roundDown(quantity float64, places int) float64 {
	out, _ := decimal.NewFromFloat(quantity).RoundDown(int32(places)).Float64()
	return out
}

// roundUp rounds a quantity up to the given decimal places. Used only by
// cash floor repair, where feasibility lies above the raw value.
func roundUp(quantity float64, places int) float64 {
	out, _ := decimal.NewFromFloat(quantity).RoundUp(int32(places)).Float64()
	return out
}

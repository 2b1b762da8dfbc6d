package costmodel

// MinViableNotional calculates the minimum trade value at which combined
// transaction costs stay within an acceptable fraction of the trade.
//
// With a 2.00 fixed + 0.2% commission structure:
// - 50 trade: 2.10 cost = 4.2% drag, not worthwhile
// - 400 trade: 2.80 cost = 0.7% drag, acceptable
//
// Args:
//
//	commissionFixed: fixed cost per trade
//	commissionPercent: variable cost as a fraction (0.002 = 0.2%)
//	maxCostRatio: maximum acceptable cost-to-trade ratio (e.g. 0.01)
//
// Returns:
//
//	Minimum trade notional; callers typically feed this into min_notional.
func MinViableNotional(commissionFixed, commissionPercent, maxCostRatio float64) float64 {
	// Solve for notional where (fixed + notional*percent) / notional = max_ratio
	denominator := maxCostRatio - commissionPercent
	if denominator <= 0 {
		// Variable cost alone exceeds the ratio: no notional is viable,
		// return a high floor instead
		return 1000.0
	}
	return commissionFixed / denominator
}

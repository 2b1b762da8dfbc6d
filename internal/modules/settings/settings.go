// Package settings provides the per-strategy settings bundle: objective
// weights, thresholds, and trading rules for one optimization run.
package settings

import "fmt"

// Settings holds every tunable for a single strategy optimization.
// A weight of zero disables its cost component entirely.
type Settings struct {
	// Objective weights
	WeightDrift       float64 `json:"weight_drift"`        // Allocation drift cost weight
	WeightTax         float64 `json:"weight_tax"`          // Realized tax cost weight
	WeightTransaction float64 `json:"weight_transaction"`  // Spread and commission cost weight
	WeightFactorModel float64 `json:"weight_factor_model"` // Factor exposure deviation weight
	WeightCashDrag    float64 `json:"weight_cash_drag"`    // Idle cash cost weight

	// Trade triggering deadbands
	RebalanceThreshold float64 `json:"rebalance_threshold"` // Minimum overweight drift before a position is sold
	BuyThreshold       float64 `json:"buy_threshold"`       // Minimum underweight drift before a target is bought

	// Holding and harvesting rules
	HoldingTimeDays     int     `json:"holding_time_days"`      // Minimum lot age before an ordinary sell
	ShouldTLH           bool    `json:"should_tlh"`             // Enable tax-loss harvesting
	TLHMinLossThreshold float64 `json:"tlh_min_loss_threshold"` // Minimum relative loss (loss / basis value) to harvest

	// Wash-sale parameters
	WashSaleWindowDays int     `json:"wash_sale_window_days"` // Lookback/lookforward window for wash-sale matching
	WashSaleBuffer     float64 `json:"wash_sale_buffer"`      // Fractional widening of the window (0.1 = 10% wider)

	// Position bands, relative to target weight. Zero disables a bound;
	// bands never apply to securities with a zero target.
	RangeMinWeightMultiplier float64 `json:"range_min_weight_multiplier"`
	RangeMaxWeightMultiplier float64 `json:"range_max_weight_multiplier"`

	// Trade shaping
	MinNotional       float64 `json:"min_notional"`        // Trades below this value are suppressed
	RankPenaltyFactor float64 `json:"rank_penalty_factor"` // Penalty per preference rank on buys
	TradeRounding     int     `json:"trade_rounding"`      // Decimal places for trade quantities

	// Transaction costs beyond the quoted spread
	CommissionFixed   float64 `json:"commission_fixed"`   // Fixed cost per trade
	CommissionPercent float64 `json:"commission_percent"` // Variable cost as a fraction of notional

	// Cash management
	MinCashFraction float64 `json:"min_cash_fraction"` // Hard floor as a fraction of portfolio value
	CashReservation float64 `json:"cash_reservation"`  // Hard floor as an absolute amount
	DeMinimisValue  float64 `json:"de_minimis_value"`  // Cash below this never counts as drag
}

// DefaultSettings returns the settings bundle used when a strategy does
// not carry its own.
func DefaultSettings() Settings {
	return Settings{
		WeightDrift:              1.0,
		WeightTax:                1.0,
		WeightTransaction:        1.0,
		WeightFactorModel:        1.0,
		WeightCashDrag:           1.0,
		RebalanceThreshold:       0.0,
		BuyThreshold:             0.0,
		HoldingTimeDays:          30,
		ShouldTLH:                false,
		TLHMinLossThreshold:      0.02,
		WashSaleWindowDays:       30,
		WashSaleBuffer:           0.0,
		RangeMinWeightMultiplier: 0.0, // Disabled
		RangeMaxWeightMultiplier: 0.0, // Disabled
		MinNotional:              0.0,
		RankPenaltyFactor:        0.0,
		TradeRounding:            4,
		CommissionFixed:          0.0,
		CommissionPercent:        0.0,
		MinCashFraction:          0.0,
		CashReservation:          0.0,
		DeMinimisValue:           0.0,
	}
}

// Validate checks the bundle for values the optimizer cannot work with.
func (s Settings) Validate() error {
	weights := map[string]float64{
		"weight_drift":        s.WeightDrift,
		"weight_tax":          s.WeightTax,
		"weight_transaction":  s.WeightTransaction,
		"weight_factor_model": s.WeightFactorModel,
		"weight_cash_drag":    s.WeightCashDrag,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, w)
		}
	}

	if s.RebalanceThreshold < 0 {
		return fmt.Errorf("rebalance_threshold must not be negative, got %v", s.RebalanceThreshold)
	}
	if s.BuyThreshold < 0 {
		return fmt.Errorf("buy_threshold must not be negative, got %v", s.BuyThreshold)
	}
	if s.HoldingTimeDays < 0 {
		return fmt.Errorf("holding_time_days must not be negative, got %d", s.HoldingTimeDays)
	}
	if s.TLHMinLossThreshold < 0 {
		return fmt.Errorf("tlh_min_loss_threshold must not be negative, got %v", s.TLHMinLossThreshold)
	}
	if s.WashSaleWindowDays < 0 {
		return fmt.Errorf("wash_sale_window_days must not be negative, got %d", s.WashSaleWindowDays)
	}
	if s.WashSaleBuffer < 0 {
		return fmt.Errorf("wash_sale_buffer must not be negative, got %v", s.WashSaleBuffer)
	}
	if s.RangeMinWeightMultiplier < 0 {
		return fmt.Errorf("range_min_weight_multiplier must not be negative, got %v", s.RangeMinWeightMultiplier)
	}
	if s.RangeMaxWeightMultiplier < 0 {
		return fmt.Errorf("range_max_weight_multiplier must not be negative, got %v", s.RangeMaxWeightMultiplier)
	}
	if s.RangeMinWeightMultiplier > 0 && s.RangeMaxWeightMultiplier > 0 &&
		s.RangeMinWeightMultiplier > s.RangeMaxWeightMultiplier {
		return fmt.Errorf("range_min_weight_multiplier %v exceeds range_max_weight_multiplier %v",
			s.RangeMinWeightMultiplier, s.RangeMaxWeightMultiplier)
	}
	if s.MinNotional < 0 {
		return fmt.Errorf("min_notional must not be negative, got %v", s.MinNotional)
	}
	if s.RankPenaltyFactor < 0 {
		return fmt.Errorf("rank_penalty_factor must not be negative, got %v", s.RankPenaltyFactor)
	}
	if s.TradeRounding < 0 || s.TradeRounding > 8 {
		return fmt.Errorf("trade_rounding must be in [0, 8], got %d", s.TradeRounding)
	}
	if s.CommissionFixed < 0 {
		return fmt.Errorf("commission_fixed must not be negative, got %v", s.CommissionFixed)
	}
	if s.CommissionPercent < 0 {
		return fmt.Errorf("commission_percent must not be negative, got %v", s.CommissionPercent)
	}
	if s.MinCashFraction < 0 || s.MinCashFraction > 1 {
		return fmt.Errorf("min_cash_fraction must be in [0, 1], got %v", s.MinCashFraction)
	}
	if s.CashReservation < 0 {
		return fmt.Errorf("cash_reservation must not be negative, got %v", s.CashReservation)
	}
	if s.DeMinimisValue < 0 {
		return fmt.Errorf("de_minimis_value must not be negative, got %v", s.DeMinimisValue)
	}

	return nil
}

// CashFloor returns the hard minimum cash for a portfolio of the given
// total value: the larger of the fractional floor and the absolute
// reservation.
func (s Settings) CashFloor(portfolioValue float64) float64 {
	floor := s.MinCashFraction * portfolioValue
	if s.CashReservation > floor {
		floor = s.CashReservation
	}
	return floor
}

// SettingDescriptions holds human-readable descriptions for the bundle's
// fields, keyed by their JSON names.
var SettingDescriptions = map[string]string{
	"weight_drift":                "Weight of the allocation drift component (0 disables)",
	"weight_tax":                  "Weight of the realized tax cost component (0 disables)",
	"weight_transaction":          "Weight of the spread and commission component (0 disables)",
	"weight_factor_model":         "Weight of the factor exposure deviation component (0 disables)",
	"weight_cash_drag":            "Weight of the idle cash component (0 disables)",
	"rebalance_threshold":         "Minimum overweight drift before a position is sold (0.05 = 5 points)",
	"buy_threshold":               "Minimum underweight drift before a target is bought",
	"holding_time_days":           "Minimum days a lot must be held before an ordinary sell; accepted harvests bypass this",
	"should_tlh":                  "Enable tax-loss harvesting",
	"tlh_min_loss_threshold":      "Minimum relative loss (unrealized loss / basis value) before a lot is harvested",
	"wash_sale_window_days":       "Days before and after a loss sale in which a repurchase disallows the loss",
	"wash_sale_buffer":            "Fractional widening of the wash-sale window (0.1 = 10% wider on both sides)",
	"range_min_weight_multiplier": "Lower position band as a multiple of target weight (0 disables)",
	"range_max_weight_multiplier": "Upper position band as a multiple of target weight (0 disables)",
	"min_notional":                "Trades below this value are suppressed",
	"rank_penalty_factor":         "Objective penalty per preference rank on buys, scaled by notional",
	"trade_rounding":              "Decimal places for trade quantities (0 = whole units)",
	"commission_fixed":            "Fixed commission per trade",
	"commission_percent":          "Variable commission as a fraction of notional (0.002 = 0.2%)",
	"min_cash_fraction":           "Hard cash floor as a fraction of portfolio value",
	"cash_reservation":            "Hard cash floor as an absolute amount",
	"de_minimis_value":            "Cash at or below this amount never counts as drag",
}

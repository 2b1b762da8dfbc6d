// Package domain provides core domain models and types.
package domain

import "time"

// TradeAction represents the side of a trade
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// OptimizationMode selects which cost components drive a strategy run
type OptimizationMode string

const (
	// ModeTaxAware optimizes the full weighted objective (drift, tax,
	// transaction, factor model, cash drag)
	ModeTaxAware OptimizationMode = "TAX_AWARE"
	// ModeDriftOnly optimizes allocation drift alone, ignoring tax and
	// transaction costs (other weights treated as zero)
	ModeDriftOnly OptimizationMode = "DRIFT_ONLY"
)

// Security represents a tradeable instrument and its market state
type Security struct {
	ID                     string             `json:"id"`
	AssetClass             string             `json:"asset_class,omitempty"`
	Price                  float64            `json:"price"`
	Spread                 float64            `json:"spread"` // Fraction of price lost to bid/ask crossing
	FactorExposures        map[string]float64 `json:"factor_exposures,omitempty"`
	SubstantiallyIdentical []string           `json:"substantially_identical,omitempty"` // IDs treated as the same security for wash-sale matching
}

// TaxLot represents a single acquisition of a security with its own
// cost basis and holding period
type TaxLot struct {
	ID              string    `json:"id"`
	SecurityID      string    `json:"security_id"`
	StrategyID      string    `json:"strategy_id"`
	Quantity        float64   `json:"quantity"`
	CostBasis       float64   `json:"cost_basis"` // Per-unit acquisition cost
	AcquisitionDate time.Time `json:"acquisition_date"`
}

// MarketValue returns the lot's current value at the given price
func (l TaxLot) MarketValue(price float64) float64 {
	return l.Quantity * price
}

// UnrealizedGain returns the lot's unrealized gain (negative for a loss)
// at the given price
func (l TaxLot) UnrealizedGain(price float64) float64 {
	return l.Quantity * (price - l.CostBasis)
}

// Target represents a target allocation group: a weight assigned to an
// ordered list of eligible securities. The order is a preference ranking;
// earlier entries are preferred destinations for new money.
type Target struct {
	AssetClass  string   `json:"asset_class"`
	Weight      float64  `json:"weight"`
	SecurityIDs []string `json:"security_ids"`
}

// FactorModel describes the reference factor exposures a portfolio
// should track, with optional per-factor importance weights
type FactorModel struct {
	Reference map[string]float64 `json:"reference"`
	Weights   map[string]float64 `json:"weights,omitempty"` // Defaults to 1.0 per factor when absent
}

// Strategy is the unit of optimization: one account sleeve with its own
// cash, lots, targets, and settings bundle
type Strategy struct {
	ID           string             `json:"id"`
	OwnerID      string             `json:"owner_id,omitempty"`   // Wash-sale scope; defaults to ID
	AccountID    string             `json:"account_id,omitempty"` // Netting scope; defaults to ID
	Cash         float64            `json:"cash"`
	Lots         []TaxLot           `json:"lots"`
	Targets      []Target           `json:"targets"`
	ClassTargets map[string]float64 `json:"class_targets,omitempty"` // Optional asset-class level targets
	Factors      *FactorModel       `json:"factors,omitempty"`
	Mode         OptimizationMode   `json:"mode"`
	Restricted   []string           `json:"restricted,omitempty"` // Security IDs blocked from trading
}

// Owner returns the wash-sale scope for the strategy
func (s Strategy) Owner() string {
	if s.OwnerID != "" {
		return s.OwnerID
	}
	return s.ID
}

// Account returns the netting scope for the strategy
func (s Strategy) Account() string {
	if s.AccountID != "" {
		return s.AccountID
	}
	return s.ID
}

package costmodel

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
)

// State is a candidate portfolio state: quantities per security plus cash
type State struct {
	Positions map[string]float64
	Cash      float64
}

// Value returns total portfolio value at the given prices.
func (s State) Value(securities map[string]domain.Security) float64 {
	total := s.Cash
	for id, qty := range s.Positions {
		total += qty * securities[id].Price
	}
	return total
}

// Weights returns the per-security weight map. A zero-value portfolio
// yields all-zero weights.
func (s State) Weights(securities map[string]domain.Security) map[string]float64 {
	total := s.Value(securities)
	weights := make(map[string]float64, len(s.Positions))
	if total <= 0 {
		return weights
	}
	for id, qty := range s.Positions {
		weights[id] = qty * securities[id].Price / total
	}
	return weights
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	positions := make(map[string]float64, len(s.Positions))
	for id, qty := range s.Positions {
		positions[id] = qty
	}
	return State{Positions: positions, Cash: s.Cash}
}

// Realized carries the tax consequences of a candidate trade set: net
// realized gains by term with wash-sale-disallowed losses already
// removed, plus the removed amount for reporting.
type Realized struct {
	ShortTermGain  float64 // Signed net short-term gain
	LongTermGain   float64 // Signed net long-term gain
	DisallowedLoss float64 // Loss amount excluded by wash-sale rules (no tax benefit)
}

// Breakdown is the five-component cost decomposition of one state. The
// component fields are raw (drift and factor in weight units, the rest
// in currency); Total is the weighted objective with currency components
// normalized by portfolio value, so a weight of 1.0 means a full weight
// unit of drift costs as much as the whole portfolio in currency.
type Breakdown struct {
	Drift       float64 `json:"drift"`
	Tax         float64 `json:"tax"`
	Transaction float64 `json:"transaction"`
	FactorModel float64 `json:"factor_model"`
	CashDrag    float64 `json:"cash_drag"`
	Total       float64 `json:"total"`
}

// TargetDrift is the per-target drift detail used in reports
type TargetDrift struct {
	AssetClass   string  `json:"asset_class"`
	TargetWeight float64 `json:"target_weight"`
	ActualWeight float64 `json:"actual_weight"`
	Deviation    float64 `json:"deviation"`
}

// Calculator evaluates the cost model for one strategy's market data,
// targets, and settings bundle.
type Calculator struct {
	securities   map[string]domain.Security
	targets      ResolvedTargets
	classTargets map[string]float64
	factors      *domain.FactorModel
	taxRates     domain.TaxRateSchedule
	cfg          settings.Settings
	log          zerolog.Logger
}

// NewCalculator creates a cost model calculator.
func NewCalculator(
	securities map[string]domain.Security,
	targets ResolvedTargets,
	classTargets map[string]float64,
	factors *domain.FactorModel,
	taxRates domain.TaxRateSchedule,
	cfg settings.Settings,
	log zerolog.Logger,
) *Calculator {
	return &Calculator{
		securities:   securities,
		targets:      targets,
		classTargets: classTargets,
		factors:      factors,
		taxRates:     taxRates,
		cfg:          cfg,
		log:          log.With().Str("component", "costmodel").Logger(),
	}
}

// Targets exposes the resolved target structure.
func (c *Calculator) Targets() ResolvedTargets {
	return c.targets
}

// DriftCost sums absolute deviations of each target group's weight from
// its target, the cash deviation, and any asset-class-level deviations.
func (c *Calculator) DriftCost(state State) float64 {
	weights := state.Weights(c.securities)
	total := state.Value(c.securities)

	var drift float64
	for i, group := range c.targets.Groups {
		drift += math.Abs(c.targets.GroupWeight(i, weights) - group.Weight)
	}

	if total > 0 {
		drift += math.Abs(state.Cash/total - c.targets.CashTarget)
	}

	for class, target := range c.classTargets {
		var actual float64
		for id, w := range weights {
			if c.securities[id].AssetClass == class {
				actual += w
			}
		}
		drift += math.Abs(actual - target)
	}

	return drift
}

// DriftRows returns per-target drift detail for a state: each group, the
// cash row, and any asset-class rows.
func (c *Calculator) DriftRows(state State) []TargetDrift {
	weights := state.Weights(c.securities)
	total := state.Value(c.securities)

	rows := make([]TargetDrift, 0, len(c.targets.Groups)+1)
	for i, group := range c.targets.Groups {
		actual := c.targets.GroupWeight(i, weights)
		rows = append(rows, TargetDrift{
			AssetClass:   group.AssetClass,
			TargetWeight: group.Weight,
			ActualWeight: actual,
			Deviation:    actual - group.Weight,
		})
	}

	cashWeight := 0.0
	if total > 0 {
		cashWeight = state.Cash / total
	}
	rows = append(rows, TargetDrift{
		AssetClass:   "cash",
		TargetWeight: c.targets.CashTarget,
		ActualWeight: cashWeight,
		Deviation:    cashWeight - c.targets.CashTarget,
	})

	for class, target := range c.classTargets {
		var actual float64
		for id, w := range weights {
			if c.securities[id].AssetClass == class {
				actual += w
			}
		}
		rows = append(rows, TargetDrift{
			AssetClass:   class,
			TargetWeight: target,
			ActualWeight: actual,
			Deviation:    actual - target,
		})
	}

	return rows
}

// TaxCost converts net realized gains to a signed currency cost: gains
// increase it, usable losses reduce it. Disallowed losses are already
// out of the nets and contribute nothing.
func (c *Calculator) TaxCost(realized Realized) float64 {
	return realized.ShortTermGain*c.taxRates.Rate(domain.GainShortTerm) +
		realized.LongTermGain*c.taxRates.Rate(domain.GainLongTerm)
}

// TransactionCost sums spread and commission costs over a trade set.
func (c *Calculator) TransactionCost(trades []domain.Trade) float64 {
	var cost float64
	for _, t := range trades {
		notional := t.Notional()
		if notional <= 0 {
			continue
		}
		cost += notional * c.securities[t.SecurityID].Spread
		cost += c.cfg.CommissionFixed + c.cfg.CommissionPercent*notional
	}
	return cost
}

// CashDragCost penalizes cash above the drag ceiling (the larger of the
// cash target value and the de minimis value) and cash below the hard
// floor. The floor term steers the solver; the floor itself remains a
// hard constraint checked by the optimizer.
func (c *Calculator) CashDragCost(state State) float64 {
	total := state.Value(c.securities)
	if total <= 0 {
		return 0
	}

	ceiling := math.Max(c.targets.CashTarget*total, c.cfg.DeMinimisValue)
	floor := c.cfg.CashFloor(total)

	var drag float64
	if state.Cash > ceiling {
		drag += state.Cash - ceiling
	}
	if state.Cash < floor {
		drag += floor - state.Cash
	}
	return drag
}

// Evaluate computes the full breakdown for a candidate state and its
// trade set. Component weights of zero disable their terms entirely:
// the component is neither computed nor reported.
func (c *Calculator) Evaluate(state State, trades []domain.Trade, realized Realized) Breakdown {
	var b Breakdown
	if c.cfg.WeightDrift > 0 {
		b.Drift = c.DriftCost(state)
	}
	if c.cfg.WeightTax > 0 {
		b.Tax = c.TaxCost(realized)
	}
	if c.cfg.WeightTransaction > 0 {
		b.Transaction = c.TransactionCost(trades)
	}
	if c.cfg.WeightFactorModel > 0 && c.factors != nil {
		b.FactorModel = c.FactorCost(state)
	}
	if c.cfg.WeightCashDrag > 0 {
		b.CashDrag = c.CashDragCost(state)
	}
	b.Total = c.weightedTotal(b, state)
	return b
}

// weightedTotal combines the components into the objective value.
// Currency components are scaled by portfolio value so the weights are
// unit-comparable with drift and factor deviation.
func (c *Calculator) weightedTotal(b Breakdown, state State) float64 {
	total := c.cfg.WeightDrift*b.Drift + c.cfg.WeightFactorModel*b.FactorModel

	value := state.Value(c.securities)
	if value > 0 {
		total += (c.cfg.WeightTax*b.Tax + c.cfg.WeightTransaction*b.Transaction + c.cfg.WeightCashDrag*b.CashDrag) / value
	}
	return total
}

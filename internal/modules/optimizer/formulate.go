package optimizer

import (
	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/costmodel"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
	"github.com/hvkshetry/rebalancer/internal/solver"
)

// penaltyWeight scales the soft-constraint terms added to the cost
// model objective. Large enough that no cost component can profitably
// trade against a constraint violation.
const penaltyWeight = 1000.0

// quantityFloor treats vanishing solver quantities as zero
const quantityFloor = 1e-9

// formulation maps a candidate set onto solver decision variables.
// Variables live in weight space: x[i] is the fraction of pre-trade
// portfolio value transacted, so every dimension is O(1) regardless of
// share price. x[0:len(sells)] are sells per lot, the rest buys per
// security. Harvest sells are pinned by degenerate bounds.
type formulation struct {
	set        candidateSet
	calc       *costmodel.Calculator
	securities map[string]domain.Security
	base       costmodel.State
	cfg        settings.Settings
	value      float64 // Pre-trade portfolio value, the weight denominator
	floor      float64
	strategyID string
}

func newFormulation(set candidateSet, calc *costmodel.Calculator, securities map[string]domain.Security, base costmodel.State, cfg settings.Settings, strategyID string) *formulation {
	value := base.Value(securities)
	return &formulation{
		set:        set,
		calc:       calc,
		securities: securities,
		base:       base,
		cfg:        cfg,
		value:      value,
		floor:      cfg.CashFloor(value),
		strategyID: strategyID,
	}
}

// sellQuantity converts the i-th sell variable to shares, clamped to
// the candidate's sellable quantity.
func (f *formulation) sellQuantity(x []float64, i int) float64 {
	s := f.set.sells[i]
	return clamp(x[i]*f.value/s.Price, 0, s.Max)
}

// buyQuantity converts the j-th buy variable to shares.
func (f *formulation) buyQuantity(x []float64, j int) float64 {
	b := f.set.buys[j]
	return clamp(x[len(f.set.sells)+j]*f.value/b.Price, 0, b.Max)
}

// apply materializes a decision vector into a candidate state, its
// trade set, and the realized gains the sells would produce.
func (f *formulation) apply(x []float64) (costmodel.State, []domain.Trade, costmodel.Realized) {
	state := f.base.Clone()
	var trades []domain.Trade
	var realized costmodel.Realized

	for i, s := range f.set.sells {
		qty := f.sellQuantity(x, i)
		if qty <= quantityFloor {
			continue
		}
		state.Positions[s.SecurityID] -= qty
		state.Cash += qty * s.Price

		gain := qty * (s.Price - s.CostBasis)
		if s.Term == domain.GainLongTerm {
			realized.LongTermGain += gain
		} else {
			realized.ShortTermGain += gain
		}
		trades = append(trades, domain.Trade{
			StrategyID: f.strategyID,
			SecurityID: s.SecurityID,
			Action:     domain.ActionSell,
			Quantity:   qty,
			Price:      s.Price,
			TaxLotID:   s.LotID,
		})
	}

	for j, b := range f.set.buys {
		qty := f.buyQuantity(x, j)
		if qty <= quantityFloor {
			continue
		}
		state.Positions[b.SecurityID] += qty
		state.Cash -= qty * b.Price
		trades = append(trades, domain.Trade{
			StrategyID: f.strategyID,
			SecurityID: b.SecurityID,
			Action:     domain.ActionBuy,
			Quantity:   qty,
			Price:      b.Price,
		})
	}

	return state, trades, realized
}

// objective is the cost model total plus soft-constraint penalties:
// cash floor shortfall, negative cash, weight band violations, and the
// rank penalty steering buys toward each group's preferred securities.
func (f *formulation) objective(x []float64) float64 {
	state, trades, realized := f.apply(x)
	breakdown := f.calc.Evaluate(state, trades, realized)

	value := state.Value(f.securities)
	if value <= 0 {
		return breakdown.Total
	}

	penalty := 0.0
	if shortfall := f.floor - state.Cash; shortfall > 0 {
		scaled := shortfall / value
		penalty += penaltyWeight * scaled * scaled
	}
	// Spending beyond all cash on hand can never settle
	if state.Cash < 0 {
		scaled := -state.Cash / value
		penalty += penaltyWeight * scaled * scaled
	}

	penalty += f.bandPenalty(state)
	penalty += f.rankPenalty(x)

	return breakdown.Total + penalty
}

// bandPenalty punishes group weights outside [target*minMult, target*maxMult].
// A zero multiplier disables its side; groups with a zero target have no band.
func (f *formulation) bandPenalty(state costmodel.State) float64 {
	minMult := f.cfg.RangeMinWeightMultiplier
	maxMult := f.cfg.RangeMaxWeightMultiplier
	if minMult <= 0 && maxMult <= 0 {
		return 0
	}

	weights := state.Weights(f.securities)
	targets := f.calc.Targets()

	var penalty float64
	for i, group := range targets.Groups {
		if group.Weight <= 0 {
			continue
		}
		w := targets.GroupWeight(i, weights)
		if minMult > 0 {
			if low := group.Weight * minMult; w < low {
				penalty += penaltyWeight * (low - w) * (low - w)
			}
		}
		if maxMult > 0 {
			if high := group.Weight * maxMult; w > high {
				penalty += penaltyWeight * (w - high) * (w - high)
			}
		}
	}
	return penalty
}

// rankPenalty charges each buy in proportion to its preference rank, so
// ties between substitutable securities break toward the group's
// first-choice listing.
func (f *formulation) rankPenalty(x []float64) float64 {
	factor := f.cfg.RankPenaltyFactor
	if factor <= 0 {
		return 0
	}
	var penalty float64
	for j, b := range f.set.buys {
		qty := f.buyQuantity(x, j)
		if qty <= quantityFloor {
			continue
		}
		penalty += factor * float64(b.Rank) * qty * b.Price / f.value
	}
	return penalty
}

// problem assembles the solver input. Harvest sells get degenerate
// bounds pinning them at their accepted weight; everything else starts
// from zero, the no-trade point.
func (f *formulation) problem() solver.Problem {
	n := len(f.set.sells) + len(f.set.buys)
	bounds := make([]solver.Bound, n)
	initial := make([]float64, n)

	for i, s := range f.set.sells {
		w := s.Max * s.Price / f.value
		if s.Harvest {
			bounds[i] = solver.Bound{Min: w, Max: w}
			initial[i] = w
		} else {
			bounds[i] = solver.Bound{Min: 0, Max: w}
		}
	}
	offset := len(f.set.sells)
	for j, b := range f.set.buys {
		bounds[offset+j] = solver.Bound{Min: 0, Max: b.Max * b.Price / f.value}
	}

	return solver.Problem{
		Objective: f.objective,
		Bounds:    bounds,
		Initial:   initial,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

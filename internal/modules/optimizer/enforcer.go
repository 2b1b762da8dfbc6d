package optimizer

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/modules/settings"
	"github.com/hvkshetry/rebalancer/internal/solver"
)

// Infeasibility sentinels. Both wrap solver.ErrInfeasible so callers can
// branch on the general condition or on the specific constraint.
var (
	// ErrCashFloorUnreachable marks a strategy whose hard cash floor cannot
	// be met even by selling every eligible share.
	ErrCashFloorUnreachable = fmt.Errorf("cash floor unreachable: %w", solver.ErrInfeasible)

	// ErrWeightBandViolated marks a trade set whose post-round group
	// weights fall outside the configured position bands.
	ErrWeightBandViolated = fmt.Errorf("weight band violated: %w", solver.ErrInfeasible)
)

// SizedSell is a sell candidate with its final quantity
type SizedSell struct {
	SellCandidate
	Quantity float64
}

// SizedBuy is a buy candidate with its final quantity
type SizedBuy struct {
	BuyCandidate
	Quantity float64
}

// Proposal is the discrete trade set that survives enforcement:
// deadbands, minimum notional, rounding, and the cash floor.
type Proposal struct {
	Sells      []SizedSell
	Buys       []SizedBuy
	Suppressed []RejectedCandidate
}

// CashDelta returns the net cash the proposal raises (positive) or
// spends (negative).
func (p Proposal) CashDelta() float64 {
	var delta float64
	for _, s := range p.Sells {
		delta += s.Quantity * s.Price
	}
	for _, b := range p.Buys {
		delta -= b.Quantity * b.Price
	}
	return delta
}

// Enforcer turns a continuous solver solution into an executable trade
// set. Each suppression is recorded with the constraint that caused it.
// Harvest sells pass through untouched by deadbands and the minimum
// notional: their loss threshold was checked at acceptance, and the
// forward restriction is already in force.
type Enforcer struct {
	cfg settings.Settings
	log zerolog.Logger
}

// NewEnforcer creates an enforcer for one strategy's settings bundle.
func NewEnforcer(cfg settings.Settings, log zerolog.Logger) *Enforcer {
	return &Enforcer{
		cfg: cfg,
		log: log.With().Str("component", "enforcer").Logger(),
	}
}

// Discretize applies the discrete constraints to a continuous solution:
//  1. deadbands on per-security weight changes,
//  2. the minimum trade notional,
//  3. rounding, sells and buys both toward feasibility (down),
//  4. buy capping so spending never breaches the cash floor,
//  5. cash repair, re-raising sells when the floor binds,
//  6. the position band re-check on the final post-round weights.
//
// Returns ErrCashFloorUnreachable when no admissible sell set can fund
// the floor, ErrWeightBandViolated when the surviving trade set leaves a
// group weight outside its band. Bands are hard: a set that breaks one
// is rejected, never emitted.
func (e *Enforcer) Discretize(f *formulation, x []float64) (Proposal, error) {
	var p Proposal

	kept, dropped := e.applySellDeadband(f, x)
	kept = e.applyMinNotional(kept, &p)
	kept = e.roundSells(kept, &p)

	cash := f.base.Cash
	for _, s := range kept {
		cash += s.Quantity * s.Price
	}

	// The floor must be funded before any buying. Re-raise sells that
	// deadbands or sizing left on the table, cheapest tax impact first.
	if cash < f.floor {
		var err error
		kept, cash, err = e.repairCashFloor(f, kept, dropped, cash)
		if err != nil {
			return Proposal{}, err
		}
	}
	p.Sells = kept

	p.Buys = e.sizeBuys(f, x, cash, &p)

	if err := e.checkWeightBands(f, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// checkWeightBands re-verifies the position bands against the final
// post-round state. The solver only steers toward the bands through a
// penalty; cash repair and buy scaling afterwards can move weights, so
// the hard check lives here.
func (e *Enforcer) checkWeightBands(f *formulation, p Proposal) error {
	minMult := e.cfg.RangeMinWeightMultiplier
	maxMult := e.cfg.RangeMaxWeightMultiplier
	if minMult <= 0 && maxMult <= 0 {
		return nil
	}

	state := f.base.Clone()
	for _, s := range p.Sells {
		state.Positions[s.SecurityID] -= s.Quantity
		state.Cash += s.Quantity * s.Price
	}
	for _, b := range p.Buys {
		state.Positions[b.SecurityID] += b.Quantity
		state.Cash -= b.Quantity * b.Price
	}

	weights := state.Weights(f.securities)
	targets := f.calc.Targets()
	for i, group := range targets.Groups {
		if group.Weight <= 0 {
			continue
		}
		w := targets.GroupWeight(i, weights)
		if minMult > 0 {
			if low := group.Weight * minMult; w < low-weightBandEpsilon {
				return fmt.Errorf("%w: %s weight %.4f below band minimum %.4f", ErrWeightBandViolated, group.AssetClass, w, low)
			}
		}
		if maxMult > 0 {
			if high := group.Weight * maxMult; w > high+weightBandEpsilon {
				return fmt.Errorf("%w: %s weight %.4f above band maximum %.4f", ErrWeightBandViolated, group.AssetClass, w, high)
			}
		}
	}
	return nil
}

// weightBandEpsilon absorbs rounding noise in band comparisons
const weightBandEpsilon = 1e-6

// applySellDeadband keeps sells whose per-security aggregate weight
// change exceeds the rebalance threshold. Suppressed non-harvest sells
// are returned separately so cash repair can reconsider them.
func (e *Enforcer) applySellDeadband(f *formulation, x []float64) (kept, dropped []SizedSell) {
	perSecurity := make(map[string]float64)
	for i := range f.set.sells {
		qty := f.sellQuantity(x, i)
		perSecurity[f.set.sells[i].SecurityID] += qty * f.set.sells[i].Price / f.value
	}

	for i, s := range f.set.sells {
		qty := f.sellQuantity(x, i)
		if qty <= quantityFloor {
			if !s.Harvest {
				dropped = append(dropped, SizedSell{SellCandidate: s})
			}
			continue
		}
		if !s.Harvest && perSecurity[s.SecurityID] <= e.cfg.RebalanceThreshold {
			dropped = append(dropped, SizedSell{SellCandidate: s, Quantity: qty})
			e.log.Debug().
				Str("security", s.SecurityID).
				Str("lot", s.LotID).
				Float64("weight_change", perSecurity[s.SecurityID]).
				Msg("Sell suppressed below rebalance threshold")
			continue
		}
		kept = append(kept, SizedSell{SellCandidate: s, Quantity: qty})
	}
	return kept, dropped
}

// applyMinNotional drops non-harvest sells below the minimum notional.
func (e *Enforcer) applyMinNotional(sells []SizedSell, p *Proposal) []SizedSell {
	if e.cfg.MinNotional <= 0 {
		return sells
	}
	kept := sells[:0]
	for _, s := range sells {
		if !s.Harvest && s.Quantity*s.Price < e.cfg.MinNotional {
			p.Suppressed = append(p.Suppressed, RejectedCandidate{
				SecurityID: s.SecurityID, LotID: s.LotID, Side: "SELL",
				Reason: fmt.Sprintf("notional %.2f below minimum %.2f", s.Quantity*s.Price, e.cfg.MinNotional),
			})
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// roundSells rounds sell quantities down so no sale can exceed its
// lot's sellable quantity. Quantities that round to zero are dropped.
func (e *Enforcer) roundSells(sells []SizedSell, p *Proposal) []SizedSell {
	kept := sells[:0]
	for _, s := range sells {
		s.Quantity = roundDown(s.Quantity, e.cfg.TradeRounding)
		if s.Quantity <= quantityFloor {
			p.Suppressed = append(p.Suppressed, RejectedCandidate{
				SecurityID: s.SecurityID, LotID: s.LotID, Side: "SELL",
				Reason: "quantity rounds to zero",
			})
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// repairCashFloor raises additional cash when the floor binds: first by
// topping up kept sells toward their sellable maximum, then by
// re-admitting suppressed candidates. Lots with the highest cost basis
// go first so the repair realizes the least gain. Repair quantities
// round up, toward the floor.
func (e *Enforcer) repairCashFloor(f *formulation, kept, dropped []SizedSell, cash float64) ([]SizedSell, float64, error) {
	needed := func() float64 { return f.floor - cash }

	byBasisDesc := func(sells []SizedSell) []int {
		idx := make([]int, len(sells))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return sells[idx[a]].CostBasis > sells[idx[b]].CostBasis
		})
		return idx
	}

	for _, i := range byBasisDesc(kept) {
		if needed() <= 0 {
			break
		}
		s := &kept[i]
		headroom := s.Max - s.Quantity
		if headroom <= quantityFloor {
			continue
		}
		add := roundUp(minFloat(headroom, needed()/s.Price), e.cfg.TradeRounding)
		add = minFloat(add, headroom)
		s.Quantity += add
		cash += add * s.Price
	}

	for _, i := range byBasisDesc(dropped) {
		if needed() <= 0 {
			break
		}
		s := dropped[i]
		qty := roundUp(minFloat(s.Max, needed()/s.Price), e.cfg.TradeRounding)
		qty = minFloat(qty, s.Max)
		if qty <= quantityFloor {
			continue
		}
		s.Quantity = qty
		cash += qty * s.Price
		kept = append(kept, s)
		e.log.Debug().
			Str("security", s.SecurityID).
			Str("lot", s.LotID).
			Float64("quantity", qty).
			Msg("Suppressed sell re-admitted to fund cash floor")
	}

	if needed() > cashEpsilon {
		return nil, 0, fmt.Errorf("%w: %.2f short after selling all eligible lots", ErrCashFloorUnreachable, needed())
	}
	return kept, cash, nil
}

// sizeBuys caps total spending at the cash available above the floor,
// scaling proportionally when the solver overspent, then rounds down
// and applies the buy deadband and minimum notional.
func (e *Enforcer) sizeBuys(f *formulation, x []float64, cash float64, p *Proposal) []SizedBuy {
	budget := cash - f.floor
	if budget <= 0 {
		for j, b := range f.set.buys {
			if f.buyQuantity(x, j) > quantityFloor {
				p.Suppressed = append(p.Suppressed, RejectedCandidate{
					SecurityID: b.SecurityID, Side: "BUY",
					Reason: "no cash available above the floor",
				})
			}
		}
		return nil
	}

	quantities := make([]float64, len(f.set.buys))
	var total float64
	for j := range f.set.buys {
		quantities[j] = f.buyQuantity(x, j)
		total += quantities[j] * f.set.buys[j].Price
	}
	if total > budget {
		scale := budget / total
		for j := range quantities {
			quantities[j] *= scale
		}
	}

	var buys []SizedBuy
	for j, b := range f.set.buys {
		qty := roundDown(quantities[j], e.cfg.TradeRounding)
		if qty <= quantityFloor {
			continue
		}
		weightChange := qty * b.Price / f.value
		if weightChange <= e.cfg.BuyThreshold {
			p.Suppressed = append(p.Suppressed, RejectedCandidate{
				SecurityID: b.SecurityID, Side: "BUY",
				Reason: fmt.Sprintf("weight change %.4f below buy threshold %.4f", weightChange, e.cfg.BuyThreshold),
			})
			continue
		}
		if e.cfg.MinNotional > 0 && qty*b.Price < e.cfg.MinNotional {
			p.Suppressed = append(p.Suppressed, RejectedCandidate{
				SecurityID: b.SecurityID, Side: "BUY",
				Reason: fmt.Sprintf("notional %.2f below minimum %.2f", qty*b.Price, e.cfg.MinNotional),
			})
			continue
		}
		buys = append(buys, SizedBuy{BuyCandidate: b, Quantity: qty})
	}
	return buys
}

// cashEpsilon absorbs rounding noise in cash comparisons
const cashEpsilon = 1e-6

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Package optimizer formulates and solves one strategy's constrained
// rebalancing problem: decision variables are sell quantities per tax
// lot and buy quantities per target-eligible security.
package optimizer

import (
	"fmt"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/costmodel"
	"github.com/hvkshetry/rebalancer/internal/modules/ledger"
	"github.com/hvkshetry/rebalancer/internal/modules/washsale"
)

// SellCandidate is one lot the solver may sell from. Harvest candidates
// are pre-accepted loss sales: their quantity is fixed, not optimized.
type SellCandidate struct {
	LotID      string
	SecurityID string
	Price      float64
	CostBasis  float64
	Max        float64 // Sellable quantity
	Term       domain.GainTerm
	Harvest    bool
}

// BuyCandidate is one security the solver may buy into
type BuyCandidate struct {
	SecurityID  string
	Price       float64
	Rank        int // Preference rank within its target group (0 = first choice)
	Max         float64
	Replacement bool // Harvest replacement buy
}

// RejectedCandidate records a candidate excluded before solving, with
// the constraint that excluded it
type RejectedCandidate struct {
	SecurityID string `json:"security_id"`
	LotID      string `json:"lot_id,omitempty"`
	Side       string `json:"side"`
	Reason     string `json:"reason"`
}

// AcceptedHarvest is a loss harvest the wash-sale pre-pass approved:
// sell the full lot quantity, optionally buying a correlated replacement
type AcceptedHarvest struct {
	LotID         string  `json:"lot_id"`
	SecurityID    string  `json:"security_id"`
	Quantity      float64 `json:"quantity"`
	ReplacementID string  `json:"replacement_id,omitempty"`
	Loss          float64 `json:"loss"` // Unrealized loss at acceptance, positive number
	Reason        string  `json:"reason"`
}

// candidateSet is the feasible universe one solve works over
type candidateSet struct {
	sells    []SellCandidate
	buys     []BuyCandidate
	rejected []RejectedCandidate
}

// generateCandidates builds the candidate universe for one strategy:
// every sellable lot that passes the holding period, restriction, and
// wash-sale checks; every eligible buy that is neither restricted nor
// inside a wash-sale window; and the pre-accepted harvests as fixed
// sells. Exclusions are recorded with reasons, never silently dropped.
func (o *Optimizer) generateCandidates(req Request, book *ledger.Book, restricted map[string]bool) candidateSet {
	var set candidateSet

	harvestLots := make(map[string]AcceptedHarvest, len(req.Harvests))
	for _, h := range req.Harvests {
		harvestLots[h.LotID] = h
	}

	// Harvest sells first: fixed quantities, exempt from the holding
	// period by prior guard acceptance
	for _, h := range req.Harvests {
		lot, ok := book.Lot(h.LotID)
		if !ok {
			set.rejected = append(set.rejected, RejectedCandidate{
				SecurityID: h.SecurityID, LotID: h.LotID, Side: "SELL",
				Reason: "harvest references unknown lot",
			})
			continue
		}
		set.sells = append(set.sells, SellCandidate{
			LotID:      h.LotID,
			SecurityID: h.SecurityID,
			Price:      req.Securities[h.SecurityID].Price,
			CostBasis:  lot.CostBasis,
			Max:        h.Quantity,
			Term:       ledger.TermOf(lot, req.AsOf),
			Harvest:    true,
		})
	}

	// Ordinary sell candidates from the remaining open lots
	for _, ol := range book.AllOpenLots() {
		if _, isHarvest := harvestLots[ol.Lot.ID]; isHarvest {
			continue
		}
		if ol.Sellable <= 0 {
			continue
		}
		price := req.Securities[ol.Lot.SecurityID].Price

		if restricted[ol.Lot.SecurityID] {
			set.rejected = append(set.rejected, RejectedCandidate{
				SecurityID: ol.Lot.SecurityID, LotID: ol.Lot.ID, Side: "SELL",
				Reason: "security is restricted",
			})
			continue
		}
		if age := ledger.HoldingDays(ol.Lot, req.AsOf); age < req.Settings.HoldingTimeDays {
			set.rejected = append(set.rejected, RejectedCandidate{
				SecurityID: ol.Lot.SecurityID, LotID: ol.Lot.ID, Side: "SELL",
				Reason: fmt.Sprintf("held %d days, minimum is %d", age, req.Settings.HoldingTimeDays),
			})
			continue
		}
		if price < ol.Lot.CostBasis {
			// Selling this lot realizes a loss: the guard must clear it
			decision := req.Guard.Evaluate(washsale.LossSale{
				OwnerID:    req.Strategy.Owner(),
				SecurityID: ol.Lot.SecurityID,
				AsOf:       req.AsOf,
				WindowDays: req.Settings.WashSaleWindowDays,
				Buffer:     req.Settings.WashSaleBuffer,
			})
			if !decision.Allowed {
				set.rejected = append(set.rejected, RejectedCandidate{
					SecurityID: ol.Lot.SecurityID, LotID: ol.Lot.ID, Side: "SELL",
					Reason: fmt.Sprintf("wash sale: %s", decision.Reason),
				})
				continue
			}
		}

		set.sells = append(set.sells, SellCandidate{
			LotID:      ol.Lot.ID,
			SecurityID: ol.Lot.SecurityID,
			Price:      price,
			CostBasis:  ol.Lot.CostBasis,
			Max:        ol.Sellable,
			Term:       ledger.TermOf(ol.Lot, req.AsOf),
		})
	}

	set.buys = o.generateBuyCandidates(req, book, restricted, set.sells)
	return set
}

// generateBuyCandidates lists the securities new money may flow into,
// with a shared budget ceiling per candidate.
func (o *Optimizer) generateBuyCandidates(req Request, book *ledger.Book, restricted map[string]bool, sells []SellCandidate) []BuyCandidate {
	replacements := make(map[string]bool)
	for _, h := range req.Harvests {
		if h.ReplacementID != "" {
			replacements[h.ReplacementID] = true
		}
	}

	// Budget: current cash plus everything the sells could raise, less
	// the hard floor at the pre-trade portfolio value
	before := costmodel.State{Positions: book.Positions(), Cash: req.Strategy.Cash}
	var maxProceeds float64
	for _, s := range sells {
		maxProceeds += s.Max * s.Price
	}
	budget := req.Strategy.Cash + maxProceeds - req.Settings.CashFloor(before.Value(req.Securities))
	if budget <= 0 {
		return nil
	}

	var buys []BuyCandidate
	seen := make(map[string]bool)
	targets := o.targetsOf(req)
	for _, group := range targets.Groups {
		if group.Weight <= 0 {
			continue
		}
		for rank, id := range group.SecurityIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if restricted[id] {
				continue
			}
			if req.Guard.WouldBlockBuy(req.Strategy.Owner(), id, req.AsOf) && !replacements[id] {
				// Buying inside an active restriction window would forfeit
				// a harvested loss
				continue
			}
			price := req.Securities[id].Price
			buys = append(buys, BuyCandidate{
				SecurityID:  id,
				Price:       price,
				Rank:        rank,
				Max:         budget / price,
				Replacement: replacements[id],
			})
		}
	}
	return buys
}

// restrictedSet indexes the strategy's restricted securities
func restrictedSet(s domain.Strategy) map[string]bool {
	out := make(map[string]bool, len(s.Restricted))
	for _, id := range s.Restricted {
		out[id] = true
	}
	return out
}

// Package ledger provides tax lot accounting: holding periods, sellable
// quantities, lot selection, and realized gain bookkeeping.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hvkshetry/rebalancer/internal/domain"
)

// lotState tracks one lot's remaining and reserved quantities
type lotState struct {
	lot       domain.TaxLot
	remaining float64
	reserved  float64
}

// ClosedLot records a completed (or proposed and accepted) sale of part
// or all of a lot. Monetary amounts use decimal arithmetic so realized
// gains reconcile exactly across reports.
type ClosedLot struct {
	LotID      string          `json:"lot_id"`
	SecurityID string          `json:"security_id"`
	StrategyID string          `json:"strategy_id"`
	Quantity   float64         `json:"quantity"`
	CloseDate  time.Time       `json:"close_date"`
	Proceeds   decimal.Decimal `json:"proceeds"`
	Basis      decimal.Decimal `json:"basis"`
	Gain       decimal.Decimal `json:"gain"`
	Term       domain.GainTerm `json:"term"`
}

// Book is the per-strategy lot ledger. It owns the only mutable lot
// state in a run: everything downstream works from its snapshots.
// Reservations mark quantities claimed by in-flight trade proposals so
// no two candidates can sell the same shares.
type Book struct {
	strategyID string
	lots       map[string]*lotState
	order      []string // Lot IDs in input order, for deterministic iteration
	closed     []ClosedLot
}

// NewBook creates a ledger over a strategy's lots.
func NewBook(strategyID string, lots []domain.TaxLot) (*Book, error) {
	b := &Book{
		strategyID: strategyID,
		lots:       make(map[string]*lotState, len(lots)),
	}
	for _, lot := range lots {
		if lot.Quantity <= 0 {
			return nil, fmt.Errorf("lot %s: quantity must be positive, got %v", lot.ID, lot.Quantity)
		}
		if _, exists := b.lots[lot.ID]; exists {
			return nil, fmt.Errorf("duplicate lot id %s", lot.ID)
		}
		b.lots[lot.ID] = &lotState{lot: lot, remaining: lot.Quantity}
		b.order = append(b.order, lot.ID)
	}
	return b, nil
}

// HoldingDays returns full days held from acquisition to asOf.
func HoldingDays(lot domain.TaxLot, asOf time.Time) int {
	if asOf.Before(lot.AcquisitionDate) {
		return 0
	}
	return int(asOf.Sub(lot.AcquisitionDate).Hours() / 24)
}

// TermOf classifies a sale of the lot at asOf by holding period.
func TermOf(lot domain.TaxLot, asOf time.Time) domain.GainTerm {
	if HoldingDays(lot, asOf) >= domain.LongTermHoldingDays {
		return domain.GainLongTerm
	}
	return domain.GainShortTerm
}

// Lot returns the original lot by ID.
func (b *Book) Lot(lotID string) (domain.TaxLot, bool) {
	state, ok := b.lots[lotID]
	if !ok {
		return domain.TaxLot{}, false
	}
	return state.lot, true
}

// Remaining returns the lot's unsold quantity.
func (b *Book) Remaining(lotID string) float64 {
	state, ok := b.lots[lotID]
	if !ok {
		return 0
	}
	return state.remaining
}

// SellableQuantity returns the quantity of the lot not yet sold and not
// claimed by an in-flight proposal.
func (b *Book) SellableQuantity(lotID string) float64 {
	state, ok := b.lots[lotID]
	if !ok {
		return 0
	}
	return state.remaining - state.reserved
}

// Reserve claims quantity on a lot for an in-flight proposal. Fails when
// the claim exceeds the sellable quantity.
func (b *Book) Reserve(lotID string, quantity float64) error {
	state, ok := b.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %s not found", lotID)
	}
	if quantity <= 0 {
		return fmt.Errorf("lot %s: reserve quantity must be positive, got %v", lotID, quantity)
	}
	if quantity > state.remaining-state.reserved+quantityEpsilon {
		return fmt.Errorf("lot %s: cannot reserve %v, only %v sellable", lotID, quantity, state.remaining-state.reserved)
	}
	state.reserved += quantity
	return nil
}

// Release returns reserved quantity to the sellable pool, capped at the
// outstanding reservation.
func (b *Book) Release(lotID string, quantity float64) {
	state, ok := b.lots[lotID]
	if !ok {
		return
	}
	state.reserved -= quantity
	if state.reserved < 0 {
		state.reserved = 0
	}
}

// quantityEpsilon absorbs float noise in quantity comparisons
const quantityEpsilon = 1e-9

// Commit applies a sale against a lot: reduces the remaining quantity,
// consumes any matching reservation, and records the closed lot with its
// realized gain split by holding period. The cumulative quantity sold
// from a lot can never exceed its original quantity.
func (b *Book) Commit(lotID string, quantity, price float64, asOf time.Time) (ClosedLot, error) {
	state, ok := b.lots[lotID]
	if !ok {
		return ClosedLot{}, fmt.Errorf("lot %s not found", lotID)
	}
	if quantity <= 0 {
		return ClosedLot{}, fmt.Errorf("lot %s: sell quantity must be positive, got %v", lotID, quantity)
	}
	if quantity > state.remaining+quantityEpsilon {
		return ClosedLot{}, fmt.Errorf("lot %s: cannot sell %v, only %v remaining", lotID, quantity, state.remaining)
	}

	qty := decimal.NewFromFloat(quantity)
	proceeds := qty.Mul(decimal.NewFromFloat(price))
	basis := qty.Mul(decimal.NewFromFloat(state.lot.CostBasis))

	closed := ClosedLot{
		LotID:      lotID,
		SecurityID: state.lot.SecurityID,
		StrategyID: b.strategyID,
		Quantity:   quantity,
		CloseDate:  asOf,
		Proceeds:   proceeds,
		Basis:      basis,
		Gain:       proceeds.Sub(basis),
		Term:       TermOf(state.lot, asOf),
	}

	state.remaining -= quantity
	if state.remaining < 0 {
		state.remaining = 0
	}
	state.reserved -= quantity
	if state.reserved < 0 {
		state.reserved = 0
	}
	b.closed = append(b.closed, closed)
	return closed, nil
}

// ClosedLots returns the sales committed so far, in commit order.
func (b *Book) ClosedLots() []ClosedLot {
	out := make([]ClosedLot, len(b.closed))
	copy(out, b.closed)
	return out
}

// Position returns the total remaining quantity held in a security.
func (b *Book) Position(securityID string) float64 {
	var total float64
	for _, id := range b.order {
		state := b.lots[id]
		if state.lot.SecurityID == securityID {
			total += state.remaining
		}
	}
	return total
}

// Positions returns remaining quantity per security.
func (b *Book) Positions() map[string]float64 {
	out := make(map[string]float64)
	for _, id := range b.order {
		state := b.lots[id]
		if state.remaining > 0 {
			out[state.lot.SecurityID] += state.remaining
		}
	}
	return out
}

// OpenLots returns the lots with remaining quantity in a security,
// with their current remaining amounts.
func (b *Book) OpenLots(securityID string) []OpenLot {
	var out []OpenLot
	for _, id := range b.order {
		state := b.lots[id]
		if state.lot.SecurityID == securityID && state.remaining > 0 {
			out = append(out, OpenLot{Lot: state.lot, Remaining: state.remaining, Sellable: state.remaining - state.reserved})
		}
	}
	return out
}

// AllOpenLots returns every lot with remaining quantity.
func (b *Book) AllOpenLots() []OpenLot {
	var out []OpenLot
	for _, id := range b.order {
		state := b.lots[id]
		if state.remaining > 0 {
			out = append(out, OpenLot{Lot: state.lot, Remaining: state.remaining, Sellable: state.remaining - state.reserved})
		}
	}
	return out
}

// OpenLot pairs a lot with its live remaining and sellable quantities
type OpenLot struct {
	Lot       domain.TaxLot
	Remaining float64
	Sellable  float64
}

// PurchaseDates returns acquisition dates for the security on or after
// since, most recent first. Fully sold lots still count: the purchase
// happened regardless of what remains.
func (b *Book) PurchaseDates(securityID string, since time.Time) []time.Time {
	var out []time.Time
	for _, id := range b.order {
		state := b.lots[id]
		if state.lot.SecurityID == securityID && !state.lot.AcquisitionDate.Before(since) {
			out = append(out, state.lot.AcquisitionDate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

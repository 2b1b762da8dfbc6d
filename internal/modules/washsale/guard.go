package washsale

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/domain"
)

// PurchaseIndex records acquisition dates per owner and security, built
// from the owner's existing lots across every strategy in the batch. The
// guard consults it for the lookback side of the window; the lookforward
// side is covered by the restrictions accepted harvests add.
type PurchaseIndex struct {
	byOwner map[string]map[string][]time.Time
}

// NewPurchaseIndex creates an empty index.
func NewPurchaseIndex() *PurchaseIndex {
	return &PurchaseIndex{byOwner: make(map[string]map[string][]time.Time)}
}

// Add records one purchase of a security under an owner.
func (p *PurchaseIndex) Add(ownerID, securityID string, at time.Time) {
	owner, ok := p.byOwner[ownerID]
	if !ok {
		owner = make(map[string][]time.Time)
		p.byOwner[ownerID] = owner
	}
	owner[securityID] = append(owner[securityID], at)
}

// LastPurchase returns the most recent purchase of the security under
// the owner at or after since, and whether one exists.
func (p *PurchaseIndex) LastPurchase(ownerID, securityID string, since time.Time) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, at := range p.byOwner[ownerID][securityID] {
		if at.Before(since) {
			continue
		}
		if !found || at.After(latest) {
			latest = at
			found = true
		}
	}
	return latest, found
}

// Decision is the guard's verdict on one candidate loss sale
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// LossSale describes a candidate sale realizing a loss, for evaluation
// against the wash-sale rule
type LossSale struct {
	OwnerID    string
	SecurityID string
	AsOf       time.Time
	WindowDays int
	Buffer     float64 // Fractional widening of the window
}

// Guard evaluates candidate loss sales against recent purchases and
// active restrictions. It is purely advisory: it never mutates the
// ledger, and a disallowed sale is a candidate exclusion, not an error.
type Guard struct {
	securities   map[string]domain.Security
	purchases    *PurchaseIndex
	restrictions *RestrictionSet
	log          zerolog.Logger
}

// NewGuard creates a guard over one batch's market data, purchase index,
// and restriction snapshot.
func NewGuard(securities map[string]domain.Security, purchases *PurchaseIndex, restrictions *RestrictionSet, log zerolog.Logger) *Guard {
	if purchases == nil {
		purchases = NewPurchaseIndex()
	}
	if restrictions == nil {
		restrictions = NewRestrictionSet()
	}
	return &Guard{
		securities:   securities,
		purchases:    purchases,
		restrictions: restrictions,
		log:          log.With().Str("component", "washsale_guard").Logger(),
	}
}

// EffectiveWindowDays widens the base window by the buffer fraction,
// rounding up so a partial day still blocks.
func EffectiveWindowDays(windowDays int, buffer float64) int {
	if buffer <= 0 {
		return windowDays
	}
	return int(math.Ceil(float64(windowDays) * (1 + buffer)))
}

// identicalUniverse returns the security itself plus everything declared
// substantially identical to it, in both directions.
func (g *Guard) identicalUniverse(securityID string) []string {
	ids := []string{securityID}
	seen := map[string]bool{securityID: true}
	if sec, ok := g.securities[securityID]; ok {
		for _, other := range sec.SubstantiallyIdentical {
			if !seen[other] {
				ids = append(ids, other)
				seen[other] = true
			}
		}
	}
	for id, sec := range g.securities {
		if seen[id] {
			continue
		}
		for _, other := range sec.SubstantiallyIdentical {
			if other == securityID {
				ids = append(ids, id)
				seen[id] = true
				break
			}
		}
	}
	return ids
}

// Evaluate decides whether a loss sale would trigger the wash-sale rule.
// A sale is disallowed when the owner bought the security, or anything
// substantially identical to it, inside the lookback window in any of
// their strategies, or when an active restriction already covers it.
func (g *Guard) Evaluate(sale LossSale) Decision {
	window := EffectiveWindowDays(sale.WindowDays, sale.Buffer)
	since := sale.AsOf.AddDate(0, 0, -window)

	for _, id := range g.identicalUniverse(sale.SecurityID) {
		if restrictions := g.restrictions.ActiveFor(sale.OwnerID, id, sale.AsOf); len(restrictions) > 0 {
			reason := fmt.Sprintf("active restriction on %s: %s", id, restrictions[0].Reason)
			g.log.Debug().
				Str("owner", sale.OwnerID).
				Str("security", sale.SecurityID).
				Str("reason", reason).
				Msg("Loss sale disallowed")
			return Decision{Allowed: false, Reason: reason}
		}

		if at, found := g.purchases.LastPurchase(sale.OwnerID, id, since); found {
			days := int(sale.AsOf.Sub(at).Hours() / 24)
			reason := fmt.Sprintf("%s purchased %d days ago, inside the %d day window", id, days, window)
			g.log.Debug().
				Str("owner", sale.OwnerID).
				Str("security", sale.SecurityID).
				Str("reason", reason).
				Msg("Loss sale disallowed")
			return Decision{Allowed: false, Reason: reason}
		}
	}

	return Decision{Allowed: true}
}

// WouldBlockBuy reports whether buying the security for the owner at the
// instant would forfeit a previously accepted loss: true when an active
// restriction covers the security or anything substantially identical.
// Replacement buys consult this before being proposed.
func (g *Guard) WouldBlockBuy(ownerID, securityID string, at time.Time) bool {
	for _, id := range g.identicalUniverse(securityID) {
		if len(g.restrictions.ActiveFor(ownerID, id, at)) > 0 {
			return true
		}
	}
	return false
}

// Commit records an accepted loss sale: a forward restriction on the
// security (and its substantially identical set) so later buys in the
// window would be flagged. Returns the restrictions added.
func (g *Guard) Commit(sale LossSale, reason string) []Restriction {
	window := EffectiveWindowDays(sale.WindowDays, sale.Buffer)
	var added []Restriction
	for _, id := range g.identicalUniverse(sale.SecurityID) {
		r := NewRestriction(sale.OwnerID, id, sale.AsOf, window, reason)
		g.restrictions.Add(r)
		added = append(added, r)
	}
	g.log.Debug().
		Str("owner", sale.OwnerID).
		Str("security", sale.SecurityID).
		Int("restrictions", len(added)).
		Msg("Loss sale committed, forward window restricted")
	return added
}

// Restrictions exposes the guard's restriction store.
func (g *Guard) Restrictions() *RestrictionSet {
	return g.restrictions
}

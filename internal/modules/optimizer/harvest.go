package optimizer

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/costmodel"
	"github.com/hvkshetry/rebalancer/internal/modules/ledger"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
	"github.com/hvkshetry/rebalancer/internal/modules/washsale"
)

// PlanHarvests is the wash-sale pre-pass for one strategy: it scans open
// lots for losses deep enough to harvest, asks the guard to clear each
// one, and commits accepted sales to the shared restriction set so every
// later evaluation under the same owner sees them. Strategies sharing an
// owner must run through this serially; the solves afterwards may run in
// parallel against the committed restrictions.
//
// Holding period does not apply here: an explicitly requested harvest is
// gated by the loss threshold and the wash-sale rule alone.
func PlanHarvests(
	strategy domain.Strategy,
	securities map[string]domain.Security,
	cfg settings.Settings,
	guard *washsale.Guard,
	asOf time.Time,
	log zerolog.Logger,
) ([]AcceptedHarvest, []RejectedCandidate) {
	if !cfg.ShouldTLH {
		return nil, nil
	}
	log = log.With().Str("component", "harvest_prepass").Str("strategy", strategy.ID).Logger()

	book, err := ledger.NewBook(strategy.ID, strategy.Lots)
	if err != nil {
		// Lot problems surface as validation errors in the main run; the
		// pre-pass just declines to harvest.
		log.Warn().Err(err).Msg("Skipping harvest pre-pass, lots unusable")
		return nil, nil
	}

	restricted := restrictedSet(strategy)
	targets := costmodel.ResolveTargets(strategy.Targets)

	var accepted []AcceptedHarvest
	var rejected []RejectedCandidate
	for _, ol := range book.AllOpenLots() {
		lot := ol.Lot
		price := securities[lot.SecurityID].Price
		if price >= lot.CostBasis {
			continue
		}

		relativeLoss := (lot.CostBasis - price) / lot.CostBasis
		if relativeLoss < cfg.TLHMinLossThreshold {
			continue
		}
		if restricted[lot.SecurityID] {
			rejected = append(rejected, RejectedCandidate{
				SecurityID: lot.SecurityID, LotID: lot.ID, Side: "SELL",
				Reason: "security is restricted",
			})
			continue
		}

		sale := washsale.LossSale{
			OwnerID:    strategy.Owner(),
			SecurityID: lot.SecurityID,
			AsOf:       asOf,
			WindowDays: cfg.WashSaleWindowDays,
			Buffer:     cfg.WashSaleBuffer,
		}
		decision := guard.Evaluate(sale)
		if !decision.Allowed {
			rejected = append(rejected, RejectedCandidate{
				SecurityID: lot.SecurityID, LotID: lot.ID, Side: "SELL",
				Reason: fmt.Sprintf("wash sale: %s", decision.Reason),
			})
			continue
		}

		loss := ol.Sellable * (lot.CostBasis - price)
		reason := fmt.Sprintf("harvested %.2f loss on lot %s", loss, lot.ID)
		guard.Commit(sale, reason)

		harvest := AcceptedHarvest{
			LotID:         lot.ID,
			SecurityID:    lot.SecurityID,
			Quantity:      ol.Sellable,
			ReplacementID: findReplacement(lot.SecurityID, strategy, securities, targets, restricted, guard, asOf),
			Loss:          loss,
			Reason:        reason,
		}
		accepted = append(accepted, harvest)
		log.Info().
			Str("security", lot.SecurityID).
			Str("lot", lot.ID).
			Float64("loss", loss).
			Str("replacement", harvest.ReplacementID).
			Msg("Loss harvest accepted")
	}
	return accepted, rejected
}

// findReplacement picks the correlated security the harvested proceeds
// should flow into: the next identifier, in preference order, from the
// sold security's own target group that is not the security itself, not
// substantially identical to it, not restricted, and not inside an
// active wash-sale window. Empty when the group offers no substitute;
// the proceeds then fall through to the general buy candidates.
func findReplacement(
	soldID string,
	strategy domain.Strategy,
	securities map[string]domain.Security,
	targets costmodel.ResolvedTargets,
	restricted map[string]bool,
	guard *washsale.Guard,
	asOf time.Time,
) string {
	groupIdx, ok := targets.GroupOf[soldID]
	if !ok {
		return ""
	}

	identical := map[string]bool{soldID: true}
	for _, id := range securities[soldID].SubstantiallyIdentical {
		identical[id] = true
	}

	for _, id := range targets.Groups[groupIdx].SecurityIDs {
		if identical[id] || restricted[id] {
			continue
		}
		for _, other := range securities[id].SubstantiallyIdentical {
			if other == soldID {
				identical[id] = true
				break
			}
		}
		if identical[id] {
			continue
		}
		if guard.WouldBlockBuy(strategy.Owner(), id, asOf) {
			continue
		}
		return id
	}
	return ""
}

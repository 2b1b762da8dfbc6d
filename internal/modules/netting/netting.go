// Package netting combines the trades of strategies sharing an
// execution account into one net market order per security, while
// keeping every contributing per-strategy trade for tax attribution.
package netting

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/domain"
)

// quantityEpsilon treats net quantities below this as fully offset
const quantityEpsilon = 1e-9

// StrategyTrades is one strategy's emitted trade set with its netting
// scope.
type StrategyTrades struct {
	StrategyID string         `json:"strategy_id"`
	AccountID  string         `json:"account_id"`
	Trades     []domain.Trade `json:"trades"`
}

// Netter aggregates per-strategy trades by (account, security).
type Netter struct {
	log zerolog.Logger
}

// NewNetter creates a netter.
func NewNetter(log zerolog.Logger) *Netter {
	return &Netter{log: log.With().Str("component", "netter").Logger()}
}

// Net combines all strategies' trades into one row per (account,
// security). Buys and sells offset into a single net quantity and side;
// a fully offset flow keeps Quantity zero and emits no external order.
// Netting never touches the contributing trades: per-strategy lot
// attribution and realized gain/loss pass through unchanged. Rows come
// back sorted by account then security for deterministic output.
func (n *Netter) Net(inputs []StrategyTrades) []domain.NettedTrade {
	type key struct{ account, security string }

	rows := make(map[key]*domain.NettedTrade)
	var order []key
	for _, input := range inputs {
		for _, trade := range input.Trades {
			k := key{account: input.AccountID, security: trade.SecurityID}
			row, ok := rows[k]
			if !ok {
				row = &domain.NettedTrade{
					AccountID:  input.AccountID,
					SecurityID: trade.SecurityID,
					Price:      trade.Price,
				}
				rows[k] = row
				order = append(order, k)
			}
			row.Contributions = append(row.Contributions, trade)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].account != order[j].account {
			return order[i].account < order[j].account
		}
		return order[i].security < order[j].security
	})

	out := make([]domain.NettedTrade, 0, len(order))
	for _, k := range order {
		row := rows[k]

		var net float64
		for _, trade := range row.Contributions {
			if trade.Action == domain.ActionBuy {
				net += trade.Quantity
			} else {
				net -= trade.Quantity
			}
		}

		switch {
		case net > quantityEpsilon:
			row.Action = domain.ActionBuy
			row.Quantity = net
		case net < -quantityEpsilon:
			row.Action = domain.ActionSell
			row.Quantity = -net
		default:
			// Strategies fully offset each other: no external order, but
			// every strategy's internal record survives
			row.Quantity = 0
			n.log.Debug().
				Str("account", row.AccountID).
				Str("security", row.SecurityID).
				Int("contributions", len(row.Contributions)).
				Msg("Flows fully offset, no external order")
		}
		out = append(out, *row)
	}

	n.log.Info().
		Int("strategies", len(inputs)).
		Int("net_rows", len(out)).
		Msg("Netting complete")
	return out
}

// TradeRow is one line of the flattened output table: a contributing
// per-strategy trade listed under its net row, so execution netting and
// tax-lot attribution are both visible.
type TradeRow struct {
	AccountID     string  `json:"account_id"`
	StrategyID    string  `json:"strategy_id"`
	SecurityID    string  `json:"identifier"`
	Action        string  `json:"action"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	TaxLotID      string  `json:"tax_lot_id,omitempty"`
	ShortTermGain float64 `json:"short_term_gain"`
	ShortTermLoss float64 `json:"short_term_loss"`
	LongTermGain  float64 `json:"long_term_gain"`
	LongTermLoss  float64 `json:"long_term_loss"`
}

// Table flattens net rows into per-contribution output rows.
func Table(netted []domain.NettedTrade) []TradeRow {
	var rows []TradeRow
	for _, nt := range netted {
		for _, trade := range nt.Contributions {
			rows = append(rows, TradeRow{
				AccountID:     nt.AccountID,
				StrategyID:    trade.StrategyID,
				SecurityID:    trade.SecurityID,
				Action:        string(trade.Action),
				Quantity:      trade.Quantity,
				Price:         trade.Price,
				TaxLotID:      trade.TaxLotID,
				ShortTermGain: trade.ShortTermGain,
				ShortTermLoss: trade.ShortTermLoss,
				LongTermGain:  trade.LongTermGain,
				LongTermLoss:  trade.LongTermLoss,
			})
		}
	}
	return rows
}

// Reconcile verifies that contribution gain/loss sums match the
// per-strategy totals the optimizer reported. Returns the absolute
// mismatch, zero when everything reconciles.
func Reconcile(netted []domain.NettedTrade, strategyGains map[string]float64) float64 {
	byStrategy := make(map[string]float64)
	for _, nt := range netted {
		for _, trade := range nt.Contributions {
			byStrategy[trade.StrategyID] += trade.RealizedGain()
		}
	}

	var mismatch float64
	for id, want := range strategyGains {
		mismatch += math.Abs(byStrategy[id] - want)
	}
	return mismatch
}

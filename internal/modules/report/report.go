// Package report shapes optimizer outcomes into the structured result
// records callers consume: cost breakdowns before and after, per
// component improvements, execution and gain/loss summaries, and a
// generated explanation. Pure transform, no decisions.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/costmodel"
	"github.com/hvkshetry/rebalancer/internal/modules/optimizer"
)

// Improvement compares one cost component before and after the trades
type Improvement struct {
	Before   float64 `json:"before"`
	After    float64 `json:"after"`
	Absolute float64 `json:"absolute"` // before - after; positive is better
	Percent  float64 `json:"percent"`  // Absolute as a share of before
}

// improvementOf builds the comparison for one component.
func improvementOf(before, after float64) Improvement {
	imp := Improvement{Before: before, After: after, Absolute: before - after}
	if before != 0 {
		imp.Percent = imp.Absolute / before * 100
	}
	return imp
}

// OptimizationInfo is the per-component cost comparison
type OptimizationInfo struct {
	Before                costmodel.Breakdown    `json:"before"`
	After                 costmodel.Breakdown    `json:"after"`
	ComponentImprovements map[string]Improvement `json:"component_improvements"`
	TotalImprovement      Improvement            `json:"total_improvement"`
}

// Execution summarizes the emitted trades
type Execution struct {
	Buys       int     `json:"buys"`
	Sells      int     `json:"sells"`
	BuyValue   float64 `json:"buy_value"`
	SellValue  float64 `json:"sell_value"`
	EndingCash float64 `json:"ending_cash"`
}

// GainLoss totals realized results by term
type GainLoss struct {
	ShortTermGain float64 `json:"short_term_gain"`
	ShortTermLoss float64 `json:"short_term_loss"`
	LongTermGain  float64 `json:"long_term_gain"`
	LongTermLoss  float64 `json:"long_term_loss"`
	Net           float64 `json:"net"`
}

// Drift pairs the per-target drift rows before and after the trades
type Drift struct {
	Before []costmodel.TargetDrift `json:"before"`
	After  []costmodel.TargetDrift `json:"after"`
}

// Result is one strategy's structured outcome record
type Result struct {
	StrategyID       string                      `json:"strategy_id"`
	StatusCode       string                      `json:"status_code"`
	Success          bool                        `json:"success"`
	Reason           string                      `json:"reason,omitempty"`
	SolutionQuality  string                      `json:"solution_quality"`
	Drift            Drift                       `json:"drift"`
	Execution        Execution                   `json:"execution"`
	Explanation      string                      `json:"explanation"`
	FactorModel      *optimizer.FactorReport     `json:"factor_model,omitempty"`
	GainLoss         GainLoss                    `json:"gain_loss"`
	OptimizationInfo OptimizationInfo            `json:"optimization_info"`
	Trades           []domain.Trade              `json:"trades"`
	Harvests         []optimizer.AcceptedHarvest `json:"harvests,omitempty"`
}

// Build assembles the result record for one outcome.
func Build(out optimizer.Outcome) Result {
	r := Result{
		StrategyID:      out.StrategyID,
		StatusCode:      out.Status.String(),
		Success:         out.Success(),
		Reason:          out.Reason,
		SolutionQuality: out.SolverStatus.String(),
		Drift:           Drift{Before: out.BeforeDrift, After: out.AfterDrift},
		FactorModel:     out.FactorModel,
		Trades:          out.Trades,
		Harvests:        out.Harvests,
		OptimizationInfo: OptimizationInfo{
			Before: out.Before,
			After:  out.After,
			ComponentImprovements: map[string]Improvement{
				"drift":        improvementOf(out.Before.Drift, out.After.Drift),
				"tax":          improvementOf(out.Before.Tax, out.After.Tax),
				"transaction":  improvementOf(out.Before.Transaction, out.After.Transaction),
				"factor_model": improvementOf(out.Before.FactorModel, out.After.FactorModel),
				"cash_drag":    improvementOf(out.Before.CashDrag, out.After.CashDrag),
			},
			TotalImprovement: improvementOf(out.Before.Total, out.After.Total),
		},
	}

	r.Execution.EndingCash = out.EndingCash
	for _, t := range out.Trades {
		if t.Action == domain.ActionBuy {
			r.Execution.Buys++
			r.Execution.BuyValue += t.Notional()
		} else {
			r.Execution.Sells++
			r.Execution.SellValue += t.Notional()
		}
		r.GainLoss.ShortTermGain += t.ShortTermGain
		r.GainLoss.ShortTermLoss += t.ShortTermLoss
		r.GainLoss.LongTermGain += t.LongTermGain
		r.GainLoss.LongTermLoss += t.LongTermLoss
	}
	r.GainLoss.Net = r.GainLoss.ShortTermGain - r.GainLoss.ShortTermLoss +
		r.GainLoss.LongTermGain - r.GainLoss.LongTermLoss

	r.Explanation = explain(out, r)
	return r
}

// explain generates the human-readable trade rationale.
func explain(out optimizer.Outcome, r Result) string {
	if !r.Success {
		return fmt.Sprintf("No trades: %s (%s).", out.Status.String(), out.Reason)
	}
	if len(out.Trades) == 0 {
		return fmt.Sprintf("Portfolio already within tolerance; no trades needed. Cash balance %.2f.", out.EndingCash)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d sell(s) worth %.2f and %d buy(s) worth %.2f.",
		r.Execution.Sells, r.Execution.SellValue, r.Execution.Buys, r.Execution.BuyValue)

	if move, ok := largestMove(out.Trades); ok {
		fmt.Fprintf(&b, " Largest move: %s %s %.4f units at %.2f.",
			strings.ToLower(string(move.Action)), move.SecurityID, move.Quantity, move.Price)
	}

	if len(out.Harvests) > 0 {
		var loss float64
		for _, h := range out.Harvests {
			loss += h.Loss
		}
		fmt.Fprintf(&b, " Harvested %.2f of losses across %d lot(s).", loss, len(out.Harvests))
	}

	if r.GainLoss.Net != 0 {
		fmt.Fprintf(&b, " Net realized gain %.2f (short-term %.2f, long-term %.2f).",
			r.GainLoss.Net,
			r.GainLoss.ShortTermGain-r.GainLoss.ShortTermLoss,
			r.GainLoss.LongTermGain-r.GainLoss.LongTermLoss)
	}

	drift := r.OptimizationInfo.ComponentImprovements["drift"]
	if drift.Absolute > 0 {
		fmt.Fprintf(&b, " Allocation drift reduced %.4f to %.4f.", drift.Before, drift.After)
	}

	fmt.Fprintf(&b, " Ending cash balance %.2f.", out.EndingCash)
	return b.String()
}

// largestMove finds the trade with the greatest notional.
func largestMove(trades []domain.Trade) (domain.Trade, bool) {
	if len(trades) == 0 {
		return domain.Trade{}, false
	}
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Notional() > sorted[j].Notional()
	})
	return sorted[0], true
}

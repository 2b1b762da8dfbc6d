package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/costmodel"
	"github.com/hvkshetry/rebalancer/internal/modules/optimizer"
	"github.com/hvkshetry/rebalancer/internal/solver"
)

func successfulOutcome() optimizer.Outcome {
	return optimizer.Outcome{
		StrategyID:   "s1",
		Status:       domain.StatusOptimal,
		SolverStatus: solver.StatusOptimal,
		Trades: []domain.Trade{
			{ID: "t1", StrategyID: "s1", SecurityID: "VTI", Action: domain.ActionSell,
				Quantity: 10, Price: 100, TaxLotID: "l1", LongTermLoss: 500},
			{ID: "t2", StrategyID: "s1", SecurityID: "SCHB", Action: domain.ActionBuy,
				Quantity: 9, Price: 100},
		},
		Harvests: []optimizer.AcceptedHarvest{
			{LotID: "l1", SecurityID: "VTI", Quantity: 10, ReplacementID: "SCHB", Loss: 500},
		},
		Before:     costmodel.Breakdown{Drift: 0.8, Tax: 0, Transaction: 0, Total: 0.9},
		After:      costmodel.Breakdown{Drift: 0.1, Tax: -100, Transaction: 2, Total: 0.15},
		EndingCash: 200,
	}
}

func TestBuild_SuccessfulRun(t *testing.T) {
	r := Build(successfulOutcome())

	assert.Equal(t, "s1", r.StrategyID)
	assert.Equal(t, "optimal", r.StatusCode)
	assert.True(t, r.Success)
	assert.Equal(t, "optimal", r.SolutionQuality)

	assert.Equal(t, 1, r.Execution.Sells)
	assert.Equal(t, 1, r.Execution.Buys)
	assert.InDelta(t, 1000, r.Execution.SellValue, 1e-9)
	assert.InDelta(t, 900, r.Execution.BuyValue, 1e-9)
	assert.InDelta(t, 200, r.Execution.EndingCash, 1e-9)

	assert.InDelta(t, 500, r.GainLoss.LongTermLoss, 1e-9)
	assert.InDelta(t, -500, r.GainLoss.Net, 1e-9)
}

func TestBuild_ComponentImprovements(t *testing.T) {
	r := Build(successfulOutcome())

	drift := r.OptimizationInfo.ComponentImprovements["drift"]
	assert.InDelta(t, 0.8, drift.Before, 1e-9)
	assert.InDelta(t, 0.1, drift.After, 1e-9)
	assert.InDelta(t, 0.7, drift.Absolute, 1e-9)
	assert.InDelta(t, 87.5, drift.Percent, 1e-6)

	total := r.OptimizationInfo.TotalImprovement
	assert.InDelta(t, 0.75, total.Absolute, 1e-9)
}

func TestBuild_ExplanationMentionsKeyFacts(t *testing.T) {
	r := Build(successfulOutcome())

	require.NotEmpty(t, r.Explanation)
	assert.Contains(t, r.Explanation, "1 sell(s)")
	assert.Contains(t, r.Explanation, "1 buy(s)")
	assert.Contains(t, r.Explanation, "Harvested 500.00")
	assert.Contains(t, r.Explanation, "200.00")
}

func TestBuild_FailedRun(t *testing.T) {
	out := optimizer.Outcome{
		StrategyID:   "s1",
		Status:       domain.StatusInfeasible,
		SolverStatus: solver.StatusError,
		Reason:       "cash floor unreachable: 900.00 short after selling all eligible lots",
	}
	r := Build(out)

	assert.Equal(t, "infeasible", r.StatusCode)
	assert.False(t, r.Success)
	assert.Empty(t, r.Trades)
	assert.Contains(t, r.Explanation, "infeasible")
	assert.Contains(t, r.Explanation, "cash floor unreachable")
}

func TestBuild_NoTradesNeeded(t *testing.T) {
	out := optimizer.Outcome{
		StrategyID:   "s1",
		Status:       domain.StatusOptimal,
		SolverStatus: solver.StatusOptimal,
		EndingCash:   1234.5,
	}
	r := Build(out)

	assert.True(t, r.Success)
	assert.Contains(t, r.Explanation, "no trades needed")
	assert.Contains(t, r.Explanation, "1234.50")
}

package costmodel

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
)

func factorCalculator(factors *domain.FactorModel) *Calculator {
	securities := map[string]domain.Security{
		"VTI":  {ID: "VTI", Price: 100.0, FactorExposures: map[string]float64{"market": 1.0, "value": 0.2}},
		"VXUS": {ID: "VXUS", Price: 50.0, FactorExposures: map[string]float64{"market": 0.9, "value": 0.5}},
	}
	targets := ResolveTargets([]domain.Target{
		{AssetClass: "equity", Weight: 1.0, SecurityIDs: []string{"VTI", "VXUS"}},
	})
	return NewCalculator(securities, targets, nil, factors, domain.DefaultTaxRates(), settings.DefaultSettings(), zerolog.Nop())
}

func TestFactorCost_MatchedExposure(t *testing.T) {
	calc := factorCalculator(&domain.FactorModel{
		Reference: map[string]float64{"market": 0.95, "value": 0.35},
	})

	// 50/50 by value: market = 0.95, value = 0.35, exactly on reference
	state := State{Positions: map[string]float64{"VTI": 50, "VXUS": 100}, Cash: 0}
	assert.InDelta(t, 0.0, calc.FactorCost(state), 1e-9)
}

func TestFactorCost_Deviation(t *testing.T) {
	calc := factorCalculator(&domain.FactorModel{
		Reference: map[string]float64{"market": 1.0},
	})

	// All in VXUS: market exposure 0.9, deviation^2 = 0.01
	state := State{Positions: map[string]float64{"VXUS": 200}, Cash: 0}
	assert.InDelta(t, 0.01, calc.FactorCost(state), 1e-9)
}

func TestFactorCost_PerFactorWeights(t *testing.T) {
	calc := factorCalculator(&domain.FactorModel{
		Reference: map[string]float64{"market": 1.0, "value": 0.0},
		Weights:   map[string]float64{"market": 2.0, "value": 0.0},
	})

	state := State{Positions: map[string]float64{"VXUS": 200}, Cash: 0}
	// market: 2.0 * (0.9-1.0)^2 = 0.02; value zero-weighted
	assert.InDelta(t, 0.02, calc.FactorCost(state), 1e-9)
}

func TestFactorCost_AllCashState(t *testing.T) {
	calc := factorCalculator(&domain.FactorModel{
		Reference: map[string]float64{"market": 1.0},
	})

	state := State{Positions: map[string]float64{}, Cash: 5000}
	// Zero exposure against a reference of 1.0
	assert.InDelta(t, 1.0, calc.FactorCost(state), 1e-9)
}

func TestExposures(t *testing.T) {
	calc := factorCalculator(&domain.FactorModel{
		Reference: map[string]float64{"market": 1.0, "value": 0.0},
	})

	state := State{Positions: map[string]float64{"VTI": 50, "VXUS": 100}, Cash: 0}
	exposures := calc.Exposures(state)
	assert.InDelta(t, 0.95, exposures["market"], 1e-9)
	assert.InDelta(t, 0.35, exposures["value"], 1e-9)
}

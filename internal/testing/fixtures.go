// Package testing provides shared fixtures for package tests.
package testing

import (
	"time"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
)

// AsOf is the fixed evaluation date fixtures are built around
var AsOf = time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

// NewSecurityFixtures returns a two-asset market plus a substitute for
// each, priced for easy arithmetic: every security trades at 100 with
// zero spread unless a test overrides it.
func NewSecurityFixtures() map[string]domain.Security {
	return map[string]domain.Security{
		"VTI": {
			ID:         "VTI",
			AssetClass: "us_equity",
			Price:      100,
		},
		"SCHB": {
			ID:         "SCHB",
			AssetClass: "us_equity",
			Price:      100,
		},
		"VXUS": {
			ID:         "VXUS",
			AssetClass: "intl_equity",
			Price:      100,
		},
		"IXUS": {
			ID:         "IXUS",
			AssetClass: "intl_equity",
			Price:      100,
		},
	}
}

// NewLot builds a lot acquired the given number of days before AsOf.
func NewLot(id, securityID, strategyID string, quantity, costBasis float64, ageDays int) domain.TaxLot {
	return domain.TaxLot{
		ID:              id,
		SecurityID:      securityID,
		StrategyID:      strategyID,
		Quantity:        quantity,
		CostBasis:       costBasis,
		AcquisitionDate: AsOf.AddDate(0, 0, -ageDays),
	}
}

// NewAllCashStrategy returns a strategy holding only cash against a
// 40/40 two-group target with a 20% cash target.
func NewAllCashStrategy(id string, cash float64) domain.Strategy {
	return domain.Strategy{
		ID:   id,
		Cash: cash,
		Targets: []domain.Target{
			{AssetClass: "us_equity", Weight: 0.4, SecurityIDs: []string{"VTI", "SCHB"}},
			{AssetClass: "intl_equity", Weight: 0.4, SecurityIDs: []string{"VXUS", "IXUS"}},
			{AssetClass: "cash", Weight: 0.2},
		},
		Mode: domain.ModeTaxAware,
	}
}

// NewTestSettings returns a bundle with every friction disabled, so
// tests opt in to the constraint they exercise.
func NewTestSettings() settings.Settings {
	cfg := settings.DefaultSettings()
	cfg.HoldingTimeDays = 0
	cfg.TradeRounding = 4
	return cfg
}

// ZeroTaxRates returns a schedule where every rate is zero.
func ZeroTaxRates() domain.TaxRateSchedule {
	return domain.TaxRateSchedule{
		domain.GainShortTerm: {},
		domain.GainLongTerm:  {},
	}
}

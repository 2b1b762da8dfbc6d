package batch

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
	"github.com/hvkshetry/rebalancer/internal/modules/washsale"
)

var asOf = time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

func batchSecurities() map[string]domain.Security {
	return map[string]domain.Security{
		"VTI":  {ID: "VTI", AssetClass: "us_equity", Price: 100},
		"SCHB": {ID: "SCHB", AssetClass: "us_equity", Price: 100},
		"VXUS": {ID: "VXUS", AssetClass: "intl_equity", Price: 100},
	}
}

func batchSettings() settings.Settings {
	cfg := settings.DefaultSettings()
	cfg.HoldingTimeDays = 0
	return cfg
}

func allCashStrategy(id, account string) domain.Strategy {
	return domain.Strategy{
		ID:        id,
		AccountID: account,
		Cash:      10000,
		Targets: []domain.Target{
			{AssetClass: "us_equity", Weight: 0.5, SecurityIDs: []string{"VTI"}},
			{AssetClass: "intl_equity", Weight: 0.4, SecurityIDs: []string{"VXUS"}},
			{AssetClass: "cash", Weight: 0.1},
		},
		Mode: domain.ModeTaxAware,
	}
}

func TestRun_TwoStrategiesShareOneAccount(t *testing.T) {
	runner := NewRunner(zerolog.Nop())

	result, err := runner.Run(Request{
		Strategies: []StrategyRun{
			{Strategy: allCashStrategy("s1", "acct-1"), Settings: batchSettings()},
			{Strategy: allCashStrategy("s2", "acct-1"), Settings: batchSettings()},
		},
		Securities: batchSecurities(),
		TaxRates:   domain.DefaultTaxRates(),
		AsOf:       asOf,
		Workers:    2,
	})
	require.NoError(t, err)
	require.Len(t, result.Strategies, 2)
	assert.NotEmpty(t, result.RunID)

	for _, sr := range result.Strategies {
		assert.True(t, sr.Success, sr.Reason)
		assert.NotEmpty(t, sr.Trades)
	}

	// Both strategies buy the same securities in the same account: one
	// net row per security, two contributions each
	require.NotEmpty(t, result.Netted)
	for _, row := range result.Netted {
		assert.Equal(t, "acct-1", row.AccountID)
		assert.Equal(t, domain.ActionBuy, row.Action)
		assert.Len(t, row.Contributions, 2)
	}

	assert.NotEmpty(t, result.Table)
	assert.NotEmpty(t, result.RestrictionsSnapshot)
}

// One strategy's bad input never aborts the others; it is reported and
// excluded from netting.
func TestRun_InvalidStrategyIsIsolated(t *testing.T) {
	bad := allCashStrategy("bad", "acct-1")
	bad.Cash = -1

	runner := NewRunner(zerolog.Nop())
	result, err := runner.Run(Request{
		Strategies: []StrategyRun{
			{Strategy: bad, Settings: batchSettings()},
			{Strategy: allCashStrategy("good", "acct-2"), Settings: batchSettings()},
		},
		Securities: batchSecurities(),
		TaxRates:   domain.DefaultTaxRates(),
		AsOf:       asOf,
	})
	require.NoError(t, err)
	require.Len(t, result.Strategies, 2)

	assert.False(t, result.Strategies[0].Success)
	assert.Equal(t, "error", result.Strategies[0].StatusCode)
	assert.Contains(t, result.Strategies[0].Reason, "cash must not be negative")

	assert.True(t, result.Strategies[1].Success, result.Strategies[1].Reason)

	for _, row := range result.Netted {
		assert.NotEqual(t, "acct-1", row.AccountID, "failed strategy must not reach netting")
	}
}

// A harvest in one strategy restricts the whole owner scope: a sibling
// strategy under the same owner cannot harvest the same security in the
// same batch.
func TestRun_HarvestRestrictsSiblingStrategies(t *testing.T) {
	cfg := batchSettings()
	cfg.ShouldTLH = true
	cfg.TLHMinLossThreshold = 0.01

	lossStrategy := func(id string) domain.Strategy {
		return domain.Strategy{
			ID:      id,
			OwnerID: "owner-1",
			Cash:    100,
			Lots: []domain.TaxLot{
				{ID: id + "-l1", SecurityID: "VTI", StrategyID: id, Quantity: 10, CostBasis: 150,
					AcquisitionDate: asOf.AddDate(0, 0, -400)},
			},
			Targets: []domain.Target{
				{AssetClass: "us_equity", Weight: 0.9, SecurityIDs: []string{"VTI", "SCHB"}},
				{AssetClass: "cash", Weight: 0.1},
			},
			Mode: domain.ModeTaxAware,
		}
	}

	runner := NewRunner(zerolog.Nop())
	result, err := runner.Run(Request{
		Strategies: []StrategyRun{
			{Strategy: lossStrategy("s1"), Settings: cfg},
			{Strategy: lossStrategy("s2"), Settings: cfg},
		},
		Securities: batchSecurities(),
		TaxRates:   domain.DefaultTaxRates(),
		AsOf:       asOf,
	})
	require.NoError(t, err)

	harvested := 0
	for _, sr := range result.Strategies {
		require.True(t, sr.Success, sr.Reason)
		harvested += len(sr.Harvests)
	}
	// The first strategy's harvest restricts VTI for owner-1; the
	// second's attempt hits that restriction in the pre-pass
	assert.Equal(t, 1, harvested)

	// No emitted sell realizes a loss on a restricted security: the
	// second strategy keeps its lot
	for _, sr := range result.Strategies[1:] {
		for _, trade := range sr.Trades {
			if trade.Action == domain.ActionSell {
				assert.Zero(t, trade.LongTermLoss)
				assert.Zero(t, trade.ShortTermLoss)
			}
		}
	}
}

// Restrictions carried in from a prior run block repurchases and new
// harvests inside their window.
func TestRun_CarriedRestrictionsApply(t *testing.T) {
	cfg := batchSettings()
	cfg.ShouldTLH = true
	cfg.TLHMinLossThreshold = 0.01

	restrictions := washsale.NewRestrictionSet()
	restrictions.Add(washsale.NewRestriction("owner-1", "VTI", asOf.AddDate(0, 0, -5), 30, "prior harvest"))

	strategy := domain.Strategy{
		ID:      "s1",
		OwnerID: "owner-1",
		Cash:    100,
		Lots: []domain.TaxLot{
			{ID: "l1", SecurityID: "VTI", StrategyID: "s1", Quantity: 10, CostBasis: 150,
				AcquisitionDate: asOf.AddDate(0, 0, -400)},
		},
		Targets: []domain.Target{
			{AssetClass: "us_equity", Weight: 0.9, SecurityIDs: []string{"VTI", "SCHB"}},
			{AssetClass: "cash", Weight: 0.1},
		},
		Mode: domain.ModeTaxAware,
	}

	runner := NewRunner(zerolog.Nop())
	result, err := runner.Run(Request{
		Strategies:   []StrategyRun{{Strategy: strategy, Settings: cfg}},
		Securities:   batchSecurities(),
		TaxRates:     domain.DefaultTaxRates(),
		Restrictions: restrictions,
		AsOf:         asOf,
	})
	require.NoError(t, err)
	require.Len(t, result.Strategies, 1)

	sr := result.Strategies[0]
	require.True(t, sr.Success, sr.Reason)
	assert.Empty(t, sr.Harvests, "restricted security must not be harvested")
	for _, trade := range sr.Trades {
		assert.NotEqual(t, "VTI", trade.SecurityID, "restricted security must not trade at a loss or be rebought")
	}
}

func TestRun_RejectsMissingInputs(t *testing.T) {
	runner := NewRunner(zerolog.Nop())

	_, err := runner.Run(Request{
		Securities: batchSecurities(),
		TaxRates:   domain.DefaultTaxRates(),
		AsOf:       asOf,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one strategy")

	_, err = runner.Run(Request{
		Strategies: []StrategyRun{{Strategy: allCashStrategy("s1", "a"), Settings: batchSettings()}},
		Securities: batchSecurities(),
		TaxRates:   domain.DefaultTaxRates(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "as_of date is required")

	_, err = runner.Run(Request{
		Strategies: []StrategyRun{{Strategy: allCashStrategy("s1", "a"), Settings: batchSettings()}},
		Securities: map[string]domain.Security{"VTI": {ID: "VTI", Price: -1}},
		TaxRates:   domain.DefaultTaxRates(),
		AsOf:       asOf,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price must be positive")
}

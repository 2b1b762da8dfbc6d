package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hvkshetry/rebalancer/internal/domain"
	enginetest "github.com/hvkshetry/rebalancer/internal/testing"
)

func TestValidateSecurities(t *testing.T) {
	securities := enginetest.NewSecurityFixtures()
	require.NoError(t, domain.ValidateSecurities(securities))

	bad := enginetest.NewSecurityFixtures()
	sec := bad["VTI"]
	sec.Price = 0
	bad["VTI"] = sec
	err := domain.ValidateSecurities(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price must be positive")

	bad = enginetest.NewSecurityFixtures()
	sec = bad["VTI"]
	sec.Spread = -0.01
	bad["VTI"] = sec
	err = domain.ValidateSecurities(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spread must not be negative")
}

func TestStrategy_Validate(t *testing.T) {
	securities := enginetest.NewSecurityFixtures()

	strategy := enginetest.NewAllCashStrategy("s1", 10000)
	require.NoError(t, strategy.Validate(securities))

	strategy.Cash = -1
	err := strategy.Validate(securities)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cash must not be negative")

	strategy = enginetest.NewAllCashStrategy("s1", 10000)
	strategy.Lots = []domain.TaxLot{enginetest.NewLot("l1", "UNKNOWN", "s1", 5, 100, 30)}
	err = strategy.Validate(securities)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown security")

	strategy = enginetest.NewAllCashStrategy("s1", 10000)
	strategy.Targets = append(strategy.Targets, domain.Target{AssetClass: "extra", Weight: 0.5, SecurityIDs: []string{"VTI"}})
	err = strategy.Validate(securities)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed 1")
}

func TestStrategy_OwnerAndAccountDefaults(t *testing.T) {
	strategy := domain.Strategy{ID: "s1"}
	assert.Equal(t, "s1", strategy.Owner())
	assert.Equal(t, "s1", strategy.Account())

	strategy.OwnerID = "owner-1"
	strategy.AccountID = "acct-1"
	assert.Equal(t, "owner-1", strategy.Owner())
	assert.Equal(t, "acct-1", strategy.Account())
}

func TestTaxRateSchedule_Validate(t *testing.T) {
	require.NoError(t, domain.DefaultTaxRates().Validate())
	require.NoError(t, enginetest.ZeroTaxRates().Validate())

	bad := domain.TaxRateSchedule{
		domain.GainShortTerm: {Federal: 0.3, State: 0.05, Total: 0.40},
	}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not equal")

	overridden := domain.TaxRateSchedule{
		domain.GainShortTerm: {Federal: 0.3, State: 0.05, Total: 0.40, OverrideTotal: true},
	}
	require.NoError(t, overridden.Validate())
}

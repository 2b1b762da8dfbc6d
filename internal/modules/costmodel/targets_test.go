package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hvkshetry/rebalancer/internal/domain"
)

func TestResolveTargets_ImplicitCashResidual(t *testing.T) {
	resolved := ResolveTargets([]domain.Target{
		{AssetClass: "us_equity", Weight: 0.4, SecurityIDs: []string{"VTI"}},
		{AssetClass: "intl_equity", Weight: 0.4, SecurityIDs: []string{"VXUS"}},
	})

	assert.Len(t, resolved.Groups, 2)
	assert.InDelta(t, 0.2, resolved.CashTarget, 1e-12)
	assert.Equal(t, 0.4, resolved.TargetWeightOf("VTI"))
	assert.Equal(t, 0.0, resolved.TargetWeightOf("UNKNOWN"))
}

func TestResolveTargets_ExplicitCashRow(t *testing.T) {
	resolved := ResolveTargets([]domain.Target{
		{AssetClass: "us_equity", Weight: 0.7, SecurityIDs: []string{"VTI"}},
		{AssetClass: "Cash", Weight: 0.3},
	})

	assert.Len(t, resolved.Groups, 1)
	assert.Equal(t, 0.3, resolved.CashTarget)
}

func TestResolveTargets_RankWithinGroup(t *testing.T) {
	resolved := ResolveTargets([]domain.Target{
		{AssetClass: "us_equity", Weight: 0.6, SecurityIDs: []string{"VTI", "ITOT", "SCHB"}},
	})

	assert.Equal(t, 0, resolved.Rank["VTI"])
	assert.Equal(t, 1, resolved.Rank["ITOT"])
	assert.Equal(t, 2, resolved.Rank["SCHB"])
	assert.Equal(t, 0, resolved.GroupOf["SCHB"])
}

func TestResolveTargets_DuplicateSecurityKeepsFirstGroup(t *testing.T) {
	resolved := ResolveTargets([]domain.Target{
		{AssetClass: "a", Weight: 0.5, SecurityIDs: []string{"VTI"}},
		{AssetClass: "b", Weight: 0.3, SecurityIDs: []string{"VTI", "VXUS"}},
	})

	assert.Equal(t, 0, resolved.GroupOf["VTI"])
	assert.Equal(t, 1, resolved.GroupOf["VXUS"])
}

func TestResolvedTargets_GroupWeight(t *testing.T) {
	resolved := ResolveTargets([]domain.Target{
		{AssetClass: "us_equity", Weight: 0.6, SecurityIDs: []string{"VTI", "ITOT"}},
	})

	weights := map[string]float64{"VTI": 0.35, "ITOT": 0.15, "VXUS": 0.2}
	assert.InDelta(t, 0.5, resolved.GroupWeight(0, weights), 1e-12)
}

// Package costmodel computes the five cost components of a candidate
// portfolio state: allocation drift, realized tax, transaction cost,
// factor model deviation, and cash drag. The model is evaluated both
// analytically for reporting and incrementally inside the optimizer's
// objective.
package costmodel

import (
	"strings"

	"github.com/hvkshetry/rebalancer/internal/domain"
)

// Group is one resolved target: a weight over an ordered set of eligible
// securities. Order is the preference ranking.
type Group struct {
	AssetClass  string
	Weight      float64
	SecurityIDs []string
}

// ResolvedTargets is a strategy's target structure in evaluable form:
// groups, the cash target, and per-security rank and group membership.
type ResolvedTargets struct {
	Groups     []Group
	CashTarget float64
	GroupOf    map[string]int // Security ID -> index into Groups
	Rank       map[string]int // Security ID -> preference rank within its group (0 = first choice)
}

// isCashTarget recognizes an explicit cash target row
func isCashTarget(t domain.Target) bool {
	return len(t.SecurityIDs) == 0 && strings.EqualFold(t.AssetClass, "cash")
}

// ResolveTargets normalizes a strategy's targets. An explicit cash row
// (asset class "cash", no securities) sets the cash target; otherwise
// cash is the residual 1 - sum of group weights. A security listed in
// two groups belongs to the first.
func ResolveTargets(targets []domain.Target) ResolvedTargets {
	resolved := ResolvedTargets{
		GroupOf: make(map[string]int),
		Rank:    make(map[string]int),
	}

	weightSum := 0.0
	explicitCash := false
	for _, t := range targets {
		if isCashTarget(t) {
			resolved.CashTarget += t.Weight
			explicitCash = true
			weightSum += t.Weight
			continue
		}
		idx := len(resolved.Groups)
		resolved.Groups = append(resolved.Groups, Group{
			AssetClass:  t.AssetClass,
			Weight:      t.Weight,
			SecurityIDs: append([]string(nil), t.SecurityIDs...),
		})
		weightSum += t.Weight
		for rank, id := range t.SecurityIDs {
			if _, seen := resolved.GroupOf[id]; seen {
				continue
			}
			resolved.GroupOf[id] = idx
			resolved.Rank[id] = rank
		}
	}

	if !explicitCash {
		resolved.CashTarget = 1.0 - weightSum
		if resolved.CashTarget < 0 {
			resolved.CashTarget = 0
		}
	}

	return resolved
}

// TargetWeightOf returns the target weight governing a security: its
// group's weight, or zero when the security belongs to no target.
func (r ResolvedTargets) TargetWeightOf(securityID string) float64 {
	idx, ok := r.GroupOf[securityID]
	if !ok {
		return 0
	}
	return r.Groups[idx].Weight
}

// GroupWeight sums the current weights of a group's members.
func (r ResolvedTargets) GroupWeight(groupIdx int, weights map[string]float64) float64 {
	var sum float64
	for _, id := range r.Groups[groupIdx].SecurityIDs {
		sum += weights[id]
	}
	return sum
}

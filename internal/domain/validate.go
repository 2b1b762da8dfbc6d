package domain

import (
	"fmt"
	"math"
)

// weightSumTolerance allows for float accumulation error when verifying
// that target weights plus cash sum to one
const weightSumTolerance = 1e-6

// ValidateSecurities checks the security table for usable market data.
func ValidateSecurities(securities map[string]Security) error {
	for id, sec := range securities {
		if sec.ID == "" {
			return fmt.Errorf("security %q: id is required", id)
		}
		if sec.ID != id {
			return fmt.Errorf("security %q: id does not match map key %q", sec.ID, id)
		}
		if sec.Price <= 0 || math.IsNaN(sec.Price) || math.IsInf(sec.Price, 0) {
			return fmt.Errorf("security %s: price must be positive, got %v", id, sec.Price)
		}
		if sec.Spread < 0 {
			return fmt.Errorf("security %s: spread must not be negative, got %v", id, sec.Spread)
		}
	}
	return nil
}

// Validate checks a strategy's inputs against the security table. All
// referenced securities must exist with positive prices, lot quantities
// and bases must be positive, and target weights must not exceed one.
// Missing or malformed inputs are errors; nothing is defaulted.
func (s Strategy) Validate(securities map[string]Security) error {
	if s.ID == "" {
		return fmt.Errorf("strategy id is required")
	}
	if s.Cash < 0 {
		return fmt.Errorf("strategy %s: cash must not be negative, got %v", s.ID, s.Cash)
	}

	for _, lot := range s.Lots {
		if lot.ID == "" {
			return fmt.Errorf("strategy %s: lot id is required", s.ID)
		}
		if lot.Quantity <= 0 {
			return fmt.Errorf("strategy %s: lot %s quantity must be positive, got %v", s.ID, lot.ID, lot.Quantity)
		}
		if lot.CostBasis <= 0 {
			return fmt.Errorf("strategy %s: lot %s cost basis must be positive, got %v", s.ID, lot.ID, lot.CostBasis)
		}
		if lot.AcquisitionDate.IsZero() {
			return fmt.Errorf("strategy %s: lot %s acquisition date is required", s.ID, lot.ID)
		}
		if _, ok := securities[lot.SecurityID]; !ok {
			return fmt.Errorf("strategy %s: lot %s references unknown security %s", s.ID, lot.ID, lot.SecurityID)
		}
	}

	weightSum := 0.0
	for _, target := range s.Targets {
		if target.Weight < 0 || target.Weight > 1 {
			return fmt.Errorf("strategy %s: target %s weight must be in [0, 1], got %v", s.ID, target.AssetClass, target.Weight)
		}
		weightSum += target.Weight
		for _, id := range target.SecurityIDs {
			if _, ok := securities[id]; !ok {
				return fmt.Errorf("strategy %s: target %s references unknown security %s", s.ID, target.AssetClass, id)
			}
		}
	}
	if weightSum > 1+weightSumTolerance {
		return fmt.Errorf("strategy %s: target weights sum to %.6f, must not exceed 1", s.ID, weightSum)
	}

	if s.Factors != nil && len(s.Factors.Reference) == 0 {
		return fmt.Errorf("strategy %s: factor model requires at least one reference exposure", s.ID)
	}

	return nil
}

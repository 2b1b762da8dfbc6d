package costmodel

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// FactorCost measures squared deviation between the state's factor
// exposures and the model's reference exposures, weighted per factor.
//
// Exposure per factor is the weight-vector product e_f = E_f · w over
// the securities carrying exposures; the cost is sum_f fw_f (e_f - r_f)^2.
func (c *Calculator) FactorCost(state State) float64 {
	if c.factors == nil || len(c.factors.Reference) == 0 {
		return 0
	}

	weights := state.Weights(c.securities)

	// Stable factor and security orderings for the matrix product
	factors := make([]string, 0, len(c.factors.Reference))
	for f := range c.factors.Reference {
		factors = append(factors, f)
	}
	sort.Strings(factors)

	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) == 0 {
		// All-cash state: exposure is zero on every factor
		var cost float64
		for _, f := range factors {
			ref := c.factors.Reference[f]
			cost += c.factorWeight(f) * ref * ref
		}
		return cost
	}

	w := mat.NewVecDense(len(ids), nil)
	for i, id := range ids {
		w.SetVec(i, weights[id])
	}

	exposure := mat.NewDense(len(factors), len(ids), nil)
	for fi, f := range factors {
		for si, id := range ids {
			exposure.Set(fi, si, c.securities[id].FactorExposures[f])
		}
	}

	var e mat.VecDense
	e.MulVec(exposure, w)

	var cost float64
	for fi, f := range factors {
		diff := e.AtVec(fi) - c.factors.Reference[f]
		cost += c.factorWeight(f) * diff * diff
	}
	return cost
}

// factorWeight returns the per-factor importance weight, defaulting to 1
func (c *Calculator) factorWeight(factor string) float64 {
	if c.factors.Weights == nil {
		return 1.0
	}
	if w, ok := c.factors.Weights[factor]; ok {
		return w
	}
	return 1.0
}

// Exposures returns the state's exposure per factor, for reporting.
func (c *Calculator) Exposures(state State) map[string]float64 {
	out := make(map[string]float64)
	if c.factors == nil {
		return out
	}
	weights := state.Weights(c.securities)
	for f := range c.factors.Reference {
		var e float64
		for id, w := range weights {
			e += w * c.securities[id].FactorExposures[f]
		}
		out[f] = e
	}
	return out
}

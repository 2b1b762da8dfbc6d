package solver

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGonumSolver_Quadratic(t *testing.T) {
	s := NewGonumSolver(zerolog.Nop())

	sol, err := s.Solve(Problem{
		Objective: func(x []float64) float64 {
			return (x[0] - 3) * (x[0] - 3)
		},
		Bounds:  []Bound{{Min: 0, Max: 10}},
		Initial: []float64{0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 3.0, sol.X[0], 1e-3)
	assert.InDelta(t, 0.0, sol.Objective, 1e-6)
}

func TestGonumSolver_NonSmoothObjective(t *testing.T) {
	s := NewGonumSolver(zerolog.Nop())

	// Absolute values, the shape the drift component produces
	sol, err := s.Solve(Problem{
		Objective: func(x []float64) float64 {
			return math.Abs(x[0]-2) + math.Abs(x[1]-5)
		},
		Bounds:  []Bound{{Min: 0, Max: 10}, {Min: 0, Max: 10}},
		Initial: []float64{0, 0},
	})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, sol.X[0], 1e-2)
	assert.InDelta(t, 5.0, sol.X[1], 1e-2)
}

func TestGonumSolver_WithGradient(t *testing.T) {
	s := NewGonumSolver(zerolog.Nop())

	sol, err := s.Solve(Problem{
		Objective: func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + (x[1]+2)*(x[1]+2)
		},
		Gradient: func(grad, x []float64) {
			grad[0] = 2 * (x[0] - 1)
			grad[1] = 2 * (x[1] + 2)
		},
		Bounds:  []Bound{{Min: -10, Max: 10}, {Min: -10, Max: 10}},
		Initial: []float64{5, 5},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1.0, sol.X[0], 1e-4)
	assert.InDelta(t, -2.0, sol.X[1], 1e-4)
}

func TestGonumSolver_BoundsRespected(t *testing.T) {
	s := NewGonumSolver(zerolog.Nop())

	// Unconstrained minimum at -4, outside the box
	sol, err := s.Solve(Problem{
		Objective: func(x []float64) float64 {
			return (x[0] + 4) * (x[0] + 4)
		},
		Bounds:  []Bound{{Min: 0, Max: 10}},
		Initial: []float64{5},
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sol.X[0], 0.0)
	assert.LessOrEqual(t, sol.X[0], 10.0)
	assert.InDelta(t, 0.0, sol.X[0], 1e-2)
}

func TestGonumSolver_InputValidation(t *testing.T) {
	s := NewGonumSolver(zerolog.Nop())

	_, err := s.Solve(Problem{Objective: func(x []float64) float64 { return 0 }})
	require.Error(t, err)

	_, err = s.Solve(Problem{
		Objective: func(x []float64) float64 { return 0 },
		Initial:   []float64{1, 2},
		Bounds:    []Bound{{Min: 0, Max: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bounds size")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "optimal", StatusOptimal.String())
	assert.Equal(t, "feasible", StatusFeasible.String())
	assert.Equal(t, "infeasible", StatusInfeasible.String())
	assert.Equal(t, "error", StatusError.String())
}

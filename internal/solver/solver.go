// Package solver provides a narrow minimization interface so the
// concrete solver is swappable without touching the optimizer's
// constraint formulation.
package solver

import (
	"errors"
	"time"
)

// ErrInfeasible is returned by callers that prove a problem has no
// feasible assignment before or after solving. The numeric solver itself
// reports convergence quality through Solution.Status.
var ErrInfeasible = errors.New("no feasible assignment satisfies the constraints")

// Status is the quality of a returned assignment
type Status int

const (
	// StatusOptimal: the solver converged on a minimum
	StatusOptimal Status = iota
	// StatusFeasible: the solver stopped without convergence but the
	// assignment is usable (heuristic quality)
	StatusFeasible
	// StatusInfeasible: the solver proved no assignment satisfies the
	// constraints. The gonum solver never returns this; callers that
	// detect infeasibility themselves report it alongside ErrInfeasible.
	StatusInfeasible
	// StatusError: the solver failed and the assignment is unusable
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Bound is a closed interval constraint on one decision variable
type Bound struct {
	Min float64
	Max float64
}

// Problem is a bound-constrained minimization. The objective must embed
// any relational constraints as penalty terms; Bounds are enforced by
// projection. Gradient is optional; gradient-free methods are used when
// it is nil.
type Problem struct {
	Objective     func(x []float64) float64
	Gradient      func(grad, x []float64)
	Bounds        []Bound
	Initial       []float64
	MaxIterations int
	TimeLimit     time.Duration
}

// Solution is the assignment a solver returns
type Solution struct {
	X         []float64
	Objective float64
	Status    Status
}

// Solver minimizes a bound-constrained problem.
type Solver interface {
	Solve(p Problem) (Solution, error)
}

package solver

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

// DefaultMaxIterations bounds a solve when the problem does not set one
const DefaultMaxIterations = 1000

// DefaultTimeLimit bounds a solve when the problem does not set one
const DefaultTimeLimit = 10 * time.Second

// GonumSolver minimizes through gonum's optimize package: a BFGS attempt
// first, Nelder-Mead as the fallback for non-smooth objectives, with
// bound projection inside and after the solve.
type GonumSolver struct {
	log zerolog.Logger
}

// NewGonumSolver creates the default solver.
func NewGonumSolver(log zerolog.Logger) *GonumSolver {
	return &GonumSolver{
		log: log.With().Str("component", "solver").Logger(),
	}
}

// successStatuses are the gonum convergence statuses accepted as optimal
var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// Solve minimizes the problem. The returned status is StatusOptimal on
// convergence, StatusFeasible when iteration or time limits stopped an
// otherwise usable descent, and StatusError with a non-nil error when
// both methods failed outright.
func (g *GonumSolver) Solve(p Problem) (Solution, error) {
	n := len(p.Initial)
	if n == 0 {
		return Solution{Status: StatusError}, fmt.Errorf("problem has no decision variables")
	}
	if len(p.Bounds) != n {
		return Solution{Status: StatusError}, fmt.Errorf("bounds size %d does not match %d decision variables", len(p.Bounds), n)
	}
	if p.Objective == nil {
		return Solution{Status: StatusError}, fmt.Errorf("problem has no objective")
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return p.Objective(projectToBounds(x, p.Bounds))
		},
	}
	if p.Gradient != nil {
		problem.Grad = func(grad, x []float64) {
			p.Gradient(grad, projectToBounds(x, p.Bounds))
		}
	}

	settings := &optimize.Settings{
		MajorIterations: p.MaxIterations,
		Runtime:         p.TimeLimit,
	}
	if settings.MajorIterations == 0 {
		settings.MajorIterations = DefaultMaxIterations
	}
	if settings.Runtime == 0 {
		settings.Runtime = DefaultTimeLimit
	}

	initial := projectToBounds(p.Initial, p.Bounds)

	var methods []optimize.Method
	if p.Gradient != nil {
		methods = []optimize.Method{&optimize.BFGS{}, &optimize.NelderMead{}}
	} else {
		methods = []optimize.Method{&optimize.NelderMead{}}
	}

	var best *optimize.Result
	var lastErr error
	for _, method := range methods {
		result, err := optimize.Minimize(problem, initial, settings, method)
		if err != nil {
			lastErr = err
			continue
		}
		if successStatuses[result.Status] {
			x := projectToBounds(result.X, p.Bounds)
			g.log.Debug().
				Str("method", fmt.Sprintf("%T", method)).
				Float64("objective", result.F).
				Int("evaluations", result.FuncEvaluations).
				Msg("Solve converged")
			return Solution{X: x, Objective: p.Objective(x), Status: StatusOptimal}, nil
		}
		if best == nil || result.F < best.F {
			best = result
		}
	}

	// No method converged: a bounded but usable descent still counts as
	// a feasible heuristic assignment
	if best != nil && !math.IsNaN(best.F) && !math.IsInf(best.F, 0) {
		x := projectToBounds(best.X, p.Bounds)
		g.log.Debug().
			Str("status", best.Status.String()).
			Float64("objective", best.F).
			Msg("Solve stopped without convergence, returning best point")
		return Solution{X: x, Objective: p.Objective(x), Status: StatusFeasible}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable solution found")
	}
	return Solution{Status: StatusError}, fmt.Errorf("optimization failed: %w", lastErr)
}

// projectToBounds clamps each coordinate into its interval
func projectToBounds(x []float64, bounds []Bound) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i].Min, math.Min(bounds[i].Max, x[i]))
	}
	return proj
}

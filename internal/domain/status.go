package domain

import "fmt"

// RunStatus tracks an optimization run through its lifecycle. A run moves
// from StatusPending to StatusSolving and terminates in exactly one of
// StatusOptimal, StatusInfeasible, or StatusError. Trades are emitted only
// from StatusOptimal.
type RunStatus int

const (
	StatusPending RunStatus = iota
	StatusSolving
	StatusOptimal
	StatusInfeasible
	StatusError
)

func (s RunStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSolving:
		return "solving"
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is an end state
func (s RunStatus) Terminal() bool {
	return s == StatusOptimal || s == StatusInfeasible || s == StatusError
}

// Success reports whether the run produced a usable trade set
func (s RunStatus) Success() bool {
	return s == StatusOptimal
}

// ParseRunStatus parses a string into a RunStatus.
func ParseRunStatus(s string) (RunStatus, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "solving":
		return StatusSolving, nil
	case "optimal":
		return StatusOptimal, nil
	case "infeasible":
		return StatusInfeasible, nil
	case "error":
		return StatusError, nil
	default:
		return 0, fmt.Errorf("unknown run status: %q", s)
	}
}

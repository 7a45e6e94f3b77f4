package solution

import (
	"fmt"
	"strings"
)

// Status is the terminal classification of a finished solve.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
	StatusInfeasibleOrUnbounded
	StatusUnbounded
	StatusError
)

var statusNames = [...]string{
	StatusUnknown:               "Unknown",
	StatusOptimal:               "Optimal",
	StatusFeasible:              "Feasible",
	StatusInfeasible:            "Infeasible",
	StatusInfeasibleOrUnbounded: "InfeasibleOrUnbounded",
	StatusUnbounded:             "Unbounded",
	StatusError:                 "Error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// HasSolution reports whether a solve with this status carries values.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any spelling ParseStatus understands.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

// ParseStatus maps the status strings the service and the CP engine emit.
// Both the engine spelling ("Optimal", "Feasible") and the job-level
// solve_status spelling ("optimal_solution") are accepted. Anything else is
// StatusUnknown.
func ParseStatus(s string) Status {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimSuffix(key, "_solution")
	key = strings.ReplaceAll(key, "_", "")
	switch key {
	case "optimal":
		return StatusOptimal
	case "feasible", "solutionlimit", "limitfeasible":
		return StatusFeasible
	case "infeasible":
		return StatusInfeasible
	case "infeasibleorunbounded", "unboundedorinfeasible":
		return StatusInfeasibleOrUnbounded
	case "unbounded":
		return StatusUnbounded
	case "error", "failed", "jobfailed":
		return StatusError
	default:
		return StatusUnknown
	}
}

// FromCPLEXCode maps a CPLEX solution status code (the solutionStatusValue
// header attribute) to a Status. Limit codes map to StatusFeasible only in
// their "_FEAS" variant, where an incumbent exists.
func FromCPLEXCode(code int) Status {
	switch code {
	case 1, 101, 102, 129, 130:
		return StatusOptimal
	case 2, 118:
		return StatusUnbounded
	case 3, 103:
		return StatusInfeasible
	case 4, 119:
		return StatusInfeasibleOrUnbounded
	case 5, 23, 127, 128,
		14, 15, 16, 17, 18, 19, // feasopt
		120, 121, 122, 123, 124, 125, 126, // feasopt on MIP
		104, 105, 107, 109, 111, 113, 115, 116, 131:
		return StatusFeasible
	default:
		return StatusUnknown
	}
}

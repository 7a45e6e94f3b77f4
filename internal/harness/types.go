package harness

import (
	"github.com/roach88/solvebridge/internal/solution"
)

// TraceEvent is one job transition seen by the ledger recorder.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Job   string `json:"job"`
	State string `json:"state"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the expect clause and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every job transition in order, including teardown.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ErrorClass classifies the error the operation returned, "" if none.
	ErrorClass string `json:"error_class,omitempty"`

	// Solution is the decoded remote solution, nil if the solve failed.
	Solution *solution.Solution `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a transition with the next sequence number.
func (r *Result) AddTrace(jobID, state string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: int64(len(r.Trace) + 1), Job: jobID, State: state})
}

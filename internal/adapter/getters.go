package adapter

import (
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/solution"
)

// Result returns the current result, or nil.
func (a *Adapter) Result() Result { return a.current }

// Solution returns the decoded remote solution behind the current result,
// or nil when there is none or it came from a local solver.
func (a *Adapter) Solution() *solution.Solution {
	if r, ok := a.current.(*RemoteResult); ok {
		return r.Solution
	}
	return nil
}

// LastJob returns the most recently submitted job.
func (a *Adapter) LastJob() *job.Job { return a.lastJob }

// Status returns the status of the current result, StatusUnknown if none.
func (a *Adapter) Status() solution.Status {
	if a.current == nil {
		return solution.StatusUnknown
	}
	return a.current.Status()
}

// ObjectiveValues returns every objective of the current result.
func (a *Adapter) ObjectiveValues() ([]float64, error) {
	if a.current == nil {
		return nil, ErrNoSolution
	}
	return a.current.ObjectiveValues(), nil
}

func (a *Adapter) Value(el model.Element) (float64, error) {
	return get(a, "value", el, Result.Value)
}

func (a *Adapter) Dual(el model.Element) (float64, error) {
	return get(a, "dual value", el, Result.Dual)
}

func (a *Adapter) Slack(el model.Element) (float64, error) {
	return get(a, "slack", el, Result.Slack)
}

func (a *Adapter) ReducedCost(el model.Element) (float64, error) {
	return get(a, "reduced cost", el, Result.ReducedCost)
}

func (a *Adapter) Interval(el model.Element) (solution.Interval, error) {
	return get(a, "interval value", el, Result.Interval)
}

func (a *Adapter) Sequence(el model.Element) ([]model.Element, error) {
	return get(a, "sequence", el, Result.Sequence)
}

func (a *Adapter) StateFunction(el model.Element) ([]solution.StepSegment, error) {
	return get(a, "state function", el, Result.StateFunction)
}

// ConflictStatus returns the refiner's verdict for el after RefineConflict.
func (a *Adapter) ConflictStatus(el model.Element) (solution.ConflictStatus, error) {
	return get(a, "conflict status", el, Result.ConflictStatus)
}

// KPI returns a named KPI of the current result.
func (a *Adapter) KPI(name string) (float64, error) {
	if a.current == nil {
		return 0, ErrNoSolution
	}
	v, ok := a.current.KPI(name)
	if !ok {
		return 0, &MissingError{What: "KPI", Element: name}
	}
	return v, nil
}

func get[V any](a *Adapter, what string, el model.Element, fn func(Result, model.Element) (V, bool)) (V, error) {
	var zero V
	if a.current == nil {
		return zero, ErrNoSolution
	}
	v, ok := fn(a.current, el)
	if !ok {
		return zero, &MissingError{What: what, Element: model.Describe(el)}
	}
	return v, nil
}

package adapter

import (
	"context"
	"slices"

	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
	"github.com/roach88/solvebridge/internal/solution"
)

// Result answers the getters of one finished solve, keyed by element.
type Result interface {
	Status() solution.Status
	ObjectiveValues() []float64
	Value(el model.Element) (float64, bool)
	Dual(el model.Element) (float64, bool)
	Slack(el model.Element) (float64, bool)
	ReducedCost(el model.Element) (float64, bool)
	Interval(el model.Element) (solution.Interval, bool)
	Sequence(el model.Element) ([]model.Element, bool)
	StateFunction(el model.Element) ([]solution.StepSegment, bool)
	ConflictStatus(el model.Element) (solution.ConflictStatus, bool)
	KPI(name string) (float64, bool)
}

// LocalSolver solves in process. The adapter uses it when no remote
// service is configured.
type LocalSolver interface {
	Solve(ctx context.Context, m model.Model) (*LocalResult, error)
}

// LocalResult is what an in-process solver reports, keyed directly by
// element.
type LocalResult struct {
	SolutionStatus solution.Status
	Objectives     []float64
	Values         map[model.Element]float64
	Duals          map[model.Element]float64
	Slacks         map[model.Element]float64
	ReducedCosts   map[model.Element]float64
	Intervals      map[model.Element]solution.Interval
	Sequences      map[model.Element][]model.Element
	StateFunctions map[model.Element][]solution.StepSegment
	Conflicts      map[model.Element]solution.ConflictStatus
	KPIs           map[string]float64
}

func (r *LocalResult) Status() solution.Status { return r.SolutionStatus }

func (r *LocalResult) ObjectiveValues() []float64 { return slices.Clone(r.Objectives) }

func (r *LocalResult) Value(el model.Element) (float64, bool) {
	v, ok := r.Values[el]
	return v, ok
}

func (r *LocalResult) Dual(el model.Element) (float64, bool) {
	v, ok := r.Duals[el]
	return v, ok
}

func (r *LocalResult) Slack(el model.Element) (float64, bool) {
	v, ok := r.Slacks[el]
	return v, ok
}

func (r *LocalResult) ReducedCost(el model.Element) (float64, bool) {
	v, ok := r.ReducedCosts[el]
	return v, ok
}

func (r *LocalResult) Interval(el model.Element) (solution.Interval, bool) {
	v, ok := r.Intervals[el]
	return v, ok
}

func (r *LocalResult) Sequence(el model.Element) ([]model.Element, bool) {
	v, ok := r.Sequences[el]
	return slices.Clone(v), ok
}

func (r *LocalResult) StateFunction(el model.Element) ([]solution.StepSegment, bool) {
	v, ok := r.StateFunctions[el]
	return slices.Clone(v), ok
}

func (r *LocalResult) ConflictStatus(el model.Element) (solution.ConflictStatus, bool) {
	v, ok := r.Conflicts[el]
	return v, ok
}

func (r *LocalResult) KPI(name string) (float64, bool) {
	v, ok := r.KPIs[name]
	return v, ok
}

// RemoteResult is a decoded remote Solution plus the element/name pairing
// that was in force during the exchange. Lookups go element → name →
// value, so they keep working after the elements' names are restored.
type RemoteResult struct {
	Solution *solution.Solution
	Index    *naming.Index
	// JobID is the remote job that produced the solution.
	JobID string
}

func (r *RemoteResult) Status() solution.Status { return r.Solution.Status }

func (r *RemoteResult) ObjectiveValues() []float64 { return slices.Clone(r.Solution.Objectives) }

func (r *RemoteResult) Value(el model.Element) (float64, bool) {
	return lookup(r, el, r.Solution.Values)
}

func (r *RemoteResult) Dual(el model.Element) (float64, bool) {
	return lookup(r, el, r.Solution.Duals)
}

func (r *RemoteResult) Slack(el model.Element) (float64, bool) {
	return lookup(r, el, r.Solution.Slacks)
}

func (r *RemoteResult) ReducedCost(el model.Element) (float64, bool) {
	return lookup(r, el, r.Solution.ReducedCosts)
}

func (r *RemoteResult) Interval(el model.Element) (solution.Interval, bool) {
	return lookup(r, el, r.Solution.Intervals)
}

// Sequence resolves the ordered interval names back to elements. A name
// that no element carried makes the whole sequence unresolvable.
func (r *RemoteResult) Sequence(el model.Element) ([]model.Element, bool) {
	names, ok := lookup(r, el, r.Solution.Sequences)
	if !ok {
		return nil, false
	}
	out := make([]model.Element, len(names))
	for i, name := range names {
		itv, ok := r.Index.ElementOf(name)
		if !ok {
			return nil, false
		}
		out[i] = itv
	}
	return out, true
}

func (r *RemoteResult) StateFunction(el model.Element) ([]solution.StepSegment, bool) {
	segs, ok := lookup(r, el, r.Solution.StateFunctions)
	return slices.Clone(segs), ok
}

func (r *RemoteResult) ConflictStatus(el model.Element) (solution.ConflictStatus, bool) {
	c := r.Solution.Conflict
	if c == nil {
		return "", false
	}
	set := c.Constraints
	if el.Kind() == model.KindInterval {
		set = c.IntervalVars
	}
	return lookup(r, el, set)
}

func (r *RemoteResult) KPI(name string) (float64, bool) {
	v, ok := r.Solution.KPIs[name]
	return v, ok
}

func lookup[V any, M ~map[string]V](r *RemoteResult, el model.Element, m M) (V, bool) {
	var zero V
	name, ok := r.Index.NameOf(el)
	if !ok {
		return zero, false
	}
	v, ok := m[name]
	return v, ok
}

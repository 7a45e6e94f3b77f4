package solution

import (
	"maps"
	"math"
	"slices"
)

// Interval bounds on CP Optimizer time points. A state-function segment that
// extends to the horizon carries one of these.
const (
	IntervalMin int64 = -4503599627370494
	IntervalMax int64 = 4503599627370494
)

// Interval is the value of an interval variable. An absent optional interval
// has Present false and zero times.
type Interval struct {
	Present bool  `json:"present"`
	Start   int64 `json:"start"`
	Size    int64 `json:"size"`
	End     int64 `json:"end"`
}

// StepSegment is one constant piece of a state function.
type StepSegment struct {
	Start int64   `json:"start"`
	End   int64   `json:"end"`
	Value float64 `json:"value"`
}

// ConflictStatus is the refiner's verdict for one conflict member, kept as
// the engine reported it ("ConflictMember", "member", "possible_member", ...).
type ConflictStatus string

// IsMember reports whether the element is definitely part of the conflict.
func (c ConflictStatus) IsMember() bool {
	switch c {
	case "ConflictMember", "member", "Member":
		return true
	}
	return false
}

// ConflictSet maps an exchange name to its conflict status.
type ConflictSet map[string]ConflictStatus

// Conflict holds the result of a conflict refinement.
type Conflict struct {
	Constraints  ConflictSet `json:"constraints"`
	IntervalVars ConflictSet `json:"intervalVars"`
}

// Solution is the decoded, name-keyed result of one remote solve.
type Solution struct {
	Status Status `json:"status"`
	// SolveStatus is the raw status text the engine reported, if any.
	SolveStatus string `json:"solveStatus,omitempty"`

	PrimalFeasible bool `json:"primalFeasible,omitempty"`
	DualFeasible   bool `json:"dualFeasible,omitempty"`

	Objectives []float64 `json:"objectives,omitempty"`
	Bounds     []float64 `json:"bounds,omitempty"`
	Gaps       []float64 `json:"gaps,omitempty"`

	Values         map[string]float64       `json:"values"`
	Intervals      map[string]Interval      `json:"intervals"`
	Sequences      map[string][]string      `json:"sequences"`
	StateFunctions map[string][]StepSegment `json:"stateFunctions"`
	Duals          map[string]float64       `json:"duals"`
	Slacks         map[string]float64       `json:"slacks"`
	ReducedCosts   map[string]float64       `json:"reducedCosts"`
	KPIs           map[string]float64       `json:"kpis"`

	Conflict *Conflict `json:"conflict,omitempty"`
}

// New returns an empty Solution with every map allocated.
func New() *Solution {
	return &Solution{
		Values:         make(map[string]float64),
		Intervals:      make(map[string]Interval),
		Sequences:      make(map[string][]string),
		StateFunctions: make(map[string][]StepSegment),
		Duals:          make(map[string]float64),
		Slacks:         make(map[string]float64),
		ReducedCosts:   make(map[string]float64),
		KPIs:           make(map[string]float64),
	}
}

// Objective returns the first objective value.
func (s *Solution) Objective() (float64, bool) {
	if s == nil || len(s.Objectives) == 0 {
		return math.NaN(), false
	}
	return s.Objectives[0], true
}

// Merge folds other into s. Entries in other win on key collisions; vectors
// and the conflict are taken from other only when s has none. The status is
// taken from other when s is still unknown.
func (s *Solution) Merge(other *Solution) {
	if other == nil {
		return
	}
	if s.Status == StatusUnknown {
		s.Status = other.Status
	}
	if s.SolveStatus == "" {
		s.SolveStatus = other.SolveStatus
	}
	s.PrimalFeasible = s.PrimalFeasible || other.PrimalFeasible
	s.DualFeasible = s.DualFeasible || other.DualFeasible
	if len(s.Objectives) == 0 {
		s.Objectives = slices.Clone(other.Objectives)
	}
	if len(s.Bounds) == 0 {
		s.Bounds = slices.Clone(other.Bounds)
	}
	if len(s.Gaps) == 0 {
		s.Gaps = slices.Clone(other.Gaps)
	}
	maps.Copy(s.Values, other.Values)
	maps.Copy(s.Intervals, other.Intervals)
	maps.Copy(s.Sequences, other.Sequences)
	maps.Copy(s.StateFunctions, other.StateFunctions)
	maps.Copy(s.Duals, other.Duals)
	maps.Copy(s.Slacks, other.Slacks)
	maps.Copy(s.ReducedCosts, other.ReducedCosts)
	maps.Copy(s.KPIs, other.KPIs)
	if s.Conflict == nil && other.Conflict != nil {
		s.Conflict = &Conflict{
			Constraints:  maps.Clone(other.Conflict.Constraints),
			IntervalVars: maps.Clone(other.Conflict.IntervalVars),
		}
	}
}

// Empty reports whether the solution carries no status and no values.
func (s *Solution) Empty() bool {
	return s.Status == StatusUnknown && s.SolveStatus == "" &&
		len(s.Objectives) == 0 && len(s.Values) == 0 && len(s.Intervals) == 0 &&
		len(s.Sequences) == 0 && len(s.StateFunctions) == 0 && len(s.KPIs) == 0 &&
		s.Conflict == nil
}

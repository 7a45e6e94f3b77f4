package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/roach88/solvebridge/internal/solution"
)

// cpDocument is the top level of a CP solution. Every key is optional; a
// missing key means the solve did not produce that feature.
type cpDocument struct {
	SolutionStatus *struct {
		SolveStatus  string `json:"solveStatus"`
		SearchStatus string `json:"searchStatus"`
	} `json:"solutionStatus"`
	Objectives     json.RawMessage                       `json:"objectives"`
	Bounds         json.RawMessage                       `json:"bounds"`
	Gaps           json.RawMessage                       `json:"gaps"`
	IntVars        map[string]json.RawMessage            `json:"intVars"`
	IntervalVars   map[string]map[string]json.RawMessage `json:"intervalVars"`
	SequenceVars   map[string][]string                   `json:"sequenceVars"`
	StateFunctions map[string][]cpSegment                `json:"stateFunctions"`
	KPIs           map[string]json.RawMessage            `json:"KPIs"`
	Conflict       *struct {
		Constraints  map[string]string `json:"constraints"`
		IntervalVars map[string]string `json:"intervalVars"`
	} `json:"conflict"`
}

type cpSegment struct {
	Start json.RawMessage `json:"start"`
	End   json.RawMessage `json:"end"`
	Value json.RawMessage `json:"value"`
}

// ParseCP decodes a constraint-programming JSON solution.
func ParseCP(r io.Reader, known Known) (*solution.Solution, error) {
	return parseCP("solution.json", r, known)
}

func parseCP(source string, r io.Reader, known Known) (*solution.Solution, error) {
	var doc cpDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedError{Source: source, Offset: dec.InputOffset(), Reason: "invalid CP solution json", Err: err}
	}
	sol, err := doc.solution(known)
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			me.Source = source
		}
		return nil, err
	}
	return sol, nil
}

func (doc *cpDocument) solution(known Known) (*solution.Solution, error) {
	sol := solution.New()

	if doc.SolutionStatus != nil {
		sol.SolveStatus = doc.SolutionStatus.SolveStatus
		sol.Status = solution.ParseStatus(doc.SolutionStatus.SolveStatus)
	}

	var err error
	if sol.Objectives, err = numberVector("objectives", doc.Objectives); err != nil {
		return nil, err
	}
	if sol.Bounds, err = numberVector("bounds", doc.Bounds); err != nil {
		return nil, err
	}
	if sol.Gaps, err = numberVector("gaps", doc.Gaps); err != nil {
		return nil, err
	}

	for name, raw := range doc.IntVars {
		if !known.keep(name) {
			continue
		}
		v, ok, err := intVarValue(raw)
		if err != nil {
			return nil, malformed("", fmt.Sprintf("intVars %q", name), err)
		}
		if ok {
			sol.Values[name] = v
		}
	}

	for name, fields := range doc.IntervalVars {
		if !known.keep(name) {
			continue
		}
		itv, err := intervalValue(fields)
		if err != nil {
			return nil, malformed("", fmt.Sprintf("intervalVars %q", name), err)
		}
		sol.Intervals[name] = itv
	}

	for name, seq := range doc.SequenceVars {
		if !known.keep(name) {
			continue
		}
		sol.Sequences[name] = append([]string(nil), seq...)
	}

	for name, segs := range doc.StateFunctions {
		if !known.keep(name) {
			continue
		}
		steps := make([]solution.StepSegment, 0, len(segs))
		for i, seg := range segs {
			step, err := seg.step()
			if err != nil {
				return nil, malformed("", fmt.Sprintf("stateFunctions %q[%d]", name, i), err)
			}
			steps = append(steps, step)
		}
		sol.StateFunctions[name] = steps
	}

	for name, raw := range doc.KPIs {
		v, err := looseNumber(raw)
		if err != nil {
			return nil, malformed("", fmt.Sprintf("KPIs %q", name), err)
		}
		sol.KPIs[name] = v
	}

	if c := doc.Conflict; c != nil {
		sol.Conflict = &solution.Conflict{
			Constraints:  solution.ConflictSet{},
			IntervalVars: solution.ConflictSet{},
		}
		for name, status := range c.Constraints {
			if known.keep(name) {
				sol.Conflict.Constraints[name] = solution.ConflictStatus(status)
			}
		}
		for name, status := range c.IntervalVars {
			if known.keep(name) {
				sol.Conflict.IntervalVars[name] = solution.ConflictStatus(status)
			}
		}
		if sol.Status == solution.StatusUnknown && len(sol.Conflict.Constraints)+len(sol.Conflict.IntervalVars) > 0 {
			sol.Status = solution.StatusInfeasible
		}
	}
	return sol, nil
}

// numberVector accepts a JSON array of numbers or numeric strings, or a
// single such value. A missing key yields nil.
func numberVector(key string, raw json.RawMessage) ([]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] != '[' {
		v, err := looseNumber(raw)
		if err != nil {
			return nil, malformed("", key, err)
		}
		return []float64{v}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed("", key, err)
	}
	out := make([]float64, len(items))
	for i, item := range items {
		v, err := looseNumber(item)
		if err != nil {
			return nil, malformed("", fmt.Sprintf("%s[%d]", key, i), err)
		}
		out[i] = v
	}
	return out, nil
}

// looseNumber reads a JSON number, or a string holding a number or an
// infinity literal.
func looseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return ParseNumber(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// intVarValue reads a fixed integer variable. An unfixed variable is
// reported as its domain [lo, hi]; it carries a value only when lo == hi.
func intVarValue(raw json.RawMessage) (float64, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var dom []json.RawMessage
		if err := json.Unmarshal(raw, &dom); err != nil {
			return 0, false, err
		}
		if len(dom) != 2 {
			return 0, false, nil
		}
		lo, err := looseNumber(dom[0])
		if err != nil {
			return 0, false, err
		}
		hi, err := looseNumber(dom[1])
		if err != nil {
			return 0, false, err
		}
		return lo, lo == hi, nil
	}
	v, err := looseNumber(raw)
	return v, err == nil, err
}

// intervalValue reads {start, size, end}. An empty object is an absent
// optional interval.
func intervalValue(fields map[string]json.RawMessage) (solution.Interval, error) {
	if len(fields) == 0 {
		return solution.Interval{}, nil
	}
	if p, ok := fields["present"]; ok && strings.TrimSpace(string(p)) == "false" {
		return solution.Interval{}, nil
	}
	itv := solution.Interval{Present: true}
	for key, dst := range map[string]*int64{"start": &itv.Start, "size": &itv.Size, "end": &itv.End} {
		raw, ok := fields[key]
		if !ok {
			return solution.Interval{}, fmt.Errorf("missing %s", key)
		}
		v, err := timePoint(raw)
		if err != nil {
			return solution.Interval{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
	}
	return itv, nil
}

func (seg cpSegment) step() (solution.StepSegment, error) {
	start, err := timePoint(seg.Start)
	if err != nil {
		return solution.StepSegment{}, fmt.Errorf("start: %w", err)
	}
	end, err := timePoint(seg.End)
	if err != nil {
		return solution.StepSegment{}, fmt.Errorf("end: %w", err)
	}
	value, err := looseNumber(seg.Value)
	if err != nil {
		return solution.StepSegment{}, fmt.Errorf("value: %w", err)
	}
	return solution.StepSegment{Start: start, End: end, Value: value}, nil
}

// timePoint reads an integer time, accepting the "intervalmin" and
// "intervalmax" sentinels.
func timePoint(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "intervalmin":
			return solution.IntervalMin, nil
		case "intervalmax":
			return solution.IntervalMax, nil
		}
		f, err := ParseNumber(s)
		if err != nil {
			return 0, err
		}
		return clampTime(f), nil
	}
	f, err := looseNumber(raw)
	if err != nil {
		return 0, err
	}
	return clampTime(f), nil
}

func clampTime(f float64) int64 {
	switch {
	case f <= float64(solution.IntervalMin):
		return solution.IntervalMin
	case f >= float64(solution.IntervalMax):
		return solution.IntervalMax
	default:
		return int64(math.Round(f))
	}
}

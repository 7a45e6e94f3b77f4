package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/solvebridge/internal/adapter"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/solution"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nJob trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Job, ev.State)
		}
	}
	return buf.String()
}

// floatTolerance absorbs decimal round trips through XML and JSON.
const floatTolerance = 1e-9

// evaluate runs every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, result *Result) []string {
	var errs []string
	for i, a := range h.scenario.Assertions {
		if err := h.evaluateOne(ctx, result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluateOne(ctx context.Context, result *Result, a Assertion) error {
	ad := h.adapter
	el := h.elements[a.Element]

	switch a.Type {
	case AssertValue:
		return h.assertNumber(a, el, ad.Value)
	case AssertDual:
		return h.assertNumber(a, el, ad.Dual)
	case AssertSlack:
		return h.assertNumber(a, el, ad.Slack)
	case AssertReducedCost:
		return h.assertNumber(a, el, ad.ReducedCost)
	case AssertKPI:
		got, err := ad.KPI(a.Name)
		if err != nil {
			return err
		}
		return compareFloat(a.Type, *a.Value, got)
	case AssertConflict:
		got, err := ad.ConflictStatus(el)
		if err != nil {
			return err
		}
		if string(got) != a.Status {
			return &AssertionError{Type: a.Type, Expected: a.Status, Actual: string(got)}
		}
	case AssertInterval:
		got, err := ad.Interval(el)
		if err != nil {
			return err
		}
		want := solution.Interval(*a.Interval)
		if got != want {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%+v", want), Actual: fmt.Sprintf("%+v", got)}
		}
	case AssertSequence:
		got, err := ad.Sequence(el)
		if err != nil {
			return err
		}
		if ids := h.idsOf(got); !slices.Equal(ids, a.Order) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Order), Actual: fmt.Sprint(ids)}
		}
	case AssertMissing:
		_, err := ad.Value(el)
		if !adapter.IsMissing(err) {
			return &AssertionError{Type: a.Type, Expected: "no value for " + a.Element, Actual: fmt.Sprint(err)}
		}
	case AssertJobStates:
		got := make([]string, len(result.Trace))
		for i, ev := range result.Trace {
			got[i] = ev.State
		}
		if !slices.Equal(got, a.States) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.States), Actual: fmt.Sprint(got), Trace: result.Trace}
		}
	case AssertFetchCount:
		return compareCount(a.Type, *a.Count, h.service.Fetches())
	case AssertDeleteCount:
		return compareCount(a.Type, *a.Count, h.service.Deletes())
	case AssertSubmittedModel:
		return h.assertSubmitted(a)
	case AssertLedgerState:
		last := h.adapter.LastJob()
		if last == nil {
			return &AssertionError{Type: a.Type, Expected: a.State, Actual: "no job submitted"}
		}
		entry, err := h.store.ReadJob(ctx, last.ID)
		if err != nil {
			return err
		}
		if string(entry.State) != a.State {
			return &AssertionError{Type: a.Type, Expected: a.State, Actual: string(entry.State), Trace: result.Trace}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func (h *Harness) assertNumber(a Assertion, el model.Element, get func(model.Element) (float64, error)) error {
	got, err := get(el)
	if err != nil {
		return err
	}
	return compareFloat(a.Type+" "+a.Element, *a.Value, got)
}

// assertSubmitted checks the model text of the first submission. An inline
// model is the last input_data entry.
func (h *Harness) assertSubmitted(a Assertion) error {
	subs := h.service.Submissions()
	if len(subs) == 0 {
		return &AssertionError{Type: a.Type, Expected: "one submission", Actual: "none"}
	}
	var body job.SubmitRequest
	if err := json.Unmarshal(subs[0], &body); err != nil {
		return err
	}
	inputs := body.DecisionOptimization.InputData
	if len(inputs) == 0 {
		return &AssertionError{Type: a.Type, Expected: "an inline model", Actual: "no input_data"}
	}
	text := string(inputs[len(inputs)-1].Content)
	for _, want := range a.Contains {
		if !strings.Contains(text, want) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("model containing %q", want), Actual: text}
		}
	}
	return nil
}

func (h *Harness) idsOf(elements []model.Element) []string {
	ids := make([]string, len(elements))
	for i, el := range elements {
		for id, candidate := range h.elements {
			if candidate == el {
				ids[i] = id
				break
			}
		}
	}
	return ids
}

func compareFloat(what string, want, got float64) error {
	if math.Abs(want-got) > floatTolerance {
		return &AssertionError{Type: what, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func compareCount(what string, want, got int) error {
	if want != got {
		return &AssertionError{Type: what, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

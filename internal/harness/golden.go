package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/solvebridge/internal/solution"
)

// Snapshot captures what a scenario produced: the error class, the job
// trace and the canonical solution.
type Snapshot struct {
	Scenario   string          `json:"scenario"`
	ErrorClass string          `json:"error_class,omitempty"`
	Trace      []TraceEvent    `json:"trace"`
	Solution   json.RawMessage `json:"solution,omitempty"`
}

// Render marshals the snapshot of result as indented JSON with a trailing
// newline. The solution part is solution.Snapshot's canonical form, so
// equal results render identical bytes.
func Render(name string, result *Result) ([]byte, error) {
	snap := Snapshot{Scenario: name, ErrorClass: result.ErrorClass, Trace: result.Trace}
	if result.Solution != nil {
		raw, err := solution.Snapshot(result.Solution)
		if err != nil {
			return nil, err
		}
		snap.Solution = raw
	}
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden executes a scenario, fails the test on any assertion
// error, and compares its snapshot against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Render(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
)

// Scenario defines one end-to-end solve against the fake service.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode selects the adapter operation. Defaults to solve.
	Mode string `yaml:"mode,omitempty"`

	// Policy is the naming policy spelling. Defaults to assign-missing.
	Policy string `yaml:"policy,omitempty"`

	// Tokens feed the name generator in order. When empty the harness
	// generates "0001", "0002", ...
	Tokens []string `yaml:"tokens,omitempty"`

	// DeleteAfterSolve deletes the job as soon as results are decoded.
	DeleteAfterSolve bool `yaml:"delete_after_solve,omitempty"`

	// Teardown is the Close policy spelling. Defaults to surface.
	Teardown string `yaml:"teardown,omitempty"`

	Model   ModelSpec   `yaml:"model"`
	Service ServiceSpec `yaml:"service"`

	// Preferences feed refine_conflict; Relaxations feed feasopt.
	Preferences []WeightSpec `yaml:"preferences,omitempty"`
	Relaxations []WeightSpec `yaml:"relaxations,omitempty"`

	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the result, the trace and the service traffic.
	Assertions []Assertion `yaml:"assertions"`

	dir string
}

// ModelSpec describes the in-memory model the scenario solves.
type ModelSpec struct {
	Name     string        `yaml:"name"`
	Format   string        `yaml:"format"`
	Elements []ElementSpec `yaml:"elements"`
}

// ElementSpec is one model element. A nil Name leaves it unnamed.
type ElementSpec struct {
	// ID is the handle assertions use; it is not the element's name.
	ID         string  `yaml:"id"`
	Kind       string  `yaml:"kind"`
	Constraint string  `yaml:"constraint,omitempty"`
	Name       *string `yaml:"name,omitempty"`
}

// ServiceSpec scripts the fake service.
type ServiceSpec struct {
	States      []string          `yaml:"states,omitempty"`
	SolveStatus string            `yaml:"solve_status,omitempty"`
	Details     map[string]string `yaml:"details,omitempty"`
	Outputs     []OutputSpec      `yaml:"outputs,omitempty"`
	// Failure is the JSON failure body reported for failed jobs.
	Failure     string `yaml:"failure,omitempty"`
	FailFetchAt int    `yaml:"fail_fetch_at,omitempty"`
}

// OutputSpec is one output attachment: a file, inline text, or a table.
type OutputSpec struct {
	ID     string   `yaml:"id"`
	File   string   `yaml:"file,omitempty"`
	Text   string   `yaml:"text,omitempty"`
	Fields []string `yaml:"fields,omitempty"`
	Values [][]any  `yaml:"values,omitempty"`
}

// WeightSpec weights an element for conflict refinement or relaxation.
// Weight applies to refinement; Lower and Upper to relaxation.
type WeightSpec struct {
	Element string  `yaml:"element"`
	Weight  float64 `yaml:"weight,omitempty"`
	Lower   float64 `yaml:"lower,omitempty"`
	Upper   float64 `yaml:"upper,omitempty"`
}

// ExpectClause specifies how the operation ends.
type ExpectClause struct {
	// Error is the expected error class, empty for success.
	Error string `yaml:"error,omitempty"`

	// Status is the expected solution status name.
	Status string `yaml:"status,omitempty"`
}

// Assertion validates one aspect of the outcome.
type Assertion struct {
	Type string `yaml:"type"`

	// Element is an element id (value, dual, slack, reduced_cost,
	// conflict, interval, sequence, missing).
	Element string `yaml:"element,omitempty"`

	// Name is a KPI name (kpi).
	Name string `yaml:"name,omitempty"`

	Value    *float64      `yaml:"value,omitempty"`
	Status   string        `yaml:"status,omitempty"`
	Interval *IntervalSpec `yaml:"interval,omitempty"`

	// Order lists element ids (sequence).
	Order []string `yaml:"order,omitempty"`

	// States lists job states (job_states) or holds one (ledger_state).
	States []string `yaml:"states,omitempty"`
	State  string   `yaml:"state,omitempty"`

	Count    *int     `yaml:"count,omitempty"`
	Contains []string `yaml:"contains,omitempty"`
}

// IntervalSpec is an expected interval value.
type IntervalSpec struct {
	Present bool  `yaml:"present"`
	Start   int64 `yaml:"start"`
	Size    int64 `yaml:"size"`
	End     int64 `yaml:"end"`
}

// Operation modes.
const (
	ModeSolve          = "solve"
	ModeSolveCP        = "solve_cp"
	ModeRefineConflict = "refine_conflict"
	ModeFeasOpt        = "feasopt"
)

// Assertion type constants.
const (
	AssertValue          = "value"
	AssertDual           = "dual"
	AssertSlack          = "slack"
	AssertReducedCost    = "reduced_cost"
	AssertKPI            = "kpi"
	AssertConflict       = "conflict"
	AssertInterval       = "interval"
	AssertSequence       = "sequence"
	AssertMissing        = "missing"
	AssertJobStates      = "job_states"
	AssertFetchCount     = "fetch_count"
	AssertDeleteCount    = "delete_count"
	AssertSubmittedModel = "submitted_model"
	AssertLedgerState    = "ledger_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// resolve returns p relative to the scenario file.
func (s *Scenario) resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

func (s *Scenario) mode() string {
	if s.Mode == "" {
		return ModeSolve
	}
	return s.Mode
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 && s.Expect == (ExpectClause{}) {
		return fmt.Errorf("expect or assertions are required")
	}

	switch s.mode() {
	case ModeSolve, ModeSolveCP, ModeRefineConflict, ModeFeasOpt:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	if _, err := naming.ParsePolicy(s.Policy); err != nil {
		return err
	}
	if s.Model.Format != "" {
		if _, err := model.FormatFromPath("model." + s.Model.Format); err != nil {
			return fmt.Errorf("model.format: %w", err)
		}
	}

	ids := make(map[string]struct{}, len(s.Model.Elements))
	for i, el := range s.Model.Elements {
		if el.ID == "" {
			return fmt.Errorf("model.elements[%d]: id is required", i)
		}
		if _, dup := ids[el.ID]; dup {
			return fmt.Errorf("model.elements[%d]: duplicate id %q", i, el.ID)
		}
		ids[el.ID] = struct{}{}
		if _, _, err := parseKind(el.Kind, el.Constraint); err != nil {
			return fmt.Errorf("model.elements[%d]: %w", i, err)
		}
	}
	known := func(id string) bool {
		_, ok := ids[id]
		return ok
	}

	for i, out := range s.Service.Outputs {
		if out.ID == "" {
			return fmt.Errorf("service.outputs[%d]: id is required", i)
		}
		if out.File != "" {
			if _, err := os.Stat(s.resolve(out.File)); err != nil {
				return fmt.Errorf("service.outputs[%d]: %w", i, err)
			}
		}
	}
	for i, w := range append(append([]WeightSpec(nil), s.Preferences...), s.Relaxations...) {
		if !known(w.Element) {
			return fmt.Errorf("weights[%d]: unknown element %q", i, w.Element)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], known); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, known func(string) bool) error {
	needElement := func() error {
		if !known(a.Element) {
			return fmt.Errorf("assertions[%d]: unknown element %q for %s", index, a.Element, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertValue, AssertDual, AssertSlack, AssertReducedCost:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
		return needElement()
	case AssertKPI:
		if a.Name == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: name and value are required for kpi", index)
		}
	case AssertConflict:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for conflict", index)
		}
		return needElement()
	case AssertInterval:
		if a.Interval == nil {
			return fmt.Errorf("assertions[%d]: interval is required", index)
		}
		return needElement()
	case AssertSequence:
		for _, id := range a.Order {
			if !known(id) {
				return fmt.Errorf("assertions[%d]: unknown element %q in order", index, id)
			}
		}
		return needElement()
	case AssertMissing:
		return needElement()
	case AssertJobStates:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for job_states", index)
		}
	case AssertFetchCount, AssertDeleteCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertSubmittedModel:
		if len(a.Contains) == 0 {
			return fmt.Errorf("assertions[%d]: contains is required for submitted_model", index)
		}
	case AssertLedgerState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for ledger_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

package harness

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/solvebridge/internal/adapter"
	"github.com/roach88/solvebridge/internal/conflict"
	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
	"github.com/roach88/solvebridge/internal/session"
	"github.com/roach88/solvebridge/internal/solution"
	"github.com/roach88/solvebridge/internal/store"
	"github.com/roach88/solvebridge/internal/testutil"
	"github.com/roach88/solvebridge/internal/transport"
)

// Identifiers the harness submits under.
const (
	harnessSpace      = "space-harness"
	harnessDeployment = "dep-harness"
)

// Harness holds one scenario's live fixtures.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	service  *testutil.FakeService
	adapter  *adapter.Adapter
	elements map[string]model.Element
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory ledger against its own fake
// service. Execution flow:
//  1. Build the model and script the service
//  2. Run the operation the scenario names
//  3. Close the adapter so teardown shows in the trace
//  4. Check names, the expect clause, then every assertion
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	script, err := scenario.script()
	if err != nil {
		return nil, err
	}
	fake := testutil.StartFakeService(script)
	defer fake.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result := NewResult()

	client, err := transport.NewClient(fake.URL(), transport.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	svc := job.NewService(client, harnessSpace,
		job.WithSleeper(testutil.NewFakeSleeper()),
		job.WithClock(testutil.NewDeterministicClock().Now),
		job.WithRecorder(&traceRecorder{next: st, result: result}),
		job.WithLogger(logger))

	opts, err := scenario.adapterOptions(logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	opts = append(opts,
		adapter.WithJobs(svc, harnessDeployment),
		adapter.WithLedger(st),
		adapter.WithCloser(func() error { client.Close(); return nil }))

	h := &Harness{scenario: scenario, store: st, service: fake, logger: logger}
	m, err := h.buildModel()
	if err != nil {
		client.Close()
		return nil, err
	}
	h.adapter = adapter.New(opts...)
	before := snapshotNames(m.elements)

	opErr := h.execute(ctx, m)
	result.ErrorClass = classify(opErr)
	result.Solution = h.adapter.Solution()

	if err := h.adapter.Close(ctx); err != nil {
		result.AddError(fmt.Sprintf("close: %v", err))
	}

	if after := snapshotNames(m.elements); !namesEqual(before, after) {
		result.AddError(fmt.Sprintf("names not restored: before %v, after %v", before, after))
	}
	h.checkExpect(result, opErr)
	for _, msg := range h.evaluate(ctx, result) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs the scenario's operation.
func (h *Harness) execute(ctx context.Context, m *scenarioModel) error {
	s := h.scenario
	switch s.mode() {
	case ModeSolveCP:
		return h.adapter.SolveCP(ctx, m)
	case ModeRefineConflict:
		prefs := make([]conflict.Preference, len(s.Preferences))
		for i, p := range s.Preferences {
			prefs[i] = conflict.Preference{Element: h.elements[p.Element], Weight: p.Weight}
		}
		return h.adapter.RefineConflict(ctx, m, prefs)
	case ModeFeasOpt:
		relax := make([]conflict.Relaxation, len(s.Relaxations))
		for i, r := range s.Relaxations {
			relax[i] = conflict.Relaxation{Element: h.elements[r.Element], Lower: r.Lower, Upper: r.Upper}
		}
		return h.adapter.FeasOpt(ctx, m, relax)
	default:
		return h.adapter.Solve(ctx, m)
	}
}

func (h *Harness) checkExpect(result *Result, opErr error) {
	want := h.scenario.Expect
	if result.ErrorClass != want.Error {
		msg := fmt.Sprintf("expected error class %q, got %q", want.Error, result.ErrorClass)
		if opErr != nil {
			msg += fmt.Sprintf(" (%v)", opErr)
		}
		result.AddError(msg)
	}
	if want.Status != "" {
		got := h.adapter.Status()
		if got != solution.ParseStatus(want.Status) {
			result.AddError(fmt.Sprintf("expected status %s, got %s", want.Status, got))
		}
	}
}

// classify names the family an operation error belongs to.
func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case job.IsFailed(err):
		return "failed"
	case naming.IsConflictError(err):
		return "naming"
	case conflict.IsUnsupported(err):
		return "unsupported"
	case decode.IsMalformed(err):
		return "malformed"
	case session.IsAuthError(err):
		return "auth"
	case transport.IsTransportError(err):
		return "transport"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

func (s *Scenario) adapterOptions(logger *slog.Logger) ([]adapter.Option, error) {
	policy, err := naming.ParsePolicy(s.Policy)
	if err != nil {
		return nil, err
	}
	teardown, err := adapter.ParseTeardown(s.Teardown)
	if err != nil {
		return nil, err
	}

	tokens := s.Tokens
	if len(tokens) == 0 {
		tokens = make([]string, 2*len(s.Model.Elements)+1)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("%04d", i+1)
		}
	}
	bridge := naming.NewBridge(naming.WithLogger(logger), naming.WithGenerator(naming.NewFixedGenerator(tokens...)))

	opts := []adapter.Option{
		adapter.WithBridge(bridge),
		adapter.WithNamingPolicy(policy),
		adapter.WithTeardown(teardown),
		adapter.WithLogger(logger),
	}
	if s.DeleteAfterSolve {
		opts = append(opts, adapter.WithDeleteAfterSolve())
	}
	return opts, nil
}

// script turns the service section into a fake service script, reading
// and encoding output files.
func (s *Scenario) script() (testutil.Script, error) {
	out := testutil.Script{
		States:      s.Service.States,
		SolveStatus: s.Service.SolveStatus,
		Details:     s.Service.Details,
		FailFetchAt: s.Service.FailFetchAt,
	}
	if s.Service.Failure != "" {
		if !json.Valid([]byte(s.Service.Failure)) {
			return out, fmt.Errorf("service.failure is not valid JSON")
		}
		out.Failure = json.RawMessage(s.Service.Failure)
	}
	for _, o := range s.Service.Outputs {
		att := decode.Attachment{ID: o.ID, Fields: o.Fields, Values: o.Values}
		switch {
		case o.File != "":
			data, err := os.ReadFile(s.resolve(o.File))
			if err != nil {
				return out, fmt.Errorf("output %s: %w", o.ID, err)
			}
			att.Content = base64.StdEncoding.EncodeToString(data)
		case o.Text != "":
			att.Content = base64.StdEncoding.EncodeToString([]byte(o.Text))
		}
		out.Outputs = append(out.Outputs, att)
	}
	return out, nil
}

// traceRecorder appends every transition to the result trace before
// handing it to the ledger.
type traceRecorder struct {
	next   job.Recorder
	result *Result
}

func (r *traceRecorder) Record(ctx context.Context, j *job.Job) error {
	r.result.AddTrace(j.ID, string(j.State))
	return r.next.Record(ctx, j)
}

// scenarioModel exports one line per element name, so the submitted model
// shows which names were in force at export time.
type scenarioModel struct {
	name     string
	format   model.Format
	elements []model.Element
}

func (m *scenarioModel) Name() string              { return m.name }
func (m *scenarioModel) Elements() []model.Element { return m.elements }

func (m *scenarioModel) Export(context.Context) (model.Artifact, error) {
	var b bytes.Buffer
	for _, el := range m.elements {
		name, _ := el.Name()
		fmt.Fprintf(&b, "%s %s\n", el.Kind(), name)
	}
	return model.Artifact{Name: "model." + string(m.format), Format: m.format, Source: model.BytesSource(b.Bytes())}, nil
}

func (h *Harness) buildModel() (*scenarioModel, error) {
	def := h.scenario.Model
	m := &scenarioModel{name: def.Name, format: model.Format(def.Format)}
	if m.format == "" {
		m.format = model.FormatLP
		if h.scenario.mode() == ModeSolveCP {
			m.format = model.FormatCPO
		}
	}

	h.elements = make(map[string]model.Element, len(def.Elements))
	for _, es := range def.Elements {
		kind, ck, err := parseKind(es.Kind, es.Constraint)
		if err != nil {
			return nil, err
		}
		var item *model.Item
		switch kind {
		case model.KindInterval:
			item = model.NewInterval("")
		case model.KindSequence:
			item = model.NewSequence("")
		case model.KindStateFunction:
			item = model.NewStateFunction("")
		case model.KindConstraint:
			item = model.NewConstraint(ck, "")
		default:
			item = model.NewVariable("")
		}
		if es.Name != nil {
			item.SetName(*es.Name)
		} else {
			item.ClearName()
		}
		h.elements[es.ID] = item
		m.elements = append(m.elements, item)
	}
	return m, nil
}

func parseKind(kind, constraint string) (model.Kind, model.ConstraintKind, error) {
	switch strings.ToLower(kind) {
	case "", "variable":
		return model.KindVariable, 0, nil
	case "interval":
		return model.KindInterval, 0, nil
	case "sequence":
		return model.KindSequence, 0, nil
	case "state_function", "state-function":
		return model.KindStateFunction, 0, nil
	case "constraint":
	default:
		return 0, 0, fmt.Errorf("unknown element kind %q", kind)
	}
	for ck := model.ConstraintLinear; ck <= model.ConstraintNot; ck++ {
		if strings.EqualFold(ck.String(), constraint) || (constraint == "" && ck == model.ConstraintLinear) {
			return model.KindConstraint, ck, nil
		}
	}
	return 0, 0, fmt.Errorf("unknown constraint kind %q", constraint)
}

type nameState struct {
	Name  string
	Named bool
}

func snapshotNames(elements []model.Element) []nameState {
	out := make([]nameState, len(elements))
	for i, el := range elements {
		name, named := el.Name()
		out[i] = nameState{Name: name, Named: named}
	}
	return out
}

func namesEqual(a, b []nameState) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvebridge/internal/conflict"
	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
	"github.com/roach88/solvebridge/internal/objectstore"
	"github.com/roach88/solvebridge/internal/session"
	"github.com/roach88/solvebridge/internal/solution"
	"github.com/roach88/solvebridge/internal/store"
	"github.com/roach88/solvebridge/internal/testutil"
	"github.com/roach88/solvebridge/internal/transport"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// testModel exports one line per element name, so the submitted model
// shows which names were in force at export time.
type testModel struct {
	name     string
	elements []model.Element
	format   model.Format
}

func (m *testModel) Name() string              { return m.name }
func (m *testModel) Elements() []model.Element { return m.elements }

func (m *testModel) Export(context.Context) (model.Artifact, error) {
	format := m.format
	if format == "" {
		format = model.FormatLP
	}
	var b strings.Builder
	for _, el := range m.elements {
		name, _ := el.Name()
		fmt.Fprintln(&b, name)
	}
	return model.Artifact{Name: "model." + string(format), Format: format, Source: model.BytesSource(b.String())}, nil
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

type nameState struct {
	name  string
	named bool
}

func names(elements []model.Element) []nameState {
	out := make([]nameState, len(elements))
	for i, el := range elements {
		n, ok := el.Name()
		out[i] = nameState{n, ok}
	}
	return out
}

func newJobs(t *testing.T, fake *testutil.FakeService, opts ...job.Option) *job.Service {
	t.Helper()
	client, err := transport.NewClient(fake.URL(), transport.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	base := []job.Option{job.WithSleeper(testutil.NewFakeSleeper()), job.WithLogger(quiet)}
	return job.NewService(client, "space-1", append(base, opts...)...)
}

func newAdapter(t *testing.T, fake *testutil.FakeService, opts ...Option) *Adapter {
	t.Helper()
	base := []Option{
		WithJobs(newJobs(t, fake), "dep-1"),
		WithLogger(quiet),
		WithBridge(naming.NewBridge(naming.WithLogger(quiet), naming.WithGenerator(naming.NewFixedGenerator("a", "b", "c", "d")))),
	}
	return New(append(base, opts...)...)
}

func TestSolve_EndToEnd(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		States: []string{"running", "running", "completed"},
		Outputs: []decode.Attachment{{
			ID:      "solution.json",
			Content: b64(`{"solutionStatus":{"solveStatus":"Optimal"},"intVars":{"x":3}}`),
		}},
	})
	x := model.NewVariable("x")
	a := newAdapter(t, fake)

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "demo", elements: []model.Element{x}}))

	assert.Equal(t, solution.StatusOptimal, a.Status())
	v, err := a.Value(x)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 3.0, a.Solution().Values["x"])
	assert.Equal(t, 3, fake.Fetches())
	require.NotNil(t, a.LastJob())
	assert.Equal(t, job.StateCompleted, a.LastJob().State)
}

func TestSolve_GeneratedNamesResolveAfterRestore(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		Outputs: []decode.Attachment{{ID: "solution.xml", Content: b64(`<?xml version="1.0"?>
<CPLEXSolution version="1.2">
 <header objectiveValue="7" solutionStatusValue="1" primalFeasible="1" dualFeasible="1"/>
 <linearConstraints>
  <constraint name="c_b" slack="0" dual="0.5"/>
 </linearConstraints>
 <variables>
  <variable name="x_a" value="2.5" reducedCost="0"/>
  <variable name="stranger" value="9"/>
 </variables>
</CPLEXSolution>`)}},
	})
	x := model.NewVariable("")
	c := model.NewConstraint(model.ConstraintLinear, "")
	named := model.NewVariable("kept")
	elements := []model.Element{x, c, named}
	before := names(elements)
	a := newAdapter(t, fake)

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "lp", elements: elements}))
	assert.Equal(t, before, names(elements))

	v, err := a.Value(x)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
	d, err := a.Dual(c)
	require.NoError(t, err)
	assert.Equal(t, 0.5, d)
	s, err := a.Slack(c)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
	rc, err := a.ReducedCost(x)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rc)
	objs, err := a.ObjectiveValues()
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, objs)

	_, err = a.Value(named)
	assert.True(t, IsMissing(err))
	assert.NotContains(t, a.Solution().Values, "stranger", "names outside the model are dropped")

	sent := string(fake.Submissions()[0])
	var body struct {
		DecisionOptimization struct {
			InputData []job.InlineData `json:"input_data"`
		} `json:"decision_optimization"`
	}
	require.NoError(t, json.Unmarshal([]byte(sent), &body))
	require.Len(t, body.DecisionOptimization.InputData, 1)
	assert.Equal(t, "x_a\nc_b\nkept\n", string(body.DecisionOptimization.InputData[0].Content))
}

func TestSolve_NamesRestoredOnFailure(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		States:  []string{"running", "failed"},
		Failure: json.RawMessage(`{"errors":[{"code":"infeasible_model","message":"boom"}]}`),
	})
	elements := []model.Element{model.NewVariable(""), model.NewInterval("itv"), model.NewConstraint(model.ConstraintRanged, "")}
	before := names(elements)
	a := newAdapter(t, fake)

	err := a.Solve(context.Background(), &testModel{name: "bad", elements: elements})
	require.Error(t, err)
	assert.True(t, job.IsFailed(err))
	assert.Equal(t, before, names(elements))
	assert.Nil(t, a.Result())

	_, err = a.Value(elements[0])
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestSolve_NamesRestoredOnMalformedOutput(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		Outputs: []decode.Attachment{{ID: "solution.xml", Content: b64(`<CPLEXSolution><header objectiveValue="1"/></CPLEXSolution>`)}},
	})
	x := model.NewVariable("")
	a := newAdapter(t, fake)

	err := a.Solve(context.Background(), &testModel{name: "m", elements: []model.Element{x}})
	require.Error(t, err)
	assert.True(t, decode.IsMalformed(err))
	_, named := x.Name()
	assert.False(t, named)
}

func TestSolve_RequireExistingFailsBeforeNetwork(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	a := newAdapter(t, fake, WithNamingPolicy(naming.RequireExisting))

	err := a.Solve(context.Background(), &testModel{name: "m", elements: []model.Element{
		model.NewVariable("dup"), model.NewConstraint(model.ConstraintLinear, "dup"),
	}})
	require.Error(t, err)
	assert.True(t, naming.IsConflictError(err))
	assert.Empty(t, fake.Submissions())
	assert.Equal(t, 0, fake.Exchanges())
}

func TestFeasOpt_RejectsLogicalConstraintBeforeNetwork(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	or := model.NewConstraint(model.ConstraintOr, "either")
	a := newAdapter(t, fake)

	err := a.FeasOpt(context.Background(), &testModel{name: "m", elements: []model.Element{or}},
		[]conflict.Relaxation{{Element: or, Lower: 1, Upper: 1}})
	require.Error(t, err)
	assert.True(t, conflict.IsUnsupported(err))
	assert.Empty(t, fake.Submissions())
}

func TestRefineConflict(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		Outputs: []decode.Attachment{{ID: "solution.json", Content: b64(
			`{"conflict":{"constraints":{"c_a":"ConflictMember"},"intervalVars":{"itv":"ConflictPossibleMember"}}}`)}},
	})
	c := model.NewConstraint(model.ConstraintLinear, "")
	itv := model.NewInterval("itv")
	other := model.NewConstraint(model.ConstraintLinear, "other")
	a := newAdapter(t, fake)

	err := a.RefineConflict(context.Background(), &testModel{name: "m", format: model.FormatCPO, elements: []model.Element{c, itv, other}},
		[]conflict.Preference{{Element: c, Weight: 2}})
	require.NoError(t, err)

	assert.Equal(t, solution.StatusInfeasible, a.Status())
	st, err := a.ConflictStatus(c)
	require.NoError(t, err)
	assert.True(t, st.IsMember())
	st, err = a.ConflictStatus(itv)
	require.NoError(t, err)
	assert.Equal(t, solution.ConflictStatus("ConflictPossibleMember"), st)
	_, err = a.ConflictStatus(other)
	assert.True(t, IsMissing(err))

	var body job.SubmitRequest
	require.NoError(t, json.Unmarshal(fake.Submissions()[0], &body))
	require.Len(t, body.DecisionOptimization.InputData, 2)
	assert.Equal(t, conflict.ConflictAttachmentID, body.DecisionOptimization.InputData[0].ID)
	assert.Contains(t, string(body.DecisionOptimization.InputData[0].Content), `name="c_a"`)
}

func TestSolveCP_RequiresCPOModel(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	a := newAdapter(t, fake)
	err := a.SolveCP(context.Background(), &testModel{name: "m", format: model.FormatLP})
	require.Error(t, err)
	assert.Empty(t, fake.Submissions())
}

func TestSolveCP_IntervalsAndSequences(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		Outputs: []decode.Attachment{{ID: "solution.json", Content: b64(`{
			"solutionStatus": {"solveStatus": "Feasible"},
			"objectives": [4],
			"intervalVars": {"t1": {"start": 0, "size": 4, "end": 4}, "t2": {"start": 4, "size": 1, "end": 5}},
			"sequenceVars": {"machine": ["t2", "t1"]},
			"stateFunctions": {"temp": [{"start": "intervalmin", "end": 4, "value": 1}]},
			"KPIs": {"makespan": 5}
		}`)}},
	})
	t1, t2 := model.NewInterval("t1"), model.NewInterval("t2")
	seq := model.NewSequence("machine")
	sf := model.NewStateFunction("temp")
	a := newAdapter(t, fake)

	require.NoError(t, a.SolveCP(context.Background(), &testModel{
		name: "sched", format: model.FormatCPO, elements: []model.Element{t1, t2, seq, sf},
	}))
	assert.Equal(t, solution.StatusFeasible, a.Status())

	itv, err := a.Interval(t1)
	require.NoError(t, err)
	assert.Equal(t, solution.Interval{Present: true, Start: 0, Size: 4, End: 4}, itv)

	order, err := a.Sequence(seq)
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Same(t, t2, order[0])
	assert.Same(t, t1, order[1])

	steps, err := a.StateFunction(sf)
	require.NoError(t, err)
	assert.Equal(t, []solution.StepSegment{{Start: solution.IntervalMin, End: 4, Value: 1}}, steps)

	k, err := a.KPI("makespan")
	require.NoError(t, err)
	assert.Equal(t, 5.0, k)
	_, err = a.KPI("nope")
	assert.True(t, IsMissing(err))
}

func TestDeleteAfterSolve(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	a := newAdapter(t, fake, WithDeleteAfterSolve(), WithHardDelete(true))

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
	assert.Equal(t, 1, fake.Deletes())
	assert.Empty(t, fake.Live())
	assert.Equal(t, job.StateDeleted, a.LastJob().State)

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, fake.Deletes())
}

func TestClose_TeardownPolicies(t *testing.T) {
	t.Run("surface deletes held jobs", func(t *testing.T) {
		fake := testutil.NewFakeService(t, testutil.Script{})
		a := newAdapter(t, fake)
		require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
		require.NoError(t, a.Close(context.Background()))
		assert.Equal(t, 1, fake.Deletes())
		require.NoError(t, a.Close(context.Background()), "idempotent")
		assert.ErrorIs(t, a.Solve(context.Background(), &testModel{name: "m"}), ErrClosed)
	})

	t.Run("keep leaves jobs", func(t *testing.T) {
		fake := testutil.NewFakeService(t, testutil.Script{})
		a := newAdapter(t, fake, WithTeardown(TeardownKeep))
		require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
		require.NoError(t, a.Close(context.Background()))
		assert.Equal(t, 0, fake.Deletes())
		assert.Len(t, fake.Live(), 1)
	})

	for _, tc := range []struct {
		policy  Teardown
		wantErr bool
	}{
		{TeardownSurface, true},
		{TeardownSwallow, false},
	} {
		t.Run(tc.policy.String()+" on unreachable service", func(t *testing.T) {
			fake := testutil.NewFakeService(t, testutil.Script{})
			a := newAdapter(t, fake, WithTeardown(tc.policy))
			require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
			fake.Server.Close()

			err := a.Close(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, transport.IsTransportError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSolve_WithSessionSendsToken(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	fake.RequireToken = true

	authClient, err := transport.NewClient(fake.URL(), transport.WithLogger(quiet))
	require.NoError(t, err)
	mgr := session.NewManager(session.ModeCloud, fake.TokenURL(), mapCreds{"apikey": "k"}, authClient,
		session.WithRefreshInterval(0), session.WithLogger(quiet))

	client, err := transport.NewClient(fake.URL(), transport.WithTokenSource(mgr), transport.WithLogger(quiet))
	require.NoError(t, err)
	svc := job.NewService(client, "space-1", job.WithSleeper(testutil.NewFakeSleeper()), job.WithLogger(quiet))
	a := New(WithJobs(svc, "dep-1"), WithSession(mgr), WithLogger(quiet))

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
	require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
	assert.Equal(t, 1, fake.Exchanges(), "token is fetched once")
	require.NoError(t, a.Close(context.Background()))
}

func TestSolve_RotatedTokenReauthenticates(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	fake.RequireToken = true

	authClient, err := transport.NewClient(fake.URL(), transport.WithLogger(quiet))
	require.NoError(t, err)
	mgr := session.NewManager(session.ModeCloud, fake.TokenURL(), mapCreds{"apikey": "k"}, authClient,
		session.WithRefreshInterval(0), session.WithLogger(quiet))

	client, err := transport.NewClient(fake.URL(), transport.WithTokenSource(mgr), transport.WithLogger(quiet))
	require.NoError(t, err)
	svc := job.NewService(client, "space-1", job.WithSleeper(testutil.NewFakeSleeper()), job.WithLogger(quiet))
	a := New(WithJobs(svc, "dep-1"), WithSession(mgr), WithLogger(quiet))
	defer a.Close(context.Background())

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}))
	require.Equal(t, 1, fake.Exchanges())

	fake.RotateToken("token-2")
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Solve(context.Background(), &testModel{name: "m"}), "solve %d", i)
	}
	assert.Equal(t, "token-2", mgr.Token())
	assert.Equal(t, 2, fake.Exchanges(), "one re-authentication after rotation")
	assert.Len(t, fake.Submissions(), 4, "a rejected submit is not duplicated")
}

func TestSolve_AuthFailureStopsBeforeSubmit(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	authClient, err := transport.NewClient(fake.URL(), transport.WithLogger(quiet))
	require.NoError(t, err)
	mgr := session.NewManager(session.ModeCloud, fake.TokenURL(), mapCreds{}, authClient, session.WithLogger(quiet))
	a := newAdapter(t, fake, WithSession(mgr))

	err = a.Solve(context.Background(), &testModel{name: "m"})
	require.Error(t, err)
	assert.True(t, session.IsAuthError(err))
	assert.Empty(t, fake.Submissions())
}

type mapCreds map[string]string

func (m mapCreds) Lookup(k string) (string, bool) {
	v, ok := m[k]
	return v, ok
}

func TestSolve_ObjectStoreReferences(t *testing.T) {
	bucket := testutil.NewFakeBucket(t)
	bucket.Store("out/solution.json", []byte(`{"solutionStatus":{"solveStatus":"Optimal"},"intVars":{"x":1}}`))
	fake := testutil.NewFakeService(t, testutil.Script{
		OutputReferences: []map[string]any{{
			"id":       "solution.json",
			"type":     "url",
			"location": map[string]string{"url": bucket.URL() + "/out/solution.json"},
		}},
	})
	objects, err := objectstore.NewHTTP(bucket.URL(), "", objectstore.WithLogger(quiet))
	require.NoError(t, err)
	x := model.NewVariable("x")
	a := newAdapter(t, fake, WithObjectStore(objects))

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "ref", elements: []model.Element{x}}))

	stored, ok := bucket.Object("ref/model.lp")
	require.True(t, ok)
	assert.Equal(t, "x\n", string(stored))

	var body job.SubmitRequest
	require.NoError(t, json.Unmarshal(fake.Submissions()[0], &body))
	assert.Empty(t, body.DecisionOptimization.InputData)
	require.Len(t, body.DecisionOptimization.InputDataReferences, 1)
	assert.Equal(t, bucket.URL()+"/ref/model.lp", body.DecisionOptimization.InputDataReferences[0].Location["url"])

	v, err := a.Value(x)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	require.NoError(t, a.Close(context.Background()))
}

func TestLedger_SolutionStoredAndOrphansDeletedAtClose(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{
		Outputs: []decode.Attachment{{ID: "solution.json", Content: b64(`{"solutionStatus":{"solveStatus":"Optimal"},"intVars":{"x":2}}`)}},
	})
	ledger, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	// A job left behind by an earlier process.
	first := newAdapter(t, fake, WithTeardown(TeardownKeep))
	require.NoError(t, first.Solve(context.Background(), &testModel{name: "m"}))
	orphan := first.LastJob()
	require.NoError(t, ledger.Record(context.Background(), orphan))

	svc := newJobs(t, fake, job.WithRecorder(ledger), job.WithClock(testutil.NewDeterministicClock().Now))
	a := New(WithJobs(svc, "dep-1"), WithLedger(ledger), WithLogger(quiet))
	x := model.NewVariable("x")
	require.NoError(t, a.Solve(context.Background(), &testModel{name: "m", elements: []model.Element{x}}))

	id := a.LastJob().ID
	stored, err := ledger.ReadSolution(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "optimal", strings.ToLower(stored.Status))
	want, _ := solution.Snapshot(a.Solution())
	assert.Equal(t, want, stored.Snapshot)

	require.NoError(t, a.Close(context.Background()))
	assert.Empty(t, fake.Live())
	pending, err := ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClose_LeavesJobsSubmittedAfterStart(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{})
	ledger, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := New(WithJobs(newJobs(t, fake, job.WithRecorder(ledger)), "dep-1"), WithLedger(ledger), WithLogger(quiet),
		WithClock(func() time.Time { return start }))

	// Another process shares the ledger and is still working on its job.
	other := New(
		WithJobs(newJobs(t, fake, job.WithRecorder(ledger), job.WithClock(func() time.Time { return start.Add(time.Minute) })), "dep-1"),
		WithTeardown(TeardownKeep), WithLogger(quiet))
	require.NoError(t, other.Solve(context.Background(), &testModel{name: "m"}))
	live := other.LastJob().ID

	// And an orphan from a run that ended before a started.
	old := New(
		WithJobs(newJobs(t, fake, job.WithRecorder(ledger), job.WithClock(func() time.Time { return start.Add(-time.Hour) })), "dep-1"),
		WithTeardown(TeardownKeep), WithLogger(quiet))
	require.NoError(t, old.Solve(context.Background(), &testModel{name: "m"}))
	orphan := old.LastJob().ID

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{live}, fake.Live())

	pending, err := ledger.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, live, pending[0].ID)
	assert.NotEqual(t, live, orphan)
}

type fakeLocal struct {
	calls int
	x     model.Element
}

func (f *fakeLocal) Solve(context.Context, model.Model) (*LocalResult, error) {
	f.calls++
	return &LocalResult{
		SolutionStatus: solution.StatusOptimal,
		Objectives:     []float64{1},
		Values:         map[model.Element]float64{f.x: 4},
	}, nil
}

func TestLocalSolver(t *testing.T) {
	x := model.NewVariable("")
	local := &fakeLocal{x: x}
	a := New(WithLocalSolver(local), WithLogger(quiet))

	require.NoError(t, a.Solve(context.Background(), &testModel{name: "m", elements: []model.Element{x}}))
	assert.Equal(t, 1, local.calls)
	v, err := a.Value(x)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
	assert.Nil(t, a.Solution())
	_, named := x.Name()
	assert.False(t, named, "local solves never rename")

	assert.ErrorIs(t, a.RefineConflict(context.Background(), &testModel{}, nil), ErrRemoteOnly)
	assert.ErrorIs(t, New(WithLogger(quiet)).Solve(context.Background(), &testModel{}), ErrNoSolver)
}

func TestGettersBeforeSolve(t *testing.T) {
	a := New(WithLogger(quiet))
	x := model.NewVariable("x")
	assert.Equal(t, solution.StatusUnknown, a.Status())
	_, err := a.Value(x)
	assert.ErrorIs(t, err, ErrNoSolution)
	_, err = a.ObjectiveValues()
	assert.ErrorIs(t, err, ErrNoSolution)
	_, err = a.KPI("k")
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestSolve_ContextCanceledRestoresNames(t *testing.T) {
	fake := testutil.NewFakeService(t, testutil.Script{States: []string{"running"}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	svc := newJobs(t, fake, job.WithSleeper(job.NewTimerSleeper()), job.WithPollInterval(5*time.Millisecond))
	a := New(WithJobs(svc, "dep-1"), WithLogger(quiet))
	x := model.NewVariable("")

	err := a.Solve(ctx, &testModel{name: "m", elements: []model.Element{x}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, named := x.Name()
	assert.False(t, named)
}

func TestParseTeardown(t *testing.T) {
	for in, want := range map[string]Teardown{"": TeardownSurface, "swallow": TeardownSwallow, "KEEP": TeardownKeep} {
		got, err := ParseTeardown(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTeardown("panic")
	assert.Error(t, err)
}

package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/testutil"
)

const cpSolution = `{"solutionStatus":{"solveStatus":"Optimal"},"objectives":[12],"intVars":{"x":3,"y":4}}`

type env struct {
	dir    string
	config string
	ledger string
	model  string
	fake   *testutil.FakeService
}

// newEnv starts a fake service and writes a configuration pointing at it.
func newEnv(t *testing.T, script testutil.Script, teardown string) *env {
	t.Helper()
	t.Setenv("SOLVEBRIDGE_APIKEY", "k")
	for _, key := range []string{"SOLVEBRIDGE_URL", "SOLVEBRIDGE_SPACE_ID", "SOLVEBRIDGE_DEPLOYMENT_ID", "SOLVEBRIDGE_LEDGER_PATH", "SOLVEBRIDGE_POLL_INTERVAL", "SOLVEBRIDGE_DELETE_AFTER_SOLVE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	fake := testutil.NewFakeService(t, script)
	dir := t.TempDir()
	e := &env{
		dir:    dir,
		config: filepath.Join(dir, "solvebridge.yaml"),
		ledger: filepath.Join(dir, "jobs.db"),
		model:  filepath.Join(dir, "plan.lp"),
		fake:   fake,
	}
	cfg := fmt.Sprintf(`service:
  url: %s
  space_id: space-1
  deployment_id: dep-1
auth:
  url: %s
solve:
  poll_interval: 1ms
  teardown: %s
ledger:
  path: %s
log:
  level: error
`, fake.URL(), fake.TokenURL(), teardown, e.ledger)
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(e.model, []byte("Minimize\n obj: x + y\nEnd\n"), 0o644))
	return e
}

func completedScript() testutil.Script {
	return testutil.Script{
		States: []string{"running", "completed"},
		Outputs: []decode.Attachment{
			{ID: "solution.json", Content: base64.StdEncoding.EncodeToString([]byte(cpSolution))},
		},
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSolveCommandText(t *testing.T) {
	e := newEnv(t, completedScript(), "surface")

	out, err := execute(t, "--config", e.config, "solve", e.model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Model:  plan\n")
	assert.Contains(t, out, "Job:    job-1")
	assert.Contains(t, out, "Status: Optimal\n")
	assert.Contains(t, out, "Objective 0: 12\n")
	assert.Regexp(t, `x\s+3\n`, out)
	assert.Regexp(t, `y\s+4\n`, out)

	// Teardown at close deleted the job.
	assert.Empty(t, e.fake.Live())
	assert.Equal(t, 1, e.fake.Deletes())
}

func TestSolveCommandJSONAndOutputFile(t *testing.T) {
	e := newEnv(t, completedScript(), "surface")
	snapPath := filepath.Join(e.dir, "solution.json")

	out, err := execute(t, "--config", e.config, "--format", "json", "solve", "--delete", "--param", "timelimit=30", "-o", snapPath, e.model)
	require.NoError(t, err, out)

	var resp struct {
		Status string      `json:"status"`
		Data   SolveReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Optimal", resp.Data.Status)
	assert.Equal(t, []float64{12}, resp.Data.Objectives)
	assert.Equal(t, map[string]float64{"x": 3, "y": 4}, resp.Data.Values)
	assert.Equal(t, "deleted", resp.Data.State)

	snap, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	assert.Contains(t, string(snap), `"values":{"x":3,"y":4}`)

	subs := e.fake.Submissions()
	require.Len(t, subs, 1)
	assert.Contains(t, string(subs[0]), `"timelimit":"30"`)
}

func TestSolveCommandFailedJob(t *testing.T) {
	e := newEnv(t, testutil.Script{
		States:  []string{"failed"},
		Failure: json.RawMessage(`{"errors":[{"code":"model_error","message":"syntax error"}]}`),
	}, "surface")

	out, err := execute(t, "--config", e.config, "--format", "json", "solve", e.model)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeJobFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "syntax error")
}

func TestSolveCommandMissingModel(t *testing.T) {
	e := newEnv(t, completedScript(), "surface")

	_, err := execute(t, "--config", e.config, "solve", filepath.Join(e.dir, "absent.lp"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, e.fake.Submissions())
}

func TestSolveCommandWithoutService(t *testing.T) {
	t.Setenv("SOLVEBRIDGE_URL", "")
	dir := t.TempDir()
	model := filepath.Join(dir, "m.lp")
	require.NoError(t, os.WriteFile(model, []byte("End\n"), 0o644))

	out, err := execute(t, "--format", "json", "solve", model)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "service.url")
}

func TestStatusDeleteAndJobs(t *testing.T) {
	e := newEnv(t, completedScript(), "keep")

	_, err := execute(t, "--config", e.config, "solve", e.model)
	require.NoError(t, err)
	require.Equal(t, []string{"job-1"}, e.fake.Live())

	out, err := execute(t, "--config", e.config, "--format", "json", "status", "job-1")
	require.NoError(t, err, out)
	var status struct {
		Data StatusReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "job-1", status.Data.ID)
	assert.Equal(t, "completed", status.Data.State)
	assert.Equal(t, []string{"solution.json"}, status.Data.Outputs)

	out, err = execute(t, "--config", e.config, "jobs", "--pending")
	require.NoError(t, err, out)
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "completed")

	out, err = execute(t, "--config", e.config, "delete", "--pending")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ deleted job-1")
	assert.Empty(t, e.fake.Live())

	out, err = execute(t, "--config", e.config, "--format", "json", "jobs", "job-1")
	require.NoError(t, err, out)
	var detail struct {
		Data JobDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "deleted", detail.Data.State)
	states := make([]string, 0, len(detail.Data.Transitions))
	for _, tr := range detail.Data.Transitions {
		states = append(states, tr.State)
	}
	assert.Equal(t, []string{"created", "polling", "completed", "deleted"}, states)
	assert.Contains(t, string(detail.Data.Solution), `"status":"Optimal"`)

	out, err = execute(t, "--config", e.config, "jobs", "--pending")
	require.NoError(t, err, out)
	assert.Equal(t, "No jobs recorded.\n", out)

	out, err = execute(t, "--config", e.config, "jobs", "--forget", "job-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "forgot job-1")

	_, err = execute(t, "--config", e.config, "jobs", "job-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatusUnknownJob(t *testing.T) {
	e := newEnv(t, completedScript(), "surface")

	out, err := execute(t, "--config", e.config, "status", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestDeleteNeedsTarget(t *testing.T) {
	_, err := execute(t, "delete")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJobsWithoutLedger(t *testing.T) {
	t.Setenv("SOLVEBRIDGE_LEDGER_PATH", "")
	os.Unsetenv("SOLVEBRIDGE_LEDGER_PATH")

	_, err := execute(t, "jobs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.path")
}

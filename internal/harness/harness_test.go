package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{
		"cp_basic",
		"cp_schedule",
		"lp_xml",
		"failed_job",
		"refine_conflict",
		"feasopt_or",
		"feasopt_mip",
		"require_existing",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadFixture(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"cp_basic", "failed_job"} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, loadFixture(t, name)))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadFixture(t, "cp_schedule")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := Render(s.Name, first)
	require.NoError(t, err)
	b, err := Render(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	s := loadFixture(t, "cp_basic")
	wrong := 99.0
	s.Assertions = []Assertion{
		{Type: AssertValue, Element: "x", Value: &wrong},
		{Type: AssertJobStates, States: []string{"created"}},
	}
	s.Expect.Status = "Infeasible"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected status Infeasible")
	assert.Contains(t, result.Errors[1], "Expected: 99")
	assert.Contains(t, result.Errors[2], "Job trace:")
}

func TestRun_UnexpectedErrorClass(t *testing.T) {
	s := loadFixture(t, "failed_job")
	s.Expect.Error = ""

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "failed", result.ErrorClass)
	assert.True(t, strings.Contains(result.Errors[0], `expected error class "", got "failed"`))
}

func TestParseKind(t *testing.T) {
	_, _, err := parseKind("constraint", "ranged")
	assert.NoError(t, err)
	_, _, err = parseKind("constraint", "cubic")
	assert.Error(t, err)
	_, _, err = parseKind("tensor", "")
	assert.Error(t, err)
}

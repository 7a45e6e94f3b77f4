package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvebridge/internal/solution"
)

func TestRender_OmitsEmptyParts(t *testing.T) {
	result := NewResult()
	result.AddTrace("job-1", "created")
	result.ErrorClass = "transport"

	out, err := Render("bare", result)
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario": "bare",
  "error_class": "transport",
  "trace": [
    {
      "seq": 1,
      "job": "job-1",
      "state": "created"
    }
  ]
}
`, string(out))
}

func TestRender_SolutionIsCanonical(t *testing.T) {
	sol := solution.New()
	sol.Status = solution.StatusOptimal
	sol.Values["b"] = 2
	sol.Values["a"] = 1

	result := NewResult()
	result.Solution = sol
	out, err := Render("canonical", result)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\"values\": {\n      \"a\": 1,\n      \"b\": 2\n    }")
}

package solution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"Optimal":                          StatusOptimal,
		"optimal_solution":                 StatusOptimal,
		"Feasible":                         StatusFeasible,
		"feasible_solution":                StatusFeasible,
		"infeasible_solution":              StatusInfeasible,
		"InfeasibleOrUnbounded":            StatusInfeasibleOrUnbounded,
		"infeasible_or_unbounded_solution": StatusInfeasibleOrUnbounded,
		"Unbounded":                        StatusUnbounded,
		"":                                 StatusUnknown,
		"JobFailed":                        StatusError,
		"something_new":                    StatusUnknown,
	} {
		assert.Equal(t, want, ParseStatus(in), in)
	}
}

func TestFromCPLEXCode(t *testing.T) {
	assert.Equal(t, StatusOptimal, FromCPLEXCode(1))
	assert.Equal(t, StatusOptimal, FromCPLEXCode(101))
	assert.Equal(t, StatusInfeasible, FromCPLEXCode(103))
	assert.Equal(t, StatusInfeasibleOrUnbounded, FromCPLEXCode(119))
	assert.Equal(t, StatusFeasible, FromCPLEXCode(107))
	assert.Equal(t, StatusUnknown, FromCPLEXCode(108))
	assert.Equal(t, StatusUnbounded, FromCPLEXCode(2))

	for _, code := range []int{14, 19, 120, 121, 122, 123, 124, 125, 126} {
		assert.Equal(t, StatusFeasible, FromCPLEXCode(code), "relaxed code %d", code)
	}
}

func TestStatus_TextRoundTrip(t *testing.T) {
	b, err := StatusInfeasibleOrUnbounded.MarshalText()
	require.NoError(t, err)
	var s Status
	require.NoError(t, s.UnmarshalText(b))
	assert.Equal(t, StatusInfeasibleOrUnbounded, s)
	assert.Equal(t, "Status(42)", Status(42).String())
}

func TestSolution_Merge(t *testing.T) {
	base := New()
	base.Values["x"] = 1
	base.Objectives = []float64{10}

	other := New()
	other.Status = StatusOptimal
	other.Values["x"] = 2
	other.Values["y"] = 3
	other.Objectives = []float64{99}
	other.KPIs["cost"] = 7
	other.Conflict = &Conflict{Constraints: ConflictSet{"c1": "ConflictMember"}}

	base.Merge(other)

	assert.Equal(t, StatusOptimal, base.Status)
	assert.Equal(t, map[string]float64{"x": 2, "y": 3}, base.Values)
	assert.Equal(t, []float64{10}, base.Objectives)
	assert.Equal(t, 7.0, base.KPIs["cost"])
	require.NotNil(t, base.Conflict)
	assert.True(t, base.Conflict.Constraints["c1"].IsMember())

	other.Conflict.Constraints["c2"] = "member"
	assert.NotContains(t, base.Conflict.Constraints, "c2")
}

func TestSolution_Objective(t *testing.T) {
	var nilSol *Solution
	_, ok := nilSol.Objective()
	assert.False(t, ok)

	s := New()
	assert.True(t, s.Empty())
	s.Objectives = []float64{4.5, 1}
	v, ok := s.Objective()
	require.True(t, ok)
	assert.Equal(t, 4.5, v)
	assert.False(t, s.Empty())
}

func TestSnapshot_Deterministic(t *testing.T) {
	build := func() *Solution {
		s := New()
		s.Status = StatusOptimal
		s.Objectives = []float64{math.Inf(1)}
		s.Values["b"] = 2
		s.Values["a"] = 0.5
		s.Values["e\u0301"] = 1
		s.Intervals["task"] = Interval{Present: true, Start: 0, Size: 3, End: 3}
		s.Intervals["opt"] = Interval{}
		s.StateFunctions["sf"] = []StepSegment{{Start: IntervalMin, End: 5, Value: 0}}
		return s
	}

	first, err := Snapshot(build())
	require.NoError(t, err)
	second, err := Snapshot(build())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	out := string(first)
	assert.Contains(t, out, `"objectives":["Infinity"]`)
	assert.Contains(t, out, "\"values\":{\"a\":0.5,\"b\":2,\"\u00e9\":1}")
	assert.Contains(t, out, `"opt":{"present":false}`)
	assert.Contains(t, out, `"start":-4503599627370494`)
}

func TestSnapshot_StringEscaping(t *testing.T) {
	s := New()
	s.Values["a<b>&c"] = 1
	s.Values["line\u2028sep"] = 2
	s.Values[`back\u2028slash`] = 3

	out, err := Snapshot(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"a<b>&c":1`)
	assert.Contains(t, string(out), "\"line\u2028sep\":2")
	assert.Contains(t, string(out), `"back\\u2028slash":3`)
}

func TestCompareUTF16(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D..., which sort before U+FF61.
	assert.Negative(t, compareUTF16("\U0001F600", "\uFF61"))
	assert.Negative(t, compareUTF16("a", "ab"))
	assert.Zero(t, compareUTF16("x", "x"))
}

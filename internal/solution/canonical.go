package solution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Snapshot renders s as canonical JSON: object keys in UTF-16 code unit
// order, names NFC-normalized, no HTML escaping, and non-finite floats as the
// strings "Infinity", "-Infinity" and "NaN". Two solutions with equal content
// always produce identical bytes, so snapshots can be compared as golden
// files.
func Snapshot(s *Solution) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("nil solution")
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, snapshotTree(s)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snapshotTree(s *Solution) map[string]any {
	tree := map[string]any{
		"status":         s.Status.String(),
		"objectives":     floats(s.Objectives),
		"bounds":         floats(s.Bounds),
		"gaps":           floats(s.Gaps),
		"values":         floatMap(s.Values),
		"duals":          floatMap(s.Duals),
		"slacks":         floatMap(s.Slacks),
		"reducedCosts":   floatMap(s.ReducedCosts),
		"kpis":           floatMap(s.KPIs),
		"primalFeasible": s.PrimalFeasible,
		"dualFeasible":   s.DualFeasible,
	}
	if s.SolveStatus != "" {
		tree["solveStatus"] = s.SolveStatus
	}

	intervals := make(map[string]any, len(s.Intervals))
	for name, itv := range s.Intervals {
		if !itv.Present {
			intervals[name] = map[string]any{"present": false}
			continue
		}
		intervals[name] = map[string]any{
			"present": true,
			"start":   itv.Start,
			"size":    itv.Size,
			"end":     itv.End,
		}
	}
	tree["intervals"] = intervals

	sequences := make(map[string]any, len(s.Sequences))
	for name, seq := range s.Sequences {
		items := make([]any, len(seq))
		for i, id := range seq {
			items[i] = id
		}
		sequences[name] = items
	}
	tree["sequences"] = sequences

	functions := make(map[string]any, len(s.StateFunctions))
	for name, segs := range s.StateFunctions {
		items := make([]any, len(segs))
		for i, seg := range segs {
			items[i] = map[string]any{"start": seg.Start, "end": seg.End, "value": seg.Value}
		}
		functions[name] = items
	}
	tree["stateFunctions"] = functions

	if s.Conflict != nil {
		tree["conflict"] = map[string]any{
			"constraints":  conflictMap(s.Conflict.Constraints),
			"intervalVars": conflictMap(s.Conflict.IntervalVars),
		}
	}
	return tree
}

func floats(v []float64) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}

func floatMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func conflictMap(m ConflictSet) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case string:
		return writeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		writeFloat(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type in snapshot: %T", v)
	}
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) {
	switch {
	case math.IsInf(f, 1):
		buf.WriteString(`"Infinity"`)
	case math.IsInf(f, -1):
		buf.WriteString(`"-Infinity"`)
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
	case f == 0:
		// -0 and 0 render the same.
		buf.WriteByte('0')
	default:
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

// writeString encodes s NFC-normalized, without HTML escaping, and with
// U+2028/U+2029 left literal.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the encoder's \u2028 and \u2029 escapes back
// into literal characters. An escape preceded by an odd run of backslashes
// is literal text and stays.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+6 <= len(data) &&
			bytes.HasPrefix(data[i+1:], []byte("u202")) && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			backslashes = 0
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
	}
	return out
}

// compareUTF16 orders strings by UTF-16 code units, which differs from Go's
// byte order for characters outside the BMP.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

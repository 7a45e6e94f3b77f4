package decode

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/solvebridge/internal/solution"
	"github.com/roach88/solvebridge/internal/telemetry"
)

// Attachment is one entry of a job's output_data: either an encoded file
// (Content) or a tabular document (Fields and Values).
type Attachment struct {
	ID      string   `json:"id"`
	Content string   `json:"content,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Values  [][]any  `json:"values,omitempty"`
}

// IsTabular reports whether the attachment is a fields/values document.
func (a Attachment) IsTabular() bool {
	return a.Content == "" && len(a.Fields) > 0
}

// Input is everything a terminal status document contributes to a Solution.
type Input struct {
	Attachments []Attachment
	// SolveStatus is solve_state.solve_status, used when no attachment
	// carries a status.
	SolveStatus string
	// Details is solve_state.details; keys prefixed "KPI." are KPIs.
	Details map[string]string
}

const kpiDetailPrefix = "KPI."

// DecodeAttachments decodes every solution attachment in the input and
// merges them into one Solution. Attachments that are not solutions (logs,
// statistics) are ignored. A job that returned nothing decodes to an empty
// Solution with StatusUnknown.
func DecodeAttachments(ctx context.Context, in Input, known Known) (sol *solution.Solution, err error) {
	ctx, span := telemetry.Start(ctx, "decode.attachments",
		attribute.Int("attachments", len(in.Attachments)))
	defer func() { telemetry.End(span, err) }()

	sol = solution.New()
	for _, att := range in.Attachments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := decodeAttachment(att, known)
		if err != nil {
			return nil, err
		}
		sol.Merge(part)
	}

	for key, raw := range in.Details {
		name, ok := strings.CutPrefix(key, kpiDetailPrefix)
		if !ok || name == "" {
			continue
		}
		if _, dup := sol.KPIs[name]; dup {
			continue
		}
		v, err := ParseNumber(raw)
		if err != nil {
			continue
		}
		sol.KPIs[name] = v
	}

	if sol.Status == solution.StatusUnknown && in.SolveStatus != "" {
		sol.Status = solution.ParseStatus(in.SolveStatus)
		if sol.SolveStatus == "" {
			sol.SolveStatus = in.SolveStatus
		}
	}
	return sol, nil
}

func decodeAttachment(att Attachment, known Known) (*solution.Solution, error) {
	base := strings.ToLower(path.Base(att.ID))
	stem := strings.TrimSuffix(base, path.Ext(base))

	if att.IsTabular() {
		if stem == "kpis" {
			return kpiTable(att)
		}
		return nil, nil
	}
	if att.Content == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(stripSpace(att.Content))
	if err != nil {
		return nil, malformed(att.ID, "attachment content is not base64", err)
	}
	return DecodeDocument(att.ID, data, known)
}

// DecodeDocument decodes a single solution document. The format is chosen
// from the name's extension, falling back to sniffing the first byte. A
// document that is not a solution yields nil.
func DecodeDocument(name string, data []byte, known Known) (*solution.Solution, error) {
	trimmed := bytes.TrimSpace(data)
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == ".xml" || (ext == "" && bytes.HasPrefix(trimmed, []byte("<"))):
		return parseXML(name, bytes.NewReader(data), known)
	case ext == ".json" || (ext == "" && bytes.HasPrefix(trimmed, []byte("{"))):
		if isCPLEXJSON(trimmed) {
			return parseCPLEXJSON(name, data, known)
		}
		return parseCP(name, bytes.NewReader(data), known)
	default:
		return nil, nil
	}
}

func isCPLEXJSON(data []byte) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return false
	}
	_, ok := top["CPLEXSolution"]
	return ok
}

// kpiTable reads a two-column Name/Value table.
func kpiTable(att Attachment) (*solution.Solution, error) {
	nameCol, valueCol := -1, -1
	for i, f := range att.Fields {
		switch strings.ToLower(f) {
		case "name":
			nameCol = i
		case "value":
			valueCol = i
		}
	}
	if nameCol < 0 || valueCol < 0 {
		return nil, malformed(att.ID, "kpi table needs Name and Value fields", nil)
	}

	sol := solution.New()
	for r, row := range att.Values {
		if nameCol >= len(row) || valueCol >= len(row) {
			return nil, malformed(att.ID, fmt.Sprintf("row %d is short", r), nil)
		}
		name := fmt.Sprint(row[nameCol])
		var v float64
		switch cell := row[valueCol].(type) {
		case float64:
			v = cell
		case json.Number:
			f, err := cell.Float64()
			if err != nil {
				return nil, malformed(att.ID, fmt.Sprintf("row %d value", r), err)
			}
			v = f
		case string:
			f, err := ParseNumber(cell)
			if err != nil {
				return nil, malformed(att.ID, fmt.Sprintf("row %d value", r), err)
			}
			v = f
		default:
			return nil, malformed(att.ID, fmt.Sprintf("row %d value has type %T", r, cell), nil)
		}
		sol.KPIs[name] = v
	}
	return sol, nil
}

func stripSpace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

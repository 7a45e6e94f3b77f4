package decode

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/solvebridge/internal/solution"
)

// The service may return the solver-native solution as JSON instead of XML.
// Every attribute is a string, mirroring the XML attributes one to one.
type cplexJSONDocument struct {
	Solution *cplexJSONRecord `json:"CPLEXSolution"`
}

type cplexJSONRecord struct {
	Header               map[string]string   `json:"header"`
	Variables            []map[string]string `json:"variables"`
	LinearConstraints    []map[string]string `json:"linearConstraints"`
	IndicatorConstraints []map[string]string `json:"indicatorConstraints"`
	QuadraticConstraints []map[string]string `json:"quadraticConstraints"`
}

func parseCPLEXJSON(source string, data []byte, known Known) (*solution.Solution, error) {
	var doc cplexJSONDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(source, "invalid solution json", err)
	}
	rec := doc.Solution
	if rec == nil || rec.Header == nil {
		return nil, malformed(source, "solution record has no header", nil)
	}

	sol := solution.New()
	codeText, ok := rec.Header["solutionStatusValue"]
	if !ok {
		return nil, malformed(source, "header lacks solutionStatusValue", nil)
	}
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return nil, malformed(source, "header solutionStatusValue", err)
	}
	sol.SolveStatus = rec.Header["solutionStatusString"]
	sol.Status = solution.FromCPLEXCode(code)
	if sol.Status == solution.StatusUnknown {
		sol.Status = solution.ParseStatus(sol.SolveStatus)
	}
	objText, ok := rec.Header["objectiveValue"]
	if !ok {
		return nil, malformed(source, "header lacks objectiveValue", nil)
	}
	obj, err := ParseNumber(objText)
	if err != nil {
		return nil, malformed(source, "header objectiveValue", err)
	}
	sol.Objectives = []float64{obj}
	sol.PrimalFeasible = parseBool(rec.Header["primalFeasible"])
	sol.DualFeasible = parseBool(rec.Header["dualFeasible"])

	for _, v := range rec.Variables {
		name := v["name"]
		if !known.keep(name) {
			continue
		}
		valueText, ok := v["value"]
		if !ok {
			return nil, malformed(source, fmt.Sprintf("variable %q has no value", name), nil)
		}
		if err := setNumber(sol.Values, name, valueText); err != nil {
			return nil, malformed(source, fmt.Sprintf("variable %q value", name), err)
		}
		if rc, ok := v["reducedCost"]; ok {
			if err := setNumber(sol.ReducedCosts, name, rc); err != nil {
				return nil, malformed(source, fmt.Sprintf("variable %q reducedCost", name), err)
			}
		}
	}

	for _, group := range [][]map[string]string{rec.LinearConstraints, rec.IndicatorConstraints, rec.QuadraticConstraints} {
		for _, c := range group {
			name := c["name"]
			if !known.keep(name) {
				continue
			}
			if d, ok := c["dual"]; ok {
				if err := setNumber(sol.Duals, name, d); err != nil {
					return nil, malformed(source, fmt.Sprintf("constraint %q dual", name), err)
				}
			}
			if s, ok := c["slack"]; ok {
				if err := setNumber(sol.Slacks, name, s); err != nil {
					return nil, malformed(source, fmt.Sprintf("constraint %q slack", name), err)
				}
			}
		}
	}
	return sol, nil
}

func setNumber(dst map[string]float64, name, text string) error {
	v, err := ParseNumber(text)
	if err != nil {
		return err
	}
	dst[name] = v
	return nil
}

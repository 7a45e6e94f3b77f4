package decode

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/roach88/solvebridge/internal/solution"
)

// xmlState is the parser's position in a solution document.
type xmlState int

const (
	stateInitial xmlState = iota
	stateSolution
	stateHeader
	stateQuality
	stateVariables
	stateConstraints
	stateUnknown
	stateFinished
)

var xmlStateNames = [...]string{
	stateInitial:     "Initial",
	stateSolution:    "Solution",
	stateHeader:      "Header",
	stateQuality:     "Quality",
	stateVariables:   "Variables",
	stateConstraints: "Constraints",
	stateUnknown:     "Unknown",
	stateFinished:    "Finished",
}

func (s xmlState) String() string { return xmlStateNames[s] }

const (
	rootSolutions = "CPLEXSolutions"
	rootSolution  = "CPLEXSolution"
	rootConflict  = "CPLEXConflict"
)

// next is the transition table: the state entered when an element called
// local opens while the parser is in state from.
func next(from xmlState, local string) xmlState {
	switch from {
	case stateInitial:
		if local == rootSolution || local == rootConflict {
			return stateSolution
		}
	case stateSolution:
		switch local {
		case "header":
			return stateHeader
		case "quality":
			return stateQuality
		case "variables":
			return stateVariables
		case "linearConstraints", "indicatorConstraints", "quadraticConstraints":
			return stateConstraints
		}
	}
	return stateUnknown
}

// frame is one open element. state is the state the element put the parser
// in; closing it returns to the state of the frame below.
type frame struct {
	name  xml.Name
	state xmlState
}

type xmlParser struct {
	source   string
	known    Known
	dec      *xml.Decoder
	stack    []frame
	conflict bool

	sol       *solution.Solution
	sawHeader bool
}

// ParseXML decodes the first solution record of a solver-native XML
// solution or conflict document. Later records in a multi-solution stream
// are not read. Values of names known rejects are dropped.
func ParseXML(r io.Reader, known Known) (*solution.Solution, error) {
	return parseXML("solution.xml", r, known)
}

func parseXML(source string, r io.Reader, known Known) (*solution.Solution, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	p := &xmlParser{
		source: source,
		known:  known,
		dec:    dec,
		sol:    solution.New(),
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.sol, nil
}

func (p *xmlParser) state() xmlState {
	if len(p.stack) == 0 {
		return stateInitial
	}
	return p.stack[len(p.stack)-1].state
}

func (p *xmlParser) run() error {
	for {
		tok, err := p.dec.RawToken()
		if errors.Is(err, io.EOF) {
			if len(p.stack) > 0 {
				return p.fail(fmt.Sprintf("unexpected end of document inside <%s>", qualified(p.stack[len(p.stack)-1].name)), nil)
			}
			return p.fail("no solution record", nil)
		}
		if err != nil {
			return p.fail("invalid xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.open(t); err != nil {
				return err
			}
		case xml.EndElement:
			done, err := p.close(t)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (p *xmlParser) open(t xml.StartElement) error {
	from := p.state()
	local := t.Name.Local

	if len(p.stack) == 0 && local != rootSolutions && local != rootSolution && local != rootConflict {
		return p.fail(fmt.Sprintf("unexpected root element <%s>", qualified(t.Name)), nil)
	}

	to := next(from, local)
	if from == stateInitial && local == rootSolutions {
		to = stateInitial
	}
	if to == stateSolution {
		p.conflict = local == rootConflict
	}

	var err error
	switch {
	case to == stateHeader:
		err = p.header(t.Attr)
	case from == stateVariables && local == "variable":
		err = p.variable(t.Attr)
	case from == stateConstraints && local == "constraint":
		err = p.constraint(t.Attr)
	}
	if err != nil {
		return err
	}

	p.stack = append(p.stack, frame{name: t.Name, state: to})
	return nil
}

// close pops the innermost frame and reports whether the first solution
// record has just ended.
func (p *xmlParser) close(t xml.EndElement) (bool, error) {
	if len(p.stack) == 0 {
		return false, p.fail(fmt.Sprintf("unexpected </%s>", qualified(t.Name)), nil)
	}
	top := p.stack[len(p.stack)-1]
	if top.name != t.Name {
		return false, p.fail(fmt.Sprintf("</%s> closes <%s>", qualified(t.Name), qualified(top.name)), nil)
	}
	p.stack = p.stack[:len(p.stack)-1]

	if top.state != stateSolution {
		return false, nil
	}
	if !p.sawHeader {
		return false, p.fail("solution record has no header", nil)
	}
	p.finish()
	return true, nil
}

func (p *xmlParser) finish() {
	if p.conflict && p.sol.Conflict == nil {
		p.sol.Conflict = &solution.Conflict{
			Constraints:  solution.ConflictSet{},
			IntervalVars: solution.ConflictSet{},
		}
	}
	p.stack = append(p.stack[:0], frame{state: stateFinished})
}

func (p *xmlParser) header(attrs []xml.Attr) error {
	p.sawHeader = true

	codeText, ok := attr(attrs, "solutionStatusValue")
	if !ok {
		return p.fail("header lacks solutionStatusValue", nil)
	}
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return p.fail("header solutionStatusValue", err)
	}
	statusText, _ := attr(attrs, "solutionStatusString")
	p.sol.SolveStatus = statusText

	if p.conflict {
		// CPX_STAT_CONFLICT_FEASIBLE: the refiner found no conflict.
		if code == 30 {
			p.sol.Status = solution.StatusFeasible
		} else {
			p.sol.Status = solution.StatusInfeasible
		}
		return nil
	}

	p.sol.Status = solution.FromCPLEXCode(code)
	if p.sol.Status == solution.StatusUnknown {
		p.sol.Status = solution.ParseStatus(statusText)
	}

	objText, ok := attr(attrs, "objectiveValue")
	if !ok {
		return p.fail("header lacks objectiveValue", nil)
	}
	obj, err := ParseNumber(objText)
	if err != nil {
		return p.fail("header objectiveValue", err)
	}
	p.sol.Objectives = []float64{obj}

	if v, ok := attr(attrs, "primalFeasible"); ok {
		p.sol.PrimalFeasible = parseBool(v)
	}
	if v, ok := attr(attrs, "dualFeasible"); ok {
		p.sol.DualFeasible = parseBool(v)
	}
	return nil
}

func (p *xmlParser) variable(attrs []xml.Attr) error {
	name, ok := attr(attrs, "name")
	if !ok {
		return p.fail("variable without name", nil)
	}
	if !p.known.keep(name) {
		return nil
	}
	if p.conflict {
		p.member(name, attrs)
		return nil
	}

	valueText, ok := attr(attrs, "value")
	if !ok {
		return p.fail(fmt.Sprintf("variable %q has no value", name), nil)
	}
	value, err := ParseNumber(valueText)
	if err != nil {
		return p.fail(fmt.Sprintf("variable %q value", name), err)
	}
	p.sol.Values[name] = value

	// Reduced costs are absent for integer problems.
	if rc, ok := attr(attrs, "reducedCost"); ok {
		v, err := ParseNumber(rc)
		if err != nil {
			return p.fail(fmt.Sprintf("variable %q reducedCost", name), err)
		}
		p.sol.ReducedCosts[name] = v
	}
	return nil
}

func (p *xmlParser) constraint(attrs []xml.Attr) error {
	name, ok := attr(attrs, "name")
	if !ok {
		return p.fail("constraint without name", nil)
	}
	if !p.known.keep(name) {
		return nil
	}
	if p.conflict {
		p.member(name, attrs)
		return nil
	}

	if d, ok := attr(attrs, "dual"); ok {
		v, err := ParseNumber(d)
		if err != nil {
			return p.fail(fmt.Sprintf("constraint %q dual", name), err)
		}
		p.sol.Duals[name] = v
	}
	if s, ok := attr(attrs, "slack"); ok {
		v, err := ParseNumber(s)
		if err != nil {
			return p.fail(fmt.Sprintf("constraint %q slack", name), err)
		}
		p.sol.Slacks[name] = v
	}
	return nil
}

func (p *xmlParser) member(name string, attrs []xml.Attr) {
	status, _ := attr(attrs, "status")
	if p.sol.Conflict == nil {
		p.sol.Conflict = &solution.Conflict{
			Constraints:  solution.ConflictSet{},
			IntervalVars: solution.ConflictSet{},
		}
	}
	p.sol.Conflict.Constraints[name] = solution.ConflictStatus(status)
}

func (p *xmlParser) fail(reason string, err error) error {
	p.sol = nil
	return &MalformedError{
		Source: p.source,
		Offset: p.dec.InputOffset(),
		Reason: reason,
		Err:    err,
	}
}

func attr(attrs []xml.Attr, local string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// charsetReader decodes documents that declare a non-UTF-8 encoding, such
// as ISO-8859-1 or windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

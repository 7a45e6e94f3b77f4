// Package conflict encodes conflict-refinement and feasibility-relaxation
// control documents for the remote engine.
package conflict

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
)

// Attachment ids the service recognizes for the two documents.
const (
	ConflictAttachmentID   = "model.clp"
	RelaxationAttachmentID = "model.feasibility"
)

// Preference weights one element for conflict refinement. Elements with a
// higher preference are less likely to be reported in the conflict.
type Preference struct {
	Element model.Element
	Weight  float64
}

// Relaxation weights how much an element may be relaxed. For a variable,
// Lower and Upper weight its two bounds; for a constraint the larger of the
// two applies to its right-hand side.
type Relaxation struct {
	Element model.Element
	Lower   float64
	Upper   float64
}

type conflictDoc struct {
	XMLName     xml.Name        `xml:"CPLEXRefineconflictext"`
	ResultNames bool            `xml:"resultNames,attr"`
	Groups      []conflictGroup `xml:"group"`
}

type conflictGroup struct {
	Preference string        `xml:"preference,attr"`
	Cons       []conflictCon `xml:"con"`
}

type conflictCon struct {
	Type string `xml:"type,attr"`
	Name string `xml:"name,attr"`
}

type relaxationDoc struct {
	XMLName xml.Name       `xml:"CPLEXFeasopt"`
	Version string         `xml:"version,attr"`
	RHS     *relaxSection  `xml:"rhs,omitempty"`
	RNG     *relaxSection  `xml:"rng,omitempty"`
	LBS     *boundsSection `xml:"lbs,omitempty"`
	UBS     *boundsSection `xml:"ubs,omitempty"`
}

type relaxSection struct {
	Constraints []relaxEntry `xml:"constraint"`
}

type boundsSection struct {
	Variables []relaxEntry `xml:"variable"`
}

type relaxEntry struct {
	Name       string `xml:"name,attr"`
	Preference string `xml:"preference,attr"`
}

// EncodeConflict writes a conflict-refinement document, one group per
// preference, in input order. Every element must already carry its
// exchange name.
func EncodeConflict(w io.Writer, prefs []Preference) error {
	doc := conflictDoc{ResultNames: true}
	for _, p := range prefs {
		name, err := exchangeName(p.Element)
		if err != nil {
			return err
		}
		if err := checkWeight(name, p.Weight); err != nil {
			return err
		}
		types, err := conflictTypes(p.Element)
		if err != nil {
			return err
		}
		group := conflictGroup{Preference: formatWeight(p.Weight)}
		for _, typ := range types {
			group.Cons = append(group.Cons, conflictCon{Type: typ, Name: name})
		}
		doc.Groups = append(doc.Groups, group)
	}
	return write(w, doc)
}

func conflictTypes(el model.Element) ([]string, error) {
	switch el.Kind() {
	case model.KindVariable:
		return []string{"lower", "upper"}, nil
	case model.KindConstraint:
		switch ck := model.ConstraintKindOf(el); ck {
		case model.ConstraintLinear, model.ConstraintRanged:
			return []string{"lin"}, nil
		case model.ConstraintQuadratic:
			return []string{"quad"}, nil
		case model.ConstraintIndicator:
			return []string{"ind"}, nil
		case model.ConstraintSOS:
			return []string{"sos"}, nil
		default:
			return nil, &UnsupportedError{Element: model.Describe(el), Kind: ck.String(), Mode: "conflict"}
		}
	default:
		return nil, &UnsupportedError{Element: model.Describe(el), Kind: el.Kind().String(), Mode: "conflict"}
	}
}

// EncodeRelaxation writes a feasibility-relaxation document. Entries are
// grouped by kind: right-hand sides of linear constraints, ranges of ranged
// constraints, then lower and upper variable bounds. Non-positive weights
// leave the element unrelaxable and are omitted.
func EncodeRelaxation(w io.Writer, relax []Relaxation) error {
	doc := relaxationDoc{Version: "1.0"}
	var rhs, rng relaxSection
	var lbs, ubs boundsSection

	for _, r := range relax {
		name, err := exchangeName(r.Element)
		if err != nil {
			return err
		}
		if err := checkWeight(name, r.Lower); err != nil {
			return err
		}
		if err := checkWeight(name, r.Upper); err != nil {
			return err
		}

		switch r.Element.Kind() {
		case model.KindVariable:
			if r.Lower > 0 {
				lbs.Variables = append(lbs.Variables, relaxEntry{Name: name, Preference: formatWeight(r.Lower)})
			}
			if r.Upper > 0 {
				ubs.Variables = append(ubs.Variables, relaxEntry{Name: name, Preference: formatWeight(r.Upper)})
			}
		case model.KindConstraint:
			pref := math.Max(r.Lower, r.Upper)
			switch ck := model.ConstraintKindOf(r.Element); ck {
			case model.ConstraintLinear:
				if pref > 0 {
					rhs.Constraints = append(rhs.Constraints, relaxEntry{Name: name, Preference: formatWeight(pref)})
				}
			case model.ConstraintRanged:
				if pref > 0 {
					rng.Constraints = append(rng.Constraints, relaxEntry{Name: name, Preference: formatWeight(pref)})
				}
			default:
				return &UnsupportedError{Element: model.Describe(r.Element), Kind: ck.String(), Mode: "relaxation"}
			}
		default:
			return &UnsupportedError{Element: model.Describe(r.Element), Kind: r.Element.Kind().String(), Mode: "relaxation"}
		}
	}

	if len(rhs.Constraints) > 0 {
		doc.RHS = &rhs
	}
	if len(rng.Constraints) > 0 {
		doc.RNG = &rng
	}
	if len(lbs.Variables) > 0 {
		doc.LBS = &lbs
	}
	if len(ubs.Variables) > 0 {
		doc.UBS = &ubs
	}
	return write(w, doc)
}

func exchangeName(el model.Element) (string, error) {
	if el == nil {
		return "", fmt.Errorf("nil element")
	}
	name, named := el.Name()
	if !named || name == "" {
		return "", &naming.ConflictError{Code: naming.ErrCodeMissingName, Element: model.Describe(el)}
	}
	return name, nil
}

func checkWeight(name string, w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("element %s: weight %v is not finite", name, w)
	}
	return nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

func write(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %T: %w", doc, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

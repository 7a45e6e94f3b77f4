package model

import "fmt"

// Kind classifies a model element.
type Kind int

const (
	KindVariable Kind = iota
	KindInterval
	KindSequence
	KindStateFunction
	KindConstraint
)

// String returns the wire-independent name of the kind.
func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindInterval:
		return "interval"
	case KindSequence:
		return "sequence"
	case KindStateFunction:
		return "state-function"
	case KindConstraint:
		return "constraint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConstraintKind refines KindConstraint for the conflict and relaxation
// encoders, which group constraints by the shape of their right-hand side.
type ConstraintKind int

const (
	// ConstraintLinear has a single right-hand side (<=, >= or =).
	ConstraintLinear ConstraintKind = iota
	// ConstraintRanged has both a lower and an upper right-hand side.
	ConstraintRanged
	ConstraintQuadratic
	ConstraintIndicator
	ConstraintSOS
	ConstraintAnd
	ConstraintOr
	ConstraintNot
)

func (c ConstraintKind) String() string {
	switch c {
	case ConstraintLinear:
		return "linear"
	case ConstraintRanged:
		return "ranged"
	case ConstraintQuadratic:
		return "quadratic"
	case ConstraintIndicator:
		return "indicator"
	case ConstraintSOS:
		return "sos"
	case ConstraintAnd:
		return "and"
	case ConstraintOr:
		return "or"
	case ConstraintNot:
		return "not"
	default:
		return fmt.Sprintf("constraint(%d)", int(c))
	}
}

// IsLogical reports whether the kind is a logical combinator (AND/OR/NOT).
func (c ConstraintKind) IsLogical() bool {
	return c == ConstraintAnd || c == ConstraintOr || c == ConstraintNot
}

// Element is a caller-owned model element.
//
// Implementations must be pointer-like: the adapter uses elements as map
// keys and relies on reference equality.
type Element interface {
	Kind() Kind

	// Name returns the current name and whether one is set. An empty name
	// that is set is distinct from no name at all.
	Name() (string, bool)

	SetName(name string)
	ClearName()
}

// Constraint is implemented by constraint elements that know their shape.
type Constraint interface {
	Element
	ConstraintKind() ConstraintKind
}

// ConstraintKindOf returns the constraint kind of e. Constraint elements
// that do not implement Constraint are treated as linear.
func ConstraintKindOf(e Element) ConstraintKind {
	if c, ok := e.(Constraint); ok {
		return c.ConstraintKind()
	}
	return ConstraintLinear
}

// Describe renders an element for error messages without assuming it has a
// name.
func Describe(e Element) string {
	if name, ok := e.Name(); ok {
		return fmt.Sprintf("%s %q", e.Kind(), name)
	}
	return fmt.Sprintf("unnamed %s %p", e.Kind(), e)
}

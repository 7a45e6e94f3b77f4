package model

// Item is a minimal Element implementation. Callers with their own element
// types implement Element directly; Item serves tools and tests that only
// need identity, a kind and a name.
type Item struct {
	kind  Kind
	ckind ConstraintKind
	name  string
	named bool
}

// NewVariable returns a variable named name. An empty name leaves the
// variable unnamed.
func NewVariable(name string) *Item {
	return newItem(KindVariable, ConstraintLinear, name)
}

// NewInterval returns an interval variable.
func NewInterval(name string) *Item {
	return newItem(KindInterval, ConstraintLinear, name)
}

// NewSequence returns a sequence variable.
func NewSequence(name string) *Item {
	return newItem(KindSequence, ConstraintLinear, name)
}

// NewStateFunction returns a state function.
func NewStateFunction(name string) *Item {
	return newItem(KindStateFunction, ConstraintLinear, name)
}

// NewConstraint returns a constraint of the given shape.
func NewConstraint(kind ConstraintKind, name string) *Item {
	return newItem(KindConstraint, kind, name)
}

func newItem(kind Kind, ckind ConstraintKind, name string) *Item {
	return &Item{kind: kind, ckind: ckind, name: name, named: name != ""}
}

func (i *Item) Kind() Kind { return i.kind }

func (i *Item) ConstraintKind() ConstraintKind { return i.ckind }

func (i *Item) Name() (string, bool) { return i.name, i.named }

func (i *Item) SetName(name string) {
	i.name = name
	i.named = true
}

func (i *Item) ClearName() {
	i.name = ""
	i.named = false
}

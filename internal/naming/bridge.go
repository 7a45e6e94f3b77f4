package naming

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/solvebridge/internal/model"
)

// Policy selects how a scope treats element names.
type Policy int

const (
	// AssignMissing names every unnamed element and leaves named ones alone.
	AssignMissing Policy = iota
	// RequireExisting rejects any element without a name.
	RequireExisting
)

func (p Policy) String() string {
	if p == RequireExisting {
		return "require-existing"
	}
	return "assign-missing"
}

// ParsePolicy accepts the configuration spelling of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "assign-missing", "assign_missing":
		return AssignMissing, nil
	case "require-existing", "require_existing":
		return RequireExisting, nil
	default:
		return AssignMissing, fmt.Errorf("unknown naming policy %q", s)
	}
}

// maxGenerateAttempts bounds regeneration when a token collides with a name
// already present in the scope.
const maxGenerateAttempts = 8

// Bridge hands out scopes and remembers which elements are currently held,
// so an element cannot be renamed twice while a scope is open.
type Bridge struct {
	gen    Generator
	logger *slog.Logger

	mu     sync.Mutex
	active map[model.Element]struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithGenerator replaces the default UUIDGenerator.
func WithGenerator(gen Generator) Option {
	return func(b *Bridge) { b.gen = gen }
}

// WithLogger sets the logger used for scope diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// NewBridge creates a Bridge.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		gen:    UUIDGenerator{},
		logger: slog.Default(),
		active: make(map[model.Element]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// entry records what an element looked like before the scope touched it.
type entry struct {
	el    model.Element
	name  string
	named bool
}

// Scope is one exchange's view of element names.
//
// Thread-safety: a Scope belongs to the goroutine driving the solve.
type Scope struct {
	bridge    *Bridge
	policy    Policy
	entries   []entry
	byElement map[model.Element]string
	byName    map[string]model.Element
	generated int
	restored  bool
}

// Open validates elements under policy, then names them. Validation happens
// first and in full: when Open returns an error no element has been renamed.
func (b *Bridge) Open(policy Policy, elements []model.Element) (*Scope, error) {
	s := &Scope{
		bridge:    b,
		policy:    policy,
		byElement: make(map[model.Element]string, len(elements)),
		byName:    make(map[string]model.Element, len(elements)),
	}
	if err := s.add(elements, false); err != nil {
		return nil, err
	}
	b.logger.Debug("naming scope opened",
		"policy", policy.String(),
		"elements", len(s.entries),
		"generated", s.generated)
	return s, nil
}

// Register adds auxiliary elements the caller wants resolvable by name in
// the results (for example a collection of KPIs' underlying variables).
// Registering an element the scope already holds is an error.
func (s *Scope) Register(elements ...model.Element) error {
	if s.restored {
		return &ConflictError{Code: ErrCodeScopeClosed}
	}
	return s.add(elements, true)
}

// add validates the batch, then acquires and names it.
func (s *Scope) add(elements []model.Element, explicit bool) error {
	batch := make([]model.Element, 0, len(elements))
	seen := make(map[model.Element]struct{}, len(elements))
	pending := make(map[string]model.Element)

	for _, el := range elements {
		if el == nil {
			continue
		}
		if _, dup := seen[el]; dup {
			continue
		}
		if _, held := s.byElement[el]; held {
			if explicit {
				return &ConflictError{Code: ErrCodeAlreadyBridged, Element: model.Describe(el)}
			}
			continue
		}
		seen[el] = struct{}{}

		name, named := el.Name()
		if !named {
			if s.policy == RequireExisting {
				return &ConflictError{Code: ErrCodeMissingName, Element: model.Describe(el)}
			}
		} else {
			if other, taken := s.byName[name]; taken && other != el {
				return &ConflictError{Code: ErrCodeDuplicateName, Name: name, Element: model.Describe(el)}
			}
			if other, taken := pending[name]; taken && other != el {
				return &ConflictError{Code: ErrCodeDuplicateName, Name: name, Element: model.Describe(el)}
			}
			pending[name] = el
		}
		batch = append(batch, el)
	}

	b := s.bridge
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, el := range batch {
		if _, held := b.active[el]; held {
			return &ConflictError{Code: ErrCodeAlreadyBridged, Element: model.Describe(el)}
		}
	}

	// Existing names are claimed before any token is generated so a token
	// can never shadow a caller's name.
	for name, el := range pending {
		s.byName[name] = el
		s.byElement[el] = name
	}

	start := len(s.entries)
	for _, el := range batch {
		name, named := el.Name()
		s.entries = append(s.entries, entry{el: el, name: name, named: named})
		b.active[el] = struct{}{}
		if named {
			continue
		}
		assigned, err := s.generateLocked(el)
		if err != nil {
			s.rollbackLocked(start, batch)
			return err
		}
		el.SetName(assigned)
		s.byName[assigned] = el
		s.byElement[el] = assigned
		s.generated++
	}
	return nil
}

func (s *Scope) generateLocked(el model.Element) (string, error) {
	prefix := prefixFor(el.Kind())
	for i := 0; i < maxGenerateAttempts; i++ {
		candidate := prefix + s.bridge.gen.Generate()
		if _, taken := s.byName[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", &ConflictError{Code: ErrCodeExhausted, Element: model.Describe(el)}
}

func prefixFor(k model.Kind) string {
	switch k {
	case model.KindInterval:
		return "itv_"
	case model.KindSequence:
		return "seq_"
	case model.KindStateFunction:
		return "sf_"
	case model.KindConstraint:
		return "c_"
	default:
		return "x_"
	}
}

// Restore puts back every original name, including "no name", and releases
// the elements. It is idempotent and safe to defer.
func (s *Scope) Restore() {
	if s.restored {
		return
	}
	s.restored = true

	s.bridge.mu.Lock()
	defer s.bridge.mu.Unlock()
	s.releaseLocked()
}

func (s *Scope) releaseLocked() {
	s.unwindLocked(0)
}

// rollbackLocked undoes a partially applied batch, leaving earlier batches
// of the scope in place.
func (s *Scope) rollbackLocked(start int, batch []model.Element) {
	for _, el := range batch {
		if name, ok := s.byElement[el]; ok {
			delete(s.byName, name)
			delete(s.byElement, el)
		}
	}
	s.generated = 0
	for _, e := range s.entries[:start] {
		if !e.named {
			s.generated++
		}
	}
	s.unwindLocked(start)
}

func (s *Scope) unwindLocked(start int) {
	for i := len(s.entries) - 1; i >= start; i-- {
		e := s.entries[i]
		if e.named {
			e.el.SetName(e.name)
		} else {
			e.el.ClearName()
		}
		delete(s.bridge.active, e.el)
	}
	s.entries = s.entries[:start]
}

// Policy returns the policy the scope was opened with.
func (s *Scope) Policy() Policy { return s.policy }

// Len returns the number of elements held.
func (s *Scope) Len() int { return len(s.byElement) }

// Generated returns how many names the scope assigned.
func (s *Scope) Generated() int { return s.generated }

// NameOf returns the exchange name of el.
func (s *Scope) NameOf(el model.Element) (string, bool) {
	name, ok := s.byElement[el]
	return name, ok
}

// ElementOf resolves an exchange name.
func (s *Scope) ElementOf(name string) (model.Element, bool) {
	el, ok := s.byName[name]
	return el, ok
}

// Known reports whether name belongs to the scope. A scope holding no
// elements knows every name, so opaque models keep their whole solution.
func (s *Scope) Known(name string) bool {
	if len(s.byName) == 0 {
		return true
	}
	_, ok := s.byName[name]
	return ok
}

// Names returns the exchange names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Index snapshots the element/name pairing so results can still be resolved
// after Restore.
func (s *Scope) Index() *Index {
	idx := &Index{
		byElement: make(map[model.Element]string, len(s.byElement)),
		byName:    make(map[string]model.Element, len(s.byName)),
	}
	for el, name := range s.byElement {
		idx.byElement[el] = name
	}
	for name, el := range s.byName {
		idx.byName[name] = el
	}
	return idx
}

// Index is an immutable element/name pairing captured from a Scope.
type Index struct {
	byElement map[model.Element]string
	byName    map[string]model.Element
}

// NameOf returns the name el carried during the exchange.
func (i *Index) NameOf(el model.Element) (string, bool) {
	if i == nil {
		return "", false
	}
	name, ok := i.byElement[el]
	return name, ok
}

// ElementOf resolves a name from the exchange.
func (i *Index) ElementOf(name string) (model.Element, bool) {
	if i == nil {
		return nil, false
	}
	el, ok := i.byName[name]
	return el, ok
}

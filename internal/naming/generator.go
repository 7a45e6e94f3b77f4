package naming

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator produces raw tokens for unnamed elements.
// Implemented by UUIDGenerator (production) and FixedGenerator (tests).
type Generator interface {
	Generate() string
}

// UUIDGenerator generates UUIDv7 tokens without hyphens.
//
// Hyphens are operators in LP files, so the 32 hex digits are used bare.
// UUIDv7 embeds a timestamp, which keeps generated names roughly ordered by
// creation when reading exported models.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate panics if UUID generation fails (should never happen in practice).
func (UUIDGenerator) Generate() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}

// FixedGenerator returns predetermined tokens in order.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
//	gen := NewFixedGenerator("a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate panics once all tokens have been consumed, which surfaces a test
// that bridges more elements than it planned for.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

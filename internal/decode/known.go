package decode

import (
	"math"
	"strconv"
	"strings"
)

// Known decides whether a name's values are kept. A nil Known keeps
// everything.
type Known func(name string) bool

func (k Known) keep(name string) bool {
	return k == nil || k(name)
}

// KnownSet builds a Known from a fixed list of names.
func KnownSet(names ...string) Known {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

// ParseNumber parses a numeric attribute tolerantly: surrounding space is
// ignored and "infinity"/"-infinity" (any case, also "inf") map to ±Inf.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "infinity", "+infinity", "inf", "+inf":
		return math.Inf(1), nil
	case "-infinity", "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

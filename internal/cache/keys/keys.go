// Package keys builds cache keys for ranking payloads.
package keys

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "rank"

// Key identifies one ranking payload. gen is the data generation of kind; a bump
// makes every older key unreachable.
func Key(kind, layer string, gen uint64, query string) string {
	kindNorm := sanitize(strings.TrimSpace(kind))
	layerNorm := sanitize(strings.TrimSpace(layer))
	querySafe := sanitize(query)

	const maxQueryTextLen = 160
	if len(querySafe) > maxQueryTextLen {
		querySafe = querySafe[:maxQueryTextLen]
	}

	sum := xxhash.Sum64String(query)

	return fmt.Sprintf("%s:%s:%s:g%d:q=%s:f=%016x", prefix, kindNorm, layerNorm, gen, querySafe, sum)
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == ',':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}

// Generations tracks the data generation per barrier kind.
type Generations struct {
	mu  sync.RWMutex
	gen map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{gen: make(map[string]uint64)}
}

func (g *Generations) Get(kind string) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gen[kind]
}

// Advance moves kind to version when it is newer and reports whether it moved.
func (g *Generations) Advance(kind string, version uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if version <= g.gen[kind] {
		return false
	}
	g.gen[kind] = version
	return true
}

// Bump increments kind's generation and returns the new value.
func (g *Generations) Bump(kind string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen[kind]++
	return g.gen[kind]
}

// Package search implements free-text lookup of summary units by name or identifier.
package search

import (
	"regexp"
	"strings"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

// MaxResults caps the number of units returned for one query.
const MaxResults = 10

// Source supplies the units of a layer in storage order.
type Source interface {
	Lookup(layer model.LayerKind) []model.SummaryUnit
}

// Scope is the ordered list of layers a query runs against.
type Scope struct {
	Layers []model.LayerKind
}

func ForLayer(l model.LayerKind) Scope { return Scope{Layers: []model.LayerKind{l}} }

func ForSystem(s model.System) Scope { return Scope{Layers: s.Layers()} }

var metachars = regexp.MustCompile(`[.*+?^${}()|[\]\\]`)

// Search returns up to MaxResults units of scope whose name, or identifier for
// layers with meaningful identifiers, contains query case-insensitively.
// The query is always matched as literal text; a variant with regular
// expression metacharacters removed is tried as well.
func Search(src Source, query string, scope Scope) []model.SummaryUnit {
	patterns := compile(query)
	if len(patterns) == 0 {
		return nil
	}

	var out []model.SummaryUnit
	for _, layer := range scope.Layers {
		for _, u := range src.Lookup(layer) {
			if matches(patterns, u) {
				out = append(out, u)
				if len(out) == MaxResults {
					return out
				}
			}
		}
	}
	return out
}

func matches(patterns []*regexp.Regexp, u model.SummaryUnit) bool {
	for _, p := range patterns {
		if p.MatchString(u.Name) {
			return true
		}
		if !u.Layer.OpaqueIDs() && p.MatchString(u.ID) {
			return true
		}
	}
	return false
}

// compile never fails: a pattern that does not compile is dropped.
func compile(query string) []*regexp.Regexp {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	var out []*regexp.Regexp
	if re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query)); err == nil {
		out = append(out, re)
	}
	if stripped := metachars.ReplaceAllString(query, ""); stripped != query && strings.TrimSpace(stripped) != "" {
		if re, err := regexp.Compile("(?i)" + stripped); err == nil {
			out = append(out, re)
		}
	}
	return out
}

// Package selection holds the set of summary units a user has picked within one layer.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

var ErrLayerMismatch = errors.New("selection: unit layer does not match selection layer")

// Set is an immutable, insertion-ordered set of units scoped to a single layer.
// The zero value is an empty set with no layer.
type Set struct {
	layer model.LayerKind
	units []model.SummaryUnit
}

func New(layer model.LayerKind) Set {
	return Set{layer: layer}
}

func (s Set) Layer() model.LayerKind { return s.layer }

func (s Set) Len() int { return len(s.units) }

func (s Set) Empty() bool { return len(s.units) == 0 }

// Units returns a copy of the members in insertion order.
func (s Set) Units() []model.SummaryUnit {
	out := make([]model.SummaryUnit, len(s.units))
	copy(out, s.units)
	return out
}

// IDs returns member identifiers in insertion order.
func (s Set) IDs() []string {
	out := make([]string, len(s.units))
	for i, u := range s.units {
		out[i] = u.ID
	}
	return out
}

func (s Set) Contains(id string) bool {
	return s.index(id) >= 0
}

func (s Set) index(id string) int {
	for i, u := range s.units {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// Toggle removes u when present and appends it otherwise. The receiver is not modified.
func (s Set) Toggle(u model.SummaryUnit) (Set, error) {
	if u.Layer != s.layer {
		return s, fmt.Errorf("%w: %s into %s", ErrLayerMismatch, u.Layer, s.layer)
	}
	out := Set{layer: s.layer}
	if i := s.index(u.ID); i >= 0 {
		out.units = make([]model.SummaryUnit, 0, len(s.units)-1)
		out.units = append(out.units, s.units[:i]...)
		out.units = append(out.units, s.units[i+1:]...)
		return out, nil
	}
	out.units = make([]model.SummaryUnit, 0, len(s.units)+1)
	out.units = append(out.units, s.units...)
	out.units = append(out.units, u)
	return out, nil
}

type setJSON struct {
	Layer model.LayerKind     `json:"layer"`
	Units []model.SummaryUnit `json:"units"`
}

func (s Set) MarshalJSON() ([]byte, error) {
	units := s.units
	if units == nil {
		units = []model.SummaryUnit{}
	}
	return json.Marshal(setJSON{Layer: s.layer, Units: units})
}

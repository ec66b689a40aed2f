// Package filters models the per-dimension value constraints applied to barrier data.
package filters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Entry is one dimension and the values it is restricted to.
// An empty Values slice leaves the dimension unconstrained.
type Entry struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

// Set is an immutable, ordered mapping of dimension to values. Dimensions keep
// first-insertion order, values keep insertion order without duplicates.
type Set struct {
	entries []Entry
}

func NewSet(entries ...Entry) Set {
	var s Set
	for _, e := range entries {
		s = s.With(e.Dimension, e.Values...)
	}
	return s
}

// With returns a copy where dim is restricted to values. A dimension already
// present keeps its position.
func (s Set) With(dim string, values ...string) Set {
	vals := dedupe(values)
	out := Set{entries: make([]Entry, 0, len(s.entries)+1)}
	replaced := false
	for _, e := range s.entries {
		if e.Dimension == dim {
			out.entries = append(out.entries, Entry{Dimension: dim, Values: vals})
			replaced = true
			continue
		}
		out.entries = append(out.entries, e)
	}
	if !replaced {
		out.entries = append(out.entries, Entry{Dimension: dim, Values: vals})
	}
	return out
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Entries returns every dimension, including unconstrained ones.
func (s Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Dimension: e.Dimension, Values: slices.Clone(e.Values)}
	}
	return out
}

// Active returns only dimensions with at least one value.
func (s Set) Active() []Entry {
	var out []Entry
	for _, e := range s.entries {
		if len(e.Values) > 0 {
			out = append(out, Entry{Dimension: e.Dimension, Values: slices.Clone(e.Values)})
		}
	}
	return out
}

func (s Set) Values(dim string) []string {
	for _, e := range s.entries {
		if e.Dimension == dim {
			return slices.Clone(e.Values)
		}
	}
	return nil
}

func (s Set) IsEmpty() bool {
	for _, e := range s.entries {
		if len(e.Values) > 0 {
			return false
		}
	}
	return true
}

func (s Set) Equal(o Set) bool {
	a, b := s.Active(), o.Active()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Dimension != b[i].Dimension || !slices.Equal(a[i].Values, b[i].Values) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as an object whose keys follow set order.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Dimension)
		if err != nil {
			return nil, err
		}
		vals := e.Values
		if vals == nil {
			vals = []string{}
		}
		v, err := json.Marshal(vals)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of dimension -> array, keeping key order.
// Array elements may be strings, numbers or booleans.
func (s *Set) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	if tok == nil {
		*s = Set{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("filters: expected object, got %v", tok)
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("filters: %w", err)
		}
		key, _ := keyTok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("filters: dimension %q: %w", key, err)
		}
		vals, err := toValues(raw)
		if err != nil {
			return fmt.Errorf("filters: dimension %q: %w", key, err)
		}
		entries = append(entries, Entry{Dimension: key, Values: vals})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	*s = NewSet(entries...)
	return nil
}

func toValues(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", raw)
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case json.Number:
			out = append(out, x.String())
		case bool:
			out = append(out, strconv.FormatBool(x))
		default:
			return nil, fmt.Errorf("unsupported value %v", v)
		}
	}
	return out, nil
}

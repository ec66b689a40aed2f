package filters

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

var (
	ErrUnknownDimension = errors.New("filters: unknown dimension")
	ErrValueOutOfDomain = errors.New("filters: value outside dimension domain")
	ErrUnknownKind      = errors.New("filters: no schema for barrier kind")
)

//go:embed schema.yaml
var defaultSchema []byte

type Value struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// Dimension is a declared filterable attribute with its closed domain.
type Dimension struct {
	Name   string  `yaml:"name" json:"name"`
	Label  string  `yaml:"label" json:"label"`
	Field  string  `yaml:"field" json:"field"`
	Domain []Value `yaml:"domain" json:"domain"`
}

func (d Dimension) allows(code string) bool {
	for _, v := range d.Domain {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Schema holds the declared dimensions per barrier kind.
type Schema struct {
	kinds map[model.BarrierKind][]Dimension
}

func DefaultSchema() *Schema {
	s, err := LoadSchema(bytes.NewReader(defaultSchema))
	if err != nil {
		panic(fmt.Sprintf("filters: embedded schema: %v", err))
	}
	return s
}

// LoadSchemaFile reads a schema from path, or returns the built-in schema for "".
func LoadSchemaFile(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open filter schema: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadSchema(f)
}

func LoadSchema(r io.Reader) (*Schema, error) {
	var raw map[string][]Dimension
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode filter schema: %w", err)
	}
	s := &Schema{kinds: make(map[model.BarrierKind][]Dimension, len(raw))}
	for k, dims := range raw {
		kind, err := model.ParseBarrierKind(k)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for i := range dims {
			d := &dims[i]
			if d.Name == "" {
				return nil, fmt.Errorf("%s: dimension %d has no name", kind, i)
			}
			if seen[d.Name] {
				return nil, fmt.Errorf("%s: duplicate dimension %q", kind, d.Name)
			}
			seen[d.Name] = true
			if d.Field == "" {
				d.Field = d.Name
			}
			if len(d.Domain) == 0 {
				return nil, fmt.Errorf("%s: dimension %q has an empty domain", kind, d.Name)
			}
		}
		s.kinds[kind] = dims
	}
	return s, nil
}

func (s *Schema) Dimensions(kind model.BarrierKind) []Dimension {
	return s.kinds[kind]
}

func (s *Schema) Dimension(kind model.BarrierKind, name string) (Dimension, bool) {
	for _, d := range s.kinds[kind] {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Validate reports every dimension of set that is not declared for kind and
// every value outside its dimension's domain.
func (s *Schema) Validate(kind model.BarrierKind, set Set) error {
	if _, ok := s.kinds[kind]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	var errs []error
	for _, e := range set.Entries() {
		d, ok := s.Dimension(kind, e.Dimension)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownDimension, e.Dimension))
			continue
		}
		for _, v := range e.Values {
			if !d.allows(v) {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrValueOutOfDomain, e.Dimension, v))
			}
		}
	}
	return errors.Join(errs...)
}

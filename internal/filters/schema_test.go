package filters

import (
	"errors"
	"strings"
	"testing"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

func TestDefaultSchema_Dimensions(t *testing.T) {
	s := DefaultSchema()
	for _, tc := range []struct {
		kind model.BarrierKind
		dims []string
	}{
		{model.BarrierDams, []string{"feasibility", "heightclass", "construction", "purpose", "condition", "gainmilesclass", "sinuosityclass", "tesppclass", "streamorderclass"}},
		{model.BarrierSmallBarriers, []string{"conditionclass", "severityclass", "crossingtypeclass", "roadtypeclass", "gainmilesclass", "sinuosityclass", "tesppclass", "streamorderclass"}},
	} {
		got := s.Dimensions(tc.kind)
		if len(got) != len(tc.dims) {
			t.Fatalf("%s: %d dimensions, want %d", tc.kind, len(got), len(tc.dims))
		}
		for i, name := range tc.dims {
			if got[i].Name != name {
				t.Fatalf("%s[%d]=%s want %s", tc.kind, i, got[i].Name, name)
			}
			if got[i].Field != name {
				t.Fatalf("%s: field defaults to name, got %q", name, got[i].Field)
			}
		}
	}
	d, ok := s.Dimension(model.BarrierDams, "feasibility")
	if !ok || len(d.Domain) != 9 {
		t.Fatalf("feasibility domain: %+v", d)
	}
}

func TestValidate(t *testing.T) {
	s := DefaultSchema()

	ok := NewSet(Entry{"feasibility", []string{"1", "2"}}, Entry{"heightclass", nil})
	if err := s.Validate(model.BarrierDams, ok); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}

	unknown := NewSet(Entry{"feasibilty", []string{"1"}})
	if err := s.Validate(model.BarrierDams, unknown); !errors.Is(err, ErrUnknownDimension) {
		t.Fatalf("want ErrUnknownDimension, got %v", err)
	}

	// dams-only dimension is unknown for small barriers
	if err := s.Validate(model.BarrierSmallBarriers, ok); !errors.Is(err, ErrUnknownDimension) {
		t.Fatalf("want ErrUnknownDimension for barriers, got %v", err)
	}

	out := NewSet(Entry{"feasibility", []string{"42"}})
	if err := s.Validate(model.BarrierDams, out); !errors.Is(err, ErrValueOutOfDomain) {
		t.Fatalf("want ErrValueOutOfDomain, got %v", err)
	}
}

func TestValidate_KindWithoutSchema(t *testing.T) {
	s, err := LoadSchema(strings.NewReader("dams:\n  - name: construction\n    domain: [{code: \"1\", label: Cement}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	err = s.Validate(model.BarrierSmallBarriers, NewSet())
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("want ErrUnknownKind, got %v", err)
	}
}

func TestLoadSchema_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown kind":  "culverts:\n  - name: a\n    domain: [{code: \"1\", label: x}]\n",
		"no name":       "dams:\n  - label: x\n    domain: [{code: \"1\", label: x}]\n",
		"empty domain":  "dams:\n  - name: a\n",
		"duplicate dim": "dams:\n  - name: a\n    domain: [{code: \"1\", label: x}]\n  - name: a\n    domain: [{code: \"1\", label: x}]\n",
		"not yaml":      "dams: [",
	}
	for name, doc := range cases {
		if _, err := LoadSchema(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadSchemaFile_EmptyPathUsesDefault(t *testing.T) {
	s, err := LoadSchemaFile("")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Dimensions(model.BarrierDams)) == 0 {
		t.Fatal("default schema has no dam dimensions")
	}
}

package filters

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewSet_DedupesAndKeepsOrder(t *testing.T) {
	s := NewSet(
		Entry{Dimension: "feasibility", Values: []string{"2", "1", "2"}},
		Entry{Dimension: "heightclass", Values: nil},
		Entry{Dimension: "construction", Values: []string{"1"}},
	)
	want := []Entry{
		{Dimension: "feasibility", Values: []string{"2", "1"}},
		{Dimension: "construction", Values: []string{"1"}},
	}
	if diff := cmp.Diff(want, s.Active()); diff != "" {
		t.Fatalf("active (-want +got):\n%s", diff)
	}
	if len(s.Entries()) != 3 {
		t.Fatalf("empty dimensions must be kept, got %v", s.Entries())
	}
}

func TestWith_ReplacesInPlace(t *testing.T) {
	s := NewSet(Entry{"a", []string{"1"}}, Entry{"b", []string{"2"}})
	s2 := s.With("a", "3")
	if diff := cmp.Diff([]string{"3"}, s2.Values("a")); diff != "" {
		t.Fatal(diff)
	}
	if s2.Entries()[0].Dimension != "a" {
		t.Fatalf("dimension moved: %v", s2.Entries())
	}
	if diff := cmp.Diff([]string{"1"}, s.Values("a")); diff != "" {
		t.Fatalf("receiver mutated: %s", diff)
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Set{}).IsEmpty() {
		t.Fatal("zero set must be empty")
	}
	if !NewSet(Entry{"a", nil}).IsEmpty() {
		t.Fatal("set with only unconstrained dimensions must be empty")
	}
	if NewSet(Entry{"a", []string{"x"}}).IsEmpty() {
		t.Fatal("constrained set reported empty")
	}
}

func TestJSON_PreservesKeyOrder(t *testing.T) {
	in := `{"streamorderclass":[3,1],"feasibility":["2"],"heightclass":[],"tesppclass":null}`
	var s Set
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := []string{}
	for _, e := range s.Entries() {
		got = append(got, e.Dimension)
	}
	if diff := cmp.Diff([]string{"streamorderclass", "feasibility", "heightclass", "tesppclass"}, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"3", "1"}, s.Values("streamorderclass")); diff != "" {
		t.Fatal(diff)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"streamorderclass":["3","1"],"feasibility":["2"],"heightclass":[],"tesppclass":[]}`
	if string(out) != want {
		t.Fatalf("marshal:\n got %s\nwant %s", out, want)
	}
}

func TestJSON_RejectsNonArray(t *testing.T) {
	var s Set
	if err := json.Unmarshal([]byte(`{"feasibility":"1"}`), &s); err == nil {
		t.Fatal("expected error for scalar value")
	}
	if err := json.Unmarshal([]byte(`["feasibility"]`), &s); err == nil {
		t.Fatal("expected error for array set")
	}
}

func TestEqual(t *testing.T) {
	a := NewSet(Entry{"a", []string{"1"}}, Entry{"b", nil})
	b := NewSet(Entry{"a", []string{"1"}})
	if !a.Equal(b) {
		t.Fatal("unconstrained dimension must not affect equality")
	}
	if a.Equal(NewSet(Entry{"a", []string{"2"}})) {
		t.Fatal("different values reported equal")
	}
}

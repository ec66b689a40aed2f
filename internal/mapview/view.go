// Package mapview keeps a map display consistent with a workflow session. It
// projects snapshots into what the map should show and turns map input into
// workflow events. It holds no interaction state of its own.
package mapview

import (
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

// Layers is the visibility of each map layer.
type Layers struct {
	UnitFill         bool `json:"unit-fill"`
	UnitHighlight    bool `json:"unit-highlight"`
	Barriers         bool `json:"barriers"`
	BarriersRanked   bool `json:"barriers-ranked"`
	BarrierHighlight bool `json:"barrier-highlight"`
}

type BarrierRef struct {
	Kind model.BarrierKind `json:"kind"`
	ID   string            `json:"id"`
}

// View is everything the map needs to render a session.
type View struct {
	Version         uint64            `json:"version"`
	Step            workflow.Step     `json:"step"`
	BarrierKind     model.BarrierKind `json:"barrierKind"`
	Layer           model.LayerKind   `json:"layer,omitempty"`
	AllowUnitSelect bool              `json:"allowUnitSelect"`
	AllowFilter     bool              `json:"allowFilter"`
	SelectedUnits   []string          `json:"selectedUnits"`
	Filters         filters.Set       `json:"filters"`
	SelectedBarrier *BarrierRef       `json:"selectedBarrier,omitempty"`
	FlyTo           *model.BBox       `json:"flyTo,omitempty"`
	Loading         bool              `json:"loading"`
	LoadError       string            `json:"loadError,omitempty"`
	Layers          Layers            `json:"layers"`
}

func Project(s workflow.Snapshot) View {
	v := View{
		Version:         s.Version,
		Step:            s.Step,
		BarrierKind:     s.BarrierKind,
		Layer:           s.Layer,
		AllowUnitSelect: s.Step == workflow.StepSelect && s.Layer != "",
		AllowFilter:     s.Step == workflow.StepFilter,
		SelectedUnits:   s.Selection.IDs(),
		Filters:         s.Filters,
		Loading:         s.Loading,
		LoadError:       s.LoadError,
	}
	if v.SelectedUnits == nil {
		v.SelectedUnits = []string{}
	}
	if b := s.SelectedBarrier; b != nil {
		v.SelectedBarrier = &BarrierRef{Kind: b.Kind, ID: b.ID}
	}
	if f := s.SearchFeature; f != nil && f.BBox != nil {
		bb := *f.BBox
		v.FlyTo = &bb
	}
	v.Layers = Layers{
		UnitFill:         v.AllowUnitSelect,
		UnitHighlight:    !s.Selection.Empty(),
		Barriers:         s.Step == workflow.StepFilter,
		BarriersRanked:   s.Step == workflow.StepResults && s.Results.Status == workflow.StatusReady,
		BarrierHighlight: s.SelectedBarrier != nil,
	}
	return v
}

package workflow

import (
	"maps"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/selection"
)

type Step string

const (
	StepSelect  Step = "select"
	StepFilter  Step = "filter"
	StepResults Step = "results"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Fetch is the state of one remote data target. Generation identifies the
// request whose outcome the state is waiting for or holds.
type Fetch struct {
	Status     Status         `json:"status"`
	Query      string         `json:"query,omitempty"`
	Table      *ranking.Table `json:"table,omitempty"`
	Err        string         `json:"error,omitempty"`
	Generation uint64         `json:"generation,omitempty"`
}

// Barrier is the barrier whose details are shown.
type Barrier struct {
	Kind model.BarrierKind `json:"kind"`
	ID   string            `json:"id"`
	// Source is the map layer the feature was picked from.
	Source     string         `json:"source,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Panel is what the sidebar shows.
type Panel string

const (
	PanelDetails      Panel = "details"
	PanelError        Panel = "error"
	PanelLoading      Panel = "loading"
	PanelLayerChooser Panel = "layer-chooser"
	PanelUnitChooser  Panel = "unit-chooser"
	PanelFilters      Panel = "filters"
	PanelResults      Panel = "results"
)

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	Session         string             `json:"session"`
	Version         uint64             `json:"version"`
	BarrierKind     model.BarrierKind  `json:"barrierKind"`
	Step            Step               `json:"step"`
	Layer           model.LayerKind    `json:"layer,omitempty"`
	Selection       selection.Set      `json:"selection"`
	Filters         filters.Set        `json:"filters"`
	SearchFeature   *model.SummaryUnit `json:"searchFeature,omitempty"`
	SelectedBarrier *Barrier           `json:"selectedBarrier,omitempty"`
	Loading         bool               `json:"loading"`
	LoadError       string             `json:"loadError,omitempty"`
	Inventory       Fetch              `json:"inventory"`
	Results         Fetch              `json:"results"`
}

// Panel applies the display precedence: barrier details, then load errors,
// then map loading, then the step.
func (s Snapshot) Panel() Panel {
	switch {
	case s.SelectedBarrier != nil:
		return PanelDetails
	case s.LoadError != "":
		return PanelError
	case s.Loading:
		return PanelLoading
	}
	switch s.Step {
	case StepFilter:
		return PanelFilters
	case StepResults:
		return PanelResults
	}
	if s.Layer == "" {
		return PanelLayerChooser
	}
	return PanelUnitChooser
}

// Request is the ranking request for the current selection and filters.
func (s Snapshot) Request() ranking.Request {
	return ranking.Request{
		Kind:    s.BarrierKind,
		Layer:   s.Layer,
		UnitIDs: s.Selection.IDs(),
		Filters: s.Filters,
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.SearchFeature != nil {
		u := *s.SearchFeature
		out.SearchFeature = &u
	}
	if s.SelectedBarrier != nil {
		b := *s.SelectedBarrier
		b.Properties = maps.Clone(s.SelectedBarrier.Properties)
		out.SelectedBarrier = &b
	}
	return out
}

// resolveBarrier fills b from the matching result row and normalizes the
// species fields to the current naming.
func resolveBarrier(b Barrier, results *ranking.Table) Barrier {
	props := maps.Clone(b.Properties)
	if props == nil {
		props = make(map[string]any)
	}
	if results != nil {
		if row, ok := results.Find(b.ID); ok {
			maps.Copy(props, row)
		}
	}
	if legacy, ok := props["rarespp"]; ok {
		if _, has := props["tespp"]; !has {
			props["tespp"] = legacy
		}
		delete(props, "rarespp")
	}
	b.Properties = props
	return b
}

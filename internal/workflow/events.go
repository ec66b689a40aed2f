package workflow

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/selection"
)

var (
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	ErrNoLayer           = errors.New("workflow: no layer selected")
	ErrEmptySelection    = errors.New("workflow: no units selected")
	ErrUnknownLayer      = errors.New("workflow: unknown layer")
	ErrClosed            = errors.New("workflow: session closed")

	// errIgnored marks events that are valid but leave state untouched.
	errIgnored = errors.New("ignored")
	errStale   = errors.New("stale")
)

// Event is a user or system input to a Machine. Events are reduced one at a
// time against the live state.
type Event interface {
	Name() string
	apply(m *Machine) error
}

func invalid(ev Event, step Step) error {
	return fmt.Errorf("%w: %s during %s", ErrInvalidTransition, ev.Name(), step)
}

// SetLayer switches the active layer. It discards the selection, filters,
// search feature and barrier details and returns to unit selection. An empty
// Layer returns to the layer chooser.
type SetLayer struct {
	Layer model.LayerKind
}

func (SetLayer) Name() string { return "set_layer" }

func (e SetLayer) apply(m *Machine) error {
	if e.Layer != "" && !e.Layer.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, e.Layer)
	}
	m.retire(targetInventory)
	m.retire(targetResults)
	s := &m.state
	s.Layer = e.Layer
	s.Selection = selection.New(e.Layer)
	s.Filters = filters.Set{}
	s.SearchFeature = nil
	s.SelectedBarrier = nil
	s.Step = StepSelect
	return nil
}

// ToggleUnit adds or removes a unit. Filters and the pending search feature
// are cleared because they were built for the previous selection.
type ToggleUnit struct {
	Unit model.SummaryUnit
}

func (ToggleUnit) Name() string { return "toggle_unit" }

func (e ToggleUnit) apply(m *Machine) error {
	s := &m.state
	if s.Step != StepSelect {
		return invalid(e, s.Step)
	}
	if s.Layer == "" {
		return ErrNoLayer
	}
	next, err := s.Selection.Toggle(e.Unit)
	if err != nil {
		return err
	}
	m.retire(targetInventory)
	s.Selection = next
	s.Filters = filters.Set{}
	s.SearchFeature = nil
	s.SelectedBarrier = nil
	return nil
}

// SetSearchFeature records the search result the map should fly to. A nil
// Unit clears it.
type SetSearchFeature struct {
	Unit *model.SummaryUnit
}

func (SetSearchFeature) Name() string { return "set_search_feature" }

func (e SetSearchFeature) apply(m *Machine) error {
	s := &m.state
	if e.Unit == nil {
		if s.SearchFeature == nil {
			return errIgnored
		}
		s.SearchFeature = nil
		return nil
	}
	if s.Step != StepSelect {
		return invalid(e, s.Step)
	}
	if s.Layer == "" {
		return ErrNoLayer
	}
	if e.Unit.Layer != s.Layer {
		return fmt.Errorf("%w: %s into %s", selection.ErrLayerMismatch, e.Unit.Layer, s.Layer)
	}
	u := *e.Unit
	s.SearchFeature = &u
	return nil
}

// Submit advances one step: unit selection to filtering, filtering to results.
type Submit struct{}

func (Submit) Name() string { return "submit" }

func (e Submit) apply(m *Machine) error {
	s := &m.state
	switch s.Step {
	case StepSelect:
		if s.Layer == "" {
			return ErrNoLayer
		}
		if s.Selection.Empty() {
			return ErrEmptySelection
		}
		s.Step = StepFilter
		if m.inventory {
			m.start(targetInventory)
		}
		return nil
	case StepFilter:
		s.Step = StepResults
		m.start(targetResults)
		return nil
	}
	return invalid(e, s.Step)
}

// Back returns one step. From unit selection it returns to the layer chooser.
type Back struct{}

func (Back) Name() string { return "back" }

func (e Back) apply(m *Machine) error {
	s := &m.state
	switch s.Step {
	case StepResults:
		m.retire(targetResults)
		s.Step = StepFilter
		return nil
	case StepFilter:
		m.retire(targetInventory)
		s.Step = StepSelect
		s.SelectedBarrier = nil
		return nil
	}
	if s.Layer == "" {
		return invalid(e, s.Step)
	}
	return SetLayer{}.apply(m)
}

// SetFilters replaces the whole filter set.
type SetFilters struct {
	Filters filters.Set
}

func (SetFilters) Name() string { return "set_filters" }

func (e SetFilters) apply(m *Machine) error {
	s := &m.state
	if s.Step != StepFilter {
		return invalid(e, s.Step)
	}
	s.Filters = e.Filters
	return nil
}

// SelectBarrier shows a barrier's details. It is ignored while units are
// being selected, judged by the step at the time the event is applied.
type SelectBarrier struct {
	Barrier Barrier
}

func (SelectBarrier) Name() string { return "select_barrier" }

func (e SelectBarrier) apply(m *Machine) error {
	s := &m.state
	if s.Step == StepSelect {
		return errIgnored
	}
	b := e.Barrier
	if b.Kind == "" {
		b.Kind = s.BarrierKind
	}
	b = resolveBarrier(b, s.Results.Table)
	s.SelectedBarrier = &b
	return nil
}

type CloseDetails struct{}

func (CloseDetails) Name() string { return "close_details" }

func (CloseDetails) apply(m *Machine) error {
	if m.state.SelectedBarrier == nil {
		return errIgnored
	}
	m.state.SelectedBarrier = nil
	return nil
}

// MapClick carries every candidate under a map click. The live step decides
// whether it toggles Unit or selects Barrier.
type MapClick struct {
	Unit    *model.SummaryUnit
	Barrier *Barrier
}

func (MapClick) Name() string { return "map_click" }

func (e MapClick) apply(m *Machine) error {
	if m.state.Step == StepSelect {
		if e.Unit == nil {
			// an empty unit-mode click still dismisses open details
			if m.state.SelectedBarrier == nil {
				return errIgnored
			}
			m.state.SelectedBarrier = nil
			return nil
		}
		return ToggleUnit{Unit: *e.Unit}.apply(m)
	}
	if e.Barrier == nil {
		return errIgnored
	}
	return SelectBarrier{Barrier: *e.Barrier}.apply(m)
}

// MapReady reports that the map finished loading.
type MapReady struct{}

func (MapReady) Name() string { return "map_ready" }

func (MapReady) apply(m *Machine) error {
	if !m.state.Loading {
		return errIgnored
	}
	m.state.Loading = false
	return nil
}

const defaultLoadError = "There was an error loading these data. Please refresh this page in your browser to try again."

// MapFailed puts the session into the load error state. There is no retry.
type MapFailed struct {
	Message string
}

func (MapFailed) Name() string { return "map_failed" }

func (e MapFailed) apply(m *Machine) error {
	msg := e.Message
	if msg == "" {
		msg = defaultLoadError
	}
	m.state.LoadError = msg
	return nil
}

type target int

const (
	targetInventory target = iota
	targetResults
)

func (t target) String() string {
	if t == targetResults {
		return "results"
	}
	return "inventory"
}

// fetchDone delivers the outcome of a fetch started by Machine.start.
type fetchDone struct {
	target target
	gen    uint64
	table  ranking.Table
	err    error
}

func (fetchDone) Name() string { return "fetch_done" }

func (e fetchDone) apply(m *Machine) error {
	f := m.fetch(e.target)
	if f.Generation != e.gen || f.Status != StatusLoading {
		return errStale
	}
	m.cancels[e.target] = nil
	if e.err != nil {
		f.Status = StatusError
		f.Err = e.err.Error()
		return nil
	}
	t := e.table
	f.Status = StatusReady
	f.Table = &t
	return nil
}

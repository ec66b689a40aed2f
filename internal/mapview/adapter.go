package mapview

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

var ErrBadIntent = errors.New("mapview: bad intent")

const (
	IntentUnitClick    = "unit-click"
	IntentBarrierClick = "barrier-click"
	IntentMapClick     = "map-click"
	IntentSearchPick   = "search-pick"
	IntentReady        = "ready"
	IntentLoadError    = "load-error"
)

// Intent is raw input from the map. Units are named by layer and id or by a
// clicked position.
type Intent struct {
	Type    string            `json:"type"`
	Layer   string            `json:"layer,omitempty"`
	ID      string            `json:"id,omitempty"`
	Lon     *float64          `json:"lon,omitempty"`
	Lat     *float64          `json:"lat,omitempty"`
	Barrier *workflow.Barrier `json:"barrier,omitempty"`
	Message string            `json:"message,omitempty"`
}

type Dispatcher interface {
	Dispatch(workflow.Event) (workflow.Snapshot, error)
	Snapshot() workflow.Snapshot
}

// Locator resolves units for the map, usually a gazetteer.Index.
type Locator interface {
	Unit(layer model.LayerKind, id string) (model.SummaryUnit, error)
	UnitAt(layer model.LayerKind, lon, lat float64) (model.SummaryUnit, bool)
}

type Adapter struct {
	units Locator
}

func NewAdapter(units Locator) *Adapter {
	return &Adapter{units: units}
}

// Handle dispatches the event for in and returns the resulting projection.
func (a *Adapter) Handle(d Dispatcher, in Intent) (View, error) {
	ev, err := a.event(d, in)
	if err != nil {
		return Project(d.Snapshot()), err
	}
	s, err := d.Dispatch(ev)
	if err != nil {
		return Project(d.Snapshot()), err
	}
	return Project(s), nil
}

func (a *Adapter) event(d Dispatcher, in Intent) (workflow.Event, error) {
	switch in.Type {
	case IntentReady:
		return workflow.MapReady{}, nil
	case IntentLoadError:
		return workflow.MapFailed{Message: in.Message}, nil
	case IntentBarrierClick:
		if in.Barrier == nil || in.Barrier.ID == "" {
			return nil, fmt.Errorf("%w: barrier-click without barrier", ErrBadIntent)
		}
		return workflow.SelectBarrier{Barrier: *in.Barrier}, nil
	case IntentUnitClick:
		u, err := a.resolve(d, in)
		if err != nil {
			return nil, err
		}
		return workflow.ToggleUnit{Unit: u}, nil
	case IntentSearchPick:
		u, err := a.resolve(d, in)
		if err != nil {
			return nil, err
		}
		return workflow.SetSearchFeature{Unit: &u}, nil
	case IntentMapClick:
		ev := workflow.MapClick{Barrier: in.Barrier}
		if u, err := a.resolve(d, in); err == nil {
			ev.Unit = &u
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrBadIntent, in.Type)
}

func (a *Adapter) resolve(d Dispatcher, in Intent) (model.SummaryUnit, error) {
	layer := d.Snapshot().Layer
	if in.Layer != "" {
		l, err := model.ParseLayer(in.Layer)
		if err != nil {
			return model.SummaryUnit{}, fmt.Errorf("%w: %w", ErrBadIntent, err)
		}
		layer = l
	}
	if layer == "" {
		return model.SummaryUnit{}, workflow.ErrNoLayer
	}
	switch {
	case in.ID != "":
		return a.units.Unit(layer, in.ID)
	case in.Lon != nil && in.Lat != nil:
		u, ok := a.units.UnitAt(layer, *in.Lon, *in.Lat)
		if !ok {
			return model.SummaryUnit{}, fmt.Errorf("%w: no %s unit at %.5f,%.5f", ErrBadIntent, layer, *in.Lon, *in.Lat)
		}
		return u, nil
	}
	return model.SummaryUnit{}, fmt.Errorf("%w: unit needs id or lon/lat", ErrBadIntent)
}

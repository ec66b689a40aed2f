package mapview

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/gazetteer"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

type stubRanker struct{}

func (stubRanker) Rank(context.Context, ranking.Request) (ranking.Table, error) {
	return ranking.Table{}, nil
}

func (stubRanker) Inventory(context.Context, ranking.Request) (ranking.Table, error) {
	return ranking.Table{}, nil
}

type stubLocator map[model.UnitKey]model.SummaryUnit

func (l stubLocator) Unit(layer model.LayerKind, id string) (model.SummaryUnit, error) {
	u, ok := l[model.UnitKey{Layer: layer, ID: id}]
	if !ok {
		return model.SummaryUnit{}, gazetteer.ErrUnknownUnit
	}
	return u, nil
}

// UnitAt resolves every point to the first unit of the layer with a bbox
// containing it.
func (l stubLocator) UnitAt(layer model.LayerKind, lon, lat float64) (model.SummaryUnit, bool) {
	for k, u := range l {
		if k.Layer == layer && u.BBox != nil && lon >= u.BBox.X1 && lon <= u.BBox.X2 && lat >= u.BBox.Y1 && lat <= u.BBox.Y2 {
			return u, true
		}
	}
	return model.SummaryUnit{}, false
}

func locator() stubLocator {
	u := model.SummaryUnit{
		Layer: model.LayerHUC8, ID: "03020201", Name: "Upper Neuse",
		BBox: &model.BBox{X1: -79, Y1: 35, X2: -78, Y2: 36, SRID: "EPSG:4326"},
	}
	return stubLocator{u.Key(): u}
}

func newMachine(t *testing.T) *workflow.Machine {
	t.Helper()
	m := workflow.New("s1", model.BarrierDams, stubRanker{}, workflow.WithInventory(false))
	t.Cleanup(m.Close)
	return m
}

func ptr(f float64) *float64 { return &f }

func TestProjectSelectStep(t *testing.T) {
	m := newMachine(t)
	a := NewAdapter(locator())
	if _, err := a.Handle(m, Intent{Type: IntentReady}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Dispatch(workflow.SetLayer{Layer: model.LayerHUC8}); err != nil {
		t.Fatal(err)
	}
	v, err := a.Handle(m, Intent{Type: IntentSearchPick, ID: "03020201"})
	if err != nil {
		t.Fatal(err)
	}
	if v.FlyTo == nil || v.FlyTo.X1 != -79 {
		t.Fatalf("flyTo = %+v", v.FlyTo)
	}

	v, err = a.Handle(m, Intent{Type: IntentMapClick, Lon: ptr(-78.5), Lat: ptr(35.5), Barrier: &workflow.Barrier{ID: "d1"}})
	if err != nil {
		t.Fatal(err)
	}
	want := Layers{UnitFill: true, UnitHighlight: true}
	if diff := cmp.Diff(want, v.Layers); diff != "" {
		t.Fatalf("layers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"03020201"}, v.SelectedUnits); diff != "" {
		t.Fatalf("units (-want +got):\n%s", diff)
	}
	if v.SelectedBarrier != nil || v.FlyTo != nil {
		t.Fatalf("map click during selection should only toggle the unit: %+v", v)
	}
}

func TestMapClickSelectsBarrierAfterSelection(t *testing.T) {
	m := newMachine(t)
	a := NewAdapter(locator())
	for _, ev := range []workflow.Event{
		workflow.MapReady{},
		workflow.SetLayer{Layer: model.LayerHUC8},
		workflow.ToggleUnit{Unit: locator()[model.UnitKey{Layer: model.LayerHUC8, ID: "03020201"}]},
		workflow.Submit{},
	} {
		if _, err := m.Dispatch(ev); err != nil {
			t.Fatalf("%s: %v", ev.Name(), err)
		}
	}
	v, err := a.Handle(m, Intent{Type: IntentMapClick, Lon: ptr(-78.5), Lat: ptr(35.5), Barrier: &workflow.Barrier{ID: "d1"}})
	if err != nil {
		t.Fatal(err)
	}
	if v.SelectedBarrier == nil || v.SelectedBarrier.ID != "d1" || v.SelectedBarrier.Kind != model.BarrierDams {
		t.Fatalf("barrier = %+v", v.SelectedBarrier)
	}
	if !v.AllowFilter || v.AllowUnitSelect || !v.Layers.Barriers || !v.Layers.BarrierHighlight {
		t.Fatalf("view = %+v", v)
	}
	if m.Snapshot().Selection.Len() != 1 {
		t.Fatalf("selection changed by map click in filter step")
	}
}

func TestHandleErrors(t *testing.T) {
	m := newMachine(t)
	a := NewAdapter(locator())
	if _, err := a.Handle(m, Intent{Type: "pan"}); !errors.Is(err, ErrBadIntent) {
		t.Fatalf("unknown type: %v", err)
	}
	if _, err := a.Handle(m, Intent{Type: IntentUnitClick, ID: "x"}); !errors.Is(err, workflow.ErrNoLayer) {
		t.Fatalf("no layer: %v", err)
	}
	if _, err := a.Handle(m, Intent{Type: IntentUnitClick, Layer: "HUC8", ID: "nope"}); !errors.Is(err, gazetteer.ErrUnknownUnit) {
		t.Fatalf("unknown unit: %v", err)
	}
	v, err := a.Handle(m, Intent{Type: IntentLoadError})
	if err != nil || v.LoadError == "" {
		t.Fatalf("load error: %v %+v", err, v)
	}
}

func TestServeIntentPatchesSignals(t *testing.T) {
	m := newMachine(t)
	a := NewAdapter(locator())
	req := httptest.NewRequest(http.MethodPost, "/map/intent", strings.NewReader(`{"intent":{"type":"ready"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	a.ServeIntent(rec, req, m, slog.Default())

	body := rec.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") {
		t.Fatalf("no signal patch in %q", body)
	}
	if !strings.Contains(body, `"panel":"layer-chooser"`) {
		t.Fatalf("panel not updated: %q", body)
	}
	if m.Snapshot().Loading {
		t.Fatalf("machine still loading")
	}
}

func TestStreamPushesEachVersion(t *testing.T) {
	m := newMachine(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Stream(w, r, m, slog.Default())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	lines := bufio.NewReader(resp.Body)

	next := func() string {
		t.Helper()
		for {
			line, err := lines.ReadString('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					t.Fatalf("stream ended")
				}
				t.Fatalf("read: %v", err)
			}
			if strings.HasPrefix(line, "data: signals ") {
				return line
			}
		}
	}

	if first := next(); !strings.Contains(first, `"panel":"loading"`) {
		t.Fatalf("first event = %q", first)
	}
	if _, err := m.Dispatch(workflow.MapReady{}); err != nil {
		t.Fatal(err)
	}
	if second := next(); !strings.Contains(second, `"panel":"layer-chooser"`) {
		t.Fatalf("second event = %q", second)
	}
}

// Package router exposes workflow sessions, unit search and filter schemas
// over a JSON API.
package router

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	mylog "github.com/mohammed-shakir/barrier-prioritizer/internal/logger"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/mapview"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/search"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

const maxBody = 1 << 20

// Units is the gazetteer as seen by the API.
type Units interface {
	search.Source
	mapview.Locator
	Layers() []model.LayerKind
}

type Sessions interface {
	Create(kind model.BarrierKind) *workflow.Machine
	Get(id string) (*workflow.Machine, error)
	Delete(id string) error
}

type Downloads interface {
	DownloadURL(req ranking.Request) string
}

type Deps struct {
	Logger      *slog.Logger
	Units       Units
	Schema      *filters.Schema
	Sessions    Sessions
	Downloads   Downloads
	DefaultKind model.BarrierKind
}

type API struct {
	Deps
	mapAdapter *mapview.Adapter
}

func New(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Schema == nil {
		d.Schema = filters.DefaultSchema()
	}
	if d.DefaultKind == "" {
		d.DefaultKind = model.BarrierDams
	}
	return &API{Deps: d, mapAdapter: mapview.NewAdapter(d.Units)}
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/layers", a.listLayers)
		r.Get("/filters/{kind}", a.filterSchema)
		r.Get("/units/search", a.searchUnits)

		r.Post("/sessions", a.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Delete("/", a.deleteSession)
			r.Put("/layer", a.setLayer)
			r.Post("/units/toggle", a.toggleUnit)
			r.Put("/search-feature", a.setSearchFeature)
			r.Delete("/search-feature", a.clearSearchFeature)
			r.Get("/search", a.sessionSearch)
			r.Post("/submit", a.dispatch(func(*http.Request) (workflow.Event, error) { return workflow.Submit{}, nil }))
			r.Post("/back", a.dispatch(func(*http.Request) (workflow.Event, error) { return workflow.Back{}, nil }))
			r.Put("/filters", a.setFilters)
			r.Get("/filters/tally", a.filterTally)
			r.Put("/barrier", a.selectBarrier)
			r.Delete("/barrier", a.dispatch(func(*http.Request) (workflow.Event, error) { return workflow.CloseDetails{}, nil }))
			r.Post("/map/ready", a.dispatch(func(*http.Request) (workflow.Event, error) { return workflow.MapReady{}, nil }))
			r.Post("/map/error", a.mapError)
			r.Get("/map/stream", a.mapStream)
			r.Post("/map/intent", a.mapIntent)
			r.Get("/download", a.download)
		})
	})
}

type sessionView struct {
	Session workflow.Snapshot `json:"session"`
	Panel   workflow.Panel    `json:"panel"`
}

func viewOf(s workflow.Snapshot) sessionView {
	return sessionView{Session: s, Panel: s.Panel()}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

func (a *API) machine(w http.ResponseWriter, r *http.Request) (*workflow.Machine, bool) {
	m, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return m, true
}

// dispatch serves handlers that only translate a request into one event.
func (a *API) dispatch(build func(*http.Request) (workflow.Event, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := a.machine(w, r)
		if !ok {
			return
		}
		ev, err := build(r)
		if err != nil {
			writeError(w, err)
			return
		}
		a.apply(w, r, m, ev)
	}
}

func (a *API) apply(w http.ResponseWriter, r *http.Request, m *workflow.Machine, ev workflow.Event) {
	s, err := m.Dispatch(ev)
	if err != nil {
		ctx := mylog.WithSession(r.Context(), m.ID())
		a.Logger.DebugContext(ctx, "event rejected", "event", ev.Name(), "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

type layerInfo struct {
	ID          model.LayerKind `json:"id"`
	Label       string          `json:"label"`
	Placeholder string          `json:"placeholder"`
}

type systemInfo struct {
	System model.System `json:"system"`
	Layers []layerInfo  `json:"layers"`
}

func (a *API) listLayers(w http.ResponseWriter, _ *http.Request) {
	loaded := make(map[model.LayerKind]bool)
	for _, l := range a.Units.Layers() {
		loaded[l] = true
	}
	out := make([]systemInfo, 0, len(model.Systems))
	for _, sys := range model.Systems {
		si := systemInfo{System: sys, Layers: []layerInfo{}}
		for _, l := range sys.Layers() {
			if !loaded[l] {
				continue
			}
			ph := "Enter the name or ID of a " + l.Label()
			if l.OpaqueIDs() {
				ph = "Enter the name of a " + l.Label()
			}
			si.Layers = append(si.Layers, layerInfo{ID: l, Label: l.Label(), Placeholder: ph})
		}
		out = append(out, si)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) filterSchema(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseBarrierKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, a.Schema.Dimensions(kind))
}

func (a *API) searchUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		scope search.Scope
		label string
	)
	switch {
	case q.Get("layer") != "":
		l, err := model.ParseLayer(q.Get("layer"))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		scope, label = search.ForLayer(l), string(l)
	case q.Get("system") != "":
		s, err := model.ParseSystem(q.Get("system"))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		scope, label = search.ForSystem(s), string(s)
	default:
		writeError(w, fmt.Errorf("%w: layer or system is required", errBadRequest))
		return
	}
	a.writeSearch(w, q.Get("q"), scope, label)
}

func (a *API) writeSearch(w http.ResponseWriter, query string, scope search.Scope, label string) {
	units := search.Search(a.Units, query, scope)
	observability.ObserveSearch(label, len(units))
	if units == nil {
		units = []model.SummaryUnit{}
	}
	writeJSON(w, http.StatusOK, units)
}

type createRequest struct {
	BarrierKind string `json:"barrierKind"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	kind := a.DefaultKind
	if req.BarrierKind != "" {
		k, err := model.ParseBarrierKind(req.BarrierKind)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		kind = k
	}
	m := a.Sessions.Create(kind)
	ctx := mylog.WithSession(r.Context(), m.ID())
	a.Logger.InfoContext(ctx, "session created", "kind", string(kind))
	w.Header().Set("Location", "/api/v1/sessions/"+m.ID())
	writeJSON(w, http.StatusCreated, viewOf(m.Snapshot()))
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m.Snapshot()))
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type layerRequest struct {
	Layer string `json:"layer"`
}

func (a *API) setLayer(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	var req layerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	layer := model.LayerKind("")
	if strings.TrimSpace(req.Layer) != "" {
		l, err := model.ParseLayer(req.Layer)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", workflow.ErrUnknownLayer, err))
			return
		}
		layer = l
	}
	a.apply(w, r, m, workflow.SetLayer{Layer: layer})
}

type unitRequest struct {
	Layer string `json:"layer"`
	ID    string `json:"id"`
}

// unitFor resolves the unit named by the body within the session's layer
// unless the body names another layer.
func (a *API) unitFor(r *http.Request, m *workflow.Machine) (model.SummaryUnit, error) {
	var req unitRequest
	if err := decode(r, &req); err != nil {
		return model.SummaryUnit{}, err
	}
	if strings.TrimSpace(req.ID) == "" {
		return model.SummaryUnit{}, fmt.Errorf("%w: id is required", errBadRequest)
	}
	layer := m.Snapshot().Layer
	if req.Layer != "" {
		l, err := model.ParseLayer(req.Layer)
		if err != nil {
			return model.SummaryUnit{}, fmt.Errorf("%w: %v", workflow.ErrUnknownLayer, err)
		}
		layer = l
	}
	if layer == "" {
		return model.SummaryUnit{}, workflow.ErrNoLayer
	}
	return a.Units.Unit(layer, req.ID)
}

func (a *API) toggleUnit(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	u, err := a.unitFor(r, m)
	if err != nil {
		writeError(w, err)
		return
	}
	a.apply(w, r, m, workflow.ToggleUnit{Unit: u})
}

func (a *API) setSearchFeature(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	u, err := a.unitFor(r, m)
	if err != nil {
		writeError(w, err)
		return
	}
	a.apply(w, r, m, workflow.SetSearchFeature{Unit: &u})
}

func (a *API) clearSearchFeature(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	a.apply(w, r, m, workflow.SetSearchFeature{})
}

func (a *API) sessionSearch(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	layer := m.Snapshot().Layer
	if layer == "" {
		writeError(w, workflow.ErrNoLayer)
		return
	}
	a.writeSearch(w, r.URL.Query().Get("q"), search.ForLayer(layer), string(layer))
}

func (a *API) setFilters(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	var fs filters.Set
	if err := decode(r, &fs); err != nil {
		writeError(w, err)
		return
	}
	if err := a.Schema.Validate(m.Snapshot().BarrierKind, fs); err != nil {
		writeError(w, err)
		return
	}
	a.apply(w, r, m, workflow.SetFilters{Filters: fs})
}

type tallyView struct {
	Status workflow.Status `json:"status"`
	Tally  *filters.Tally  `json:"tally,omitempty"`
}

func (a *API) filterTally(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	s := m.Snapshot()
	out := tallyView{Status: s.Inventory.Status}
	if t, ok := s.Tally(a.Schema); ok {
		out.Tally = &t
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) selectBarrier(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	var b workflow.Barrier
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(b.ID) == "" {
		writeError(w, fmt.Errorf("%w: id is required", errBadRequest))
		return
	}
	if b.Kind != "" {
		k, err := model.ParseBarrierKind(string(b.Kind))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		b.Kind = k
	}
	a.apply(w, r, m, workflow.SelectBarrier{Barrier: b})
}

type mapErrorRequest struct {
	Message string `json:"message"`
}

func (a *API) mapError(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	var req mapErrorRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	a.Logger.WarnContext(mylog.WithSession(r.Context(), m.ID()), "map failed to load", "message", req.Message)
	a.apply(w, r, m, workflow.MapFailed{Message: req.Message})
}

func (a *API) mapStream(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	mapview.Stream(w, r, m, a.Logger)
}

func (a *API) mapIntent(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	a.mapAdapter.ServeIntent(w, r, m, a.Logger)
}

func (a *API) download(w http.ResponseWriter, r *http.Request) {
	m, ok := a.machine(w, r)
	if !ok {
		return
	}
	s := m.Snapshot()
	if s.Layer == "" {
		writeError(w, workflow.ErrNoLayer)
		return
	}
	if s.Selection.Empty() {
		writeError(w, workflow.ErrEmptySelection)
		return
	}
	http.Redirect(w, r, a.Downloads.DownloadURL(s.Request()), http.StatusFound)
}

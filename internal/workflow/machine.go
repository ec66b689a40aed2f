// Package workflow runs the prioritization workflow of one user session: layer
// and unit selection, filtering, ranked results and barrier details.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/logger"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
)

// Ranker fetches barrier data for a selection.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) (ranking.Table, error)
	Inventory(ctx context.Context, req ranking.Request) (ranking.Table, error)
}

// Transition describes an applied event.
type Transition struct {
	Session     string            `json:"session"`
	Event       string            `json:"event"`
	BarrierKind model.BarrierKind `json:"barrier_kind"`
	Step        Step              `json:"step"`
	Layer       model.LayerKind   `json:"layer,omitempty"`
	Units       int               `json:"units"`
	Filters     int               `json:"filters"`
	Version     uint64            `json:"version"`
	At          time.Time         `json:"ts"`
}

type Observer interface {
	Observe(Transition)
}

type Option func(*Machine)

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// WithInventory controls whether entering the filter step fetches the
// unfiltered inventory of the selection.
func WithInventory(on bool) Option {
	return func(m *Machine) { m.inventory = on }
}

// WithMapLoading sets whether the session waits for a MapReady event.
func WithMapLoading(on bool) Option {
	return func(m *Machine) { m.state.Loading = on }
}

// WithLoadError starts the session in the load error state.
func WithLoadError(msg string) Option {
	return func(m *Machine) { m.state.LoadError = msg }
}

// Machine serializes all events of one session. It is the only writer of the
// session state; readers get Snapshots.
type Machine struct {
	ranker    Ranker
	logger    *slog.Logger
	observer  Observer
	inventory bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   Snapshot
	seq     uint64
	cancels map[target]context.CancelFunc
	subs    map[chan struct{}]struct{}
	closed  bool
}

func New(id string, kind model.BarrierKind, ranker Ranker, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		ranker:    ranker,
		logger:    slog.Default(),
		inventory: true,
		ctx:       ctx,
		cancel:    cancel,
		cancels:   make(map[target]context.CancelFunc),
		subs:      make(map[chan struct{}]struct{}),
		state: Snapshot{
			Session:     id,
			BarrierKind: kind,
			Step:        StepSelect,
			Loading:     true,
			Inventory:   Fetch{Status: StatusIdle},
			Results:     Fetch{Status: StatusIdle},
		},
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With("session", id)
	return m
}

func (m *Machine) ID() string { return m.state.Session }

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Dispatch applies ev to the current state and returns the resulting snapshot.
// Events that are valid but have no effect return the unchanged snapshot and
// a nil error.
func (m *Machine) Dispatch(ev Event) (Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	err := ev.apply(m)
	outcome := "applied"
	switch {
	case errors.Is(err, errIgnored):
		outcome, err = "ignored", nil
	case errors.Is(err, errStale):
		outcome, err = "stale", nil
	case err != nil:
		outcome = "rejected"
	default:
		m.state.Version++
	}
	snap := m.state.clone()
	var subs []chan struct{}
	if outcome == "applied" {
		subs = make([]chan struct{}, 0, len(m.subs))
		for ch := range m.subs {
			subs = append(subs, ch)
		}
	}
	m.mu.Unlock()

	observability.IncTransition(ev.Name(), outcome)
	switch outcome {
	case "applied":
		m.logger.Debug("workflow transition", "event", ev.Name(), "step", snap.Step, "version", snap.Version)
		for _, ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if m.observer != nil {
			m.observer.Observe(transition(ev, snap))
		}
	case "stale":
		if d, ok := ev.(fetchDone); ok {
			observability.IncStaleResponse(d.target.String())
			m.logger.Debug("discarded stale response", "target", d.target.String(), "generation", d.gen)
		}
	case "rejected":
		m.logger.Debug("workflow event rejected", "event", ev.Name(), "err", err)
	}
	return snap, err
}

func transition(ev Event, s Snapshot) Transition {
	return Transition{
		Session:     s.Session,
		Event:       ev.Name(),
		BarrierKind: s.BarrierKind,
		Step:        s.Step,
		Layer:       s.Layer,
		Units:       s.Selection.Len(),
		Filters:     len(s.Filters.Active()),
		Version:     s.Version,
		At:          time.Now().UTC(),
	}
}

// Subscribe returns a channel that receives a signal after each applied event.
// Signals coalesce; readers call Snapshot for the state. The channel is closed
// by Close.
func (m *Machine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	m.subs[ch] = struct{}{}
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
	}
}

// Close cancels outstanding fetches, ends subscriptions and waits for fetch
// goroutines to return.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancel()
	for ch := range m.subs {
		close(ch)
		delete(m.subs, ch)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Machine) fetch(t target) *Fetch {
	if t == targetResults {
		return &m.state.Results
	}
	return &m.state.Inventory
}

// retire cancels t's outstanding request and forgets its outcome. Called with mu held.
func (m *Machine) retire(t target) {
	if cancel := m.cancels[t]; cancel != nil {
		cancel()
	}
	m.cancels[t] = nil
	*m.fetch(t) = Fetch{Status: StatusIdle}
}

// start issues a fetch for t under a new generation. Called with mu held.
func (m *Machine) start(t target) {
	m.retire(t)
	m.seq++
	gen := m.seq
	req := m.state.Request()
	if t == targetInventory {
		req.Filters = filters.Set{}
	}
	*m.fetch(t) = Fetch{
		Status:     StatusLoading,
		Query:      ranking.QueryParams(req.UnitIDs, req.Filters),
		Generation: gen,
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[t] = cancel
	ctx = logger.WithRequestID(ctx, "")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		var (
			tbl ranking.Table
			err error
		)
		if t == targetResults {
			tbl, err = m.ranker.Rank(ctx, req)
		} else {
			tbl, err = m.ranker.Inventory(ctx, req)
		}
		if err != nil && ctx.Err() == nil {
			m.logger.WarnContext(ctx, "fetch failed", "target", t.String(), "err", err)
		}
		_, _ = m.Dispatch(fetchDone{target: t, gen: gen, table: tbl, err: err})
	}()
}

// Tally summarizes the inventory against the current filters for the filter panel.
func (s Snapshot) Tally(schema *filters.Schema) (filters.Tally, bool) {
	if s.Inventory.Status != StatusReady || s.Inventory.Table == nil {
		return filters.Tally{}, false
	}
	return filters.Summarize(schema.Dimensions(s.BarrierKind), s.Inventory.Table.Rows, s.Filters), true
}


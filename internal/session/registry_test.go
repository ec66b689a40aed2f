package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

type nopRanker struct{}

func (nopRanker) Rank(context.Context, ranking.Request) (ranking.Table, error) {
	return ranking.Table{}, nil
}

func (nopRanker) Inventory(context.Context, ranking.Request) (ranking.Table, error) {
	return ranking.Table{}, nil
}

func newRegistry(t *testing.T, size int) *Registry {
	t.Helper()
	r, err := NewRegistry(size, func(id string, kind model.BarrierKind) *workflow.Machine {
		return workflow.New(id, kind, nopRanker{})
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	r.newID = func() string { n++; return fmt.Sprintf("s%d", n) }
	t.Cleanup(r.Close)
	return r
}

func TestCreateGetDelete(t *testing.T) {
	r := newRegistry(t, 4)
	m := r.Create(model.BarrierSmallBarriers)
	got, err := r.Get(m.ID())
	if err != nil || got != m {
		t.Fatalf("get: %v", err)
	}
	if got.Snapshot().BarrierKind != model.BarrierSmallBarriers {
		t.Fatalf("kind = %s", got.Snapshot().BarrierKind)
	}
	if err := r.Delete(m.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(m.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if _, err := m.Dispatch(workflow.MapReady{}); !errors.Is(err, workflow.ErrClosed) {
		t.Fatalf("deleted machine still open: %v", err)
	}
	if err := r.Delete(m.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestEvictionClosesLeastRecentlyUsed(t *testing.T) {
	r := newRegistry(t, 2)
	a := r.Create(model.BarrierDams)
	b := r.Create(model.BarrierDams)
	if _, err := r.Get(a.ID()); err != nil { // a is now most recent
		t.Fatal(err)
	}
	r.Create(model.BarrierDams)

	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
	if _, err := r.Get(b.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("b should be evicted: %v", err)
	}
	if _, err := b.Dispatch(workflow.MapReady{}); !errors.Is(err, workflow.ErrClosed) {
		t.Fatalf("evicted machine not closed: %v", err)
	}
	if _, err := a.Dispatch(workflow.MapReady{}); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
}

func TestEvictionLogsEvictedSession(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRegistry(1, func(id string, kind model.BarrierKind) *workflow.Machine {
		return workflow.New(id, kind, nopRanker{})
	}, slog.New(slog.NewTextHandler(&buf, nil)))
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	r.newID = func() string { n++; return fmt.Sprintf("s%d", n) }
	t.Cleanup(r.Close)

	r.Create(model.BarrierDams)
	r.Create(model.BarrierDams)

	line := buf.String()
	if !strings.Contains(line, "session evicted to make room") || !strings.Contains(line, "session=s1 created=s2") {
		t.Fatalf("eviction log = %q", line)
	}
}

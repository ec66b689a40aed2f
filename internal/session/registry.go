// Package session keeps the workflow machines of live browser sessions.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

var ErrNotFound = errors.New("session not found")

// Factory builds the machine for a new session.
type Factory func(id string, kind model.BarrierKind) *workflow.Machine

// Registry holds at most size sessions. The least recently used session is
// closed when a new one would exceed the bound.
type Registry struct {
	cache  *lru.Cache[string, *workflow.Machine]
	build  Factory
	logger *slog.Logger
	newID  func() string
}

func NewRegistry(size int, build Factory, logger *slog.Logger) (*Registry, error) {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{build: build, logger: logger, newID: uuid.NewString}
	c, err := lru.NewWithEvict(size, func(id string, m *workflow.Machine) {
		m.Close()
		r.logger.Debug("session closed", "session", id)
	})
	if err != nil {
		return nil, fmt.Errorf("session lru: %w", err)
	}
	r.cache = c
	return r, nil
}

func (r *Registry) Create(kind model.BarrierKind) *workflow.Machine {
	id := r.newID()
	m := r.build(id, kind)
	victim, _, _ := r.cache.GetOldest()
	if evicted := r.cache.Add(id, m); evicted {
		observability.IncSessionEvicted()
		r.logger.Info("session evicted to make room", "session", victim, "created", id)
	}
	observability.SetActiveSessions(r.cache.Len())
	return m
}

func (r *Registry) Get(id string) (*workflow.Machine, error) {
	m, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(id string) error {
	if !r.cache.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	observability.SetActiveSessions(r.cache.Len())
	return nil
}

func (r *Registry) Len() int { return r.cache.Len() }

// Close ends every session.
func (r *Registry) Close() {
	r.cache.Purge()
	observability.SetActiveSessions(0)
}

package mapview

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

// Signals is the payload patched into the page on every change.
type Signals struct {
	Map   View           `json:"map"`
	Panel workflow.Panel `json:"panel"`
}

func signalsOf(s workflow.Snapshot) Signals {
	return Signals{Map: Project(s), Panel: s.Panel()}
}

// Source is a session that can be watched.
type Source interface {
	Snapshot() workflow.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Stream sends the current projection and then a new one for each version
// until the client leaves or the session closes.
func Stream(w http.ResponseWriter, r *http.Request, src Source, logger *slog.Logger) {
	updates, stop := src.Subscribe()
	defer stop()

	sse := datastar.NewSSE(w, r)
	sent := ^uint64(0)
	send := func() bool {
		s := src.Snapshot()
		if s.Version == sent {
			return true
		}
		if err := sse.MarshalAndPatchSignals(signalsOf(s)); err != nil {
			logger.Debug("map stream closed", "err", err)
			return false
		}
		sent = s.Version
		return true
	}
	if !send() {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok || !send() {
				return
			}
		}
	}
}

type intentSignals struct {
	Intent Intent `json:"intent"`
}

// ServeIntent reads an intent from the request's signals, applies it and
// answers with the new projection. Rejected intents are reported to the
// browser console and leave the projection unchanged.
func (a *Adapter) ServeIntent(w http.ResponseWriter, r *http.Request, d Dispatcher, logger *slog.Logger) {
	var in intentSignals
	if err := datastar.ReadSignals(r, &in); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.ConsoleError(err)
		return
	}

	_, err := a.Handle(d, in.Intent)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		logger.Debug("map intent rejected", "type", in.Intent.Type, "err", err)
		_ = sse.ConsoleError(err)
	}
	_ = sse.MarshalAndPatchSignals(signalsOf(d.Snapshot()))
}

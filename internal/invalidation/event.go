// Package invalidation describes ranking-data republish events. Consuming one
// retires every cached ranking response of the affected barrier kind.
package invalidation

import (
	"fmt"
	"time"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

type Event struct {
	Version     int               `json:"version"`
	BarrierKind model.BarrierKind `json:"barrier_kind"`
	// DatasetVersion is the publisher's monotonically increasing data version.
	// Zero means unversioned; the cache generation is then bumped.
	DatasetVersion uint64    `json:"dataset_version,omitempty"`
	TS             time.Time `json:"ts"`
	Source         string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if _, err := model.ParseBarrierKind(string(e.BarrierKind)); err != nil {
		return fmt.Errorf("barrier_kind: %w", err)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Kind returns the canonical barrier kind. Call after Validate.
func (e Event) Kind() model.BarrierKind {
	k, _ := model.ParseBarrierKind(string(e.BarrierKind))
	return k
}

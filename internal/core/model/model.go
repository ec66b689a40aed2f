// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"
)

// LayerKind is a summary-unit layer. The set is closed.
type LayerKind string

const (
	LayerState  LayerKind = "State"
	LayerCounty LayerKind = "County"
	LayerHUC6   LayerKind = "HUC6"
	LayerHUC8   LayerKind = "HUC8"
	LayerHUC12  LayerKind = "HUC12"
	LayerECO3   LayerKind = "ECO3"
	LayerECO4   LayerKind = "ECO4"
)

// Layers lists every layer in display order.
var Layers = []LayerKind{LayerState, LayerCounty, LayerHUC6, LayerHUC8, LayerHUC12, LayerECO3, LayerECO4}

var layerLabels = map[LayerKind]string{
	LayerState:  "State",
	LayerCounty: "County",
	LayerHUC6:   "Basin (HUC6)",
	LayerHUC8:   "Subbasin (HUC8)",
	LayerHUC12:  "Subwatershed (HUC12)",
	LayerECO3:   "Level 3 Ecoregion",
	LayerECO4:   "Level 4 Ecoregion",
}

// ParseLayer accepts a layer name, ignoring case.
func ParseLayer(s string) (LayerKind, error) {
	s = strings.TrimSpace(s)
	for _, l := range Layers {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown layer %q", s)
}

func (l LayerKind) Valid() bool {
	_, ok := layerLabels[l]
	return ok
}

func (l LayerKind) Label() string {
	return layerLabels[l]
}

// OpaqueIDs reports whether identifiers of this layer carry no meaning for users
// (FIPS-style codes). Search never matches against them.
func (l LayerKind) OpaqueIDs() bool {
	return l == LayerState || l == LayerCounty
}

func (l LayerKind) System() System {
	for _, s := range Systems {
		for _, m := range s.Layers() {
			if m == l {
				return s
			}
		}
	}
	return ""
}

// System groups layers that share a hierarchy.
type System string

const (
	SystemADM System = "ADM"
	SystemHUC System = "HUC"
	SystemECO System = "ECO"
)

var Systems = []System{SystemADM, SystemHUC, SystemECO}

func (s System) Layers() []LayerKind {
	switch s {
	case SystemADM:
		return []LayerKind{LayerState, LayerCounty}
	case SystemHUC:
		return []LayerKind{LayerHUC6, LayerHUC8, LayerHUC12}
	case SystemECO:
		return []LayerKind{LayerECO3, LayerECO4}
	}
	return nil
}

func ParseSystem(s string) (System, error) {
	s = strings.TrimSpace(s)
	for _, sys := range Systems {
		if strings.EqualFold(s, string(sys)) {
			return sys, nil
		}
	}
	return "", fmt.Errorf("unknown system %q", s)
}

// BarrierKind selects the ranking endpoint and filter schema.
type BarrierKind string

const (
	BarrierDams          BarrierKind = "dams"
	BarrierSmallBarriers BarrierKind = "barriers"
)

var BarrierKinds = []BarrierKind{BarrierDams, BarrierSmallBarriers}

func ParseBarrierKind(s string) (BarrierKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dams":
		return BarrierDams, nil
	case "barriers", "small_barriers", "smallbarriers":
		return BarrierSmallBarriers, nil
	}
	return "", fmt.Errorf("unknown barrier kind %q", s)
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid,omitempty"`
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

// UnitKey is the identity of a summary unit.
type UnitKey struct {
	Layer LayerKind
	ID    string
}

func (k UnitKey) String() string {
	return string(k.Layer) + ":" + k.ID
}

// SummaryUnit is a named geographic area within a layer.
type SummaryUnit struct {
	Layer  LayerKind          `json:"layer"`
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Counts map[string]float64 `json:"counts,omitempty"`
	BBox   *BBox              `json:"bbox,omitempty"`
}

func (u SummaryUnit) Key() UnitKey {
	return UnitKey{Layer: u.Layer, ID: u.ID}
}

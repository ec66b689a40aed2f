// Package h3mapper covers geographic extents with H3 cells.
package h3mapper

import (
	"errors"
	"fmt"
	"slices"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Res() int { return m.res }

// CellsForBBox returns the cells whose centers fall inside bb, sorted and unique.
func (m *Mapper) CellsForBBox(bb model.BBox) ([]h3.Cell, error) {
	// rectangular loop, lon/lat in EPSG:4326 degrees
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	if bb.X1 == bb.X2 || bb.Y1 == bb.Y2 {
		return nil, nil
	}
	return polyfillOne(outer, m.res)
}

func (m *Mapper) CellAt(lon, lat float64) (h3.Cell, error) {
	c, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), m.res)
	if err != nil {
		return 0, fmt.Errorf("h3 cell for %f,%f: %w", lon, lat, err)
	}
	return c, nil
}

// Cover returns a superset of the cells touching bb: the polyfill plus the
// cells of its corners and center, widened by one ring.
func (m *Mapper) Cover(bb model.BBox) ([]h3.Cell, error) {
	inner, err := m.CellsForBBox(bb)
	if err != nil {
		return nil, err
	}
	seed := slices.Clone(inner)
	for _, p := range [][2]float64{
		{bb.X1, bb.Y1}, {bb.X2, bb.Y1}, {bb.X2, bb.Y2}, {bb.X1, bb.Y2},
		{(bb.X1 + bb.X2) / 2, (bb.Y1 + bb.Y2) / 2},
	} {
		c, err := m.CellAt(p[0], p[1])
		if err != nil {
			return nil, err
		}
		seed = append(seed, c)
	}

	seen := make(map[h3.Cell]struct{}, len(seed)*7)
	for _, c := range seed {
		disk, err := h3.GridDisk(c, 1)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, d := range disk {
			seen[d] = struct{}{}
		}
	}
	out := make([]h3.Cell, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, res int) ([]h3.Cell, error) {
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 vertices")
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	slices.Sort(cells)
	return slices.Compact(cells), nil
}

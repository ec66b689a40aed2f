// Package gazetteer loads the summary units of every layer and answers lookups
// by identity, by layer and by map position.
package gazetteer

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	h3mapper "github.com/mohammed-shakir/barrier-prioritizer/internal/mapper/h3"
)

var ErrUnknownUnit = errors.New("gazetteer: unknown unit")

const DefaultH3Res = 5

type options struct {
	res int
}

type Option func(*options)

// WithH3Res sets the resolution of the point lookup index.
func WithH3Res(res int) Option {
	return func(o *options) { o.res = res }
}

// Index is read-only once built and safe for concurrent use.
type Index struct {
	layers map[model.LayerKind][]model.SummaryUnit
	byKey  map[model.UnitKey]int
	shapes map[model.UnitKey]orb.Geometry
	cells  map[model.LayerKind]map[h3.Cell][]int
	mapper *h3mapper.Mapper
}

func Load(path string, opts ...Option) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer %s: %w", path, err)
	}
	ix, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("gazetteer %s: %w", path, err)
	}
	return ix, nil
}

// Parse builds an index from a GeoJSON FeatureCollection. Each feature carries
// "layer", "id" and "name" properties; other numeric properties become counts.
func Parse(data []byte, opts ...Option) (*Index, error) {
	o := options{res: DefaultH3Res}
	for _, fn := range opts {
		fn(&o)
	}
	m, err := h3mapper.New(o.res)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	ix := &Index{
		layers: make(map[model.LayerKind][]model.SummaryUnit),
		byKey:  make(map[model.UnitKey]int, len(fc.Features)),
		shapes: make(map[model.UnitKey]orb.Geometry, len(fc.Features)),
		cells:  make(map[model.LayerKind]map[h3.Cell][]int),
		mapper: m,
	}
	for i, f := range fc.Features {
		u, err := unitFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		key := u.Key()
		if _, dup := ix.byKey[key]; dup {
			return nil, fmt.Errorf("feature %d: duplicate unit %s", i, key)
		}
		pos := len(ix.layers[u.Layer])
		ix.layers[u.Layer] = append(ix.layers[u.Layer], u)
		ix.byKey[key] = pos

		if f.Geometry == nil || u.BBox == nil {
			continue
		}
		ix.shapes[key] = f.Geometry
		if err := ix.indexCells(u, pos); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return ix, nil
}

func (ix *Index) indexCells(u model.SummaryUnit, pos int) error {
	cover, err := ix.mapper.Cover(*u.BBox)
	if err != nil {
		return err
	}
	byCell := ix.cells[u.Layer]
	if byCell == nil {
		byCell = make(map[h3.Cell][]int)
		ix.cells[u.Layer] = byCell
	}
	for _, c := range cover {
		byCell[c] = append(byCell[c], pos)
	}
	return nil
}

func unitFromFeature(f *geojson.Feature) (model.SummaryUnit, error) {
	layer, err := model.ParseLayer(f.Properties.MustString("layer", ""))
	if err != nil {
		return model.SummaryUnit{}, err
	}
	id := idString(f.Properties["id"])
	if id == "" {
		id = idString(f.ID)
	}
	if id == "" {
		return model.SummaryUnit{}, errors.New("missing id")
	}
	u := model.SummaryUnit{
		Layer: layer,
		ID:    id,
		Name:  f.Properties.MustString("name", ""),
	}
	for k, v := range f.Properties {
		switch k {
		case "layer", "id", "name":
			continue
		}
		if n, ok := v.(float64); ok {
			if u.Counts == nil {
				u.Counts = make(map[string]float64)
			}
			u.Counts[k] = n
		}
	}
	if f.Geometry != nil {
		b := f.Geometry.Bound()
		u.BBox = &model.BBox{X1: b.Min.X(), Y1: b.Min.Y(), X2: b.Max.X(), Y2: b.Max.Y(), SRID: "EPSG:4326"}
	}
	return u, nil
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	return ""
}

// Lookup returns the units of layer in storage order. The slice is a copy.
func (ix *Index) Lookup(layer model.LayerKind) []model.SummaryUnit {
	return slices.Clone(ix.layers[layer])
}

func (ix *Index) Unit(layer model.LayerKind, id string) (model.SummaryUnit, error) {
	pos, ok := ix.byKey[model.UnitKey{Layer: layer, ID: id}]
	if !ok {
		return model.SummaryUnit{}, fmt.Errorf("%w: %s:%s", ErrUnknownUnit, layer, id)
	}
	return ix.layers[layer][pos], nil
}

// UnitAt returns the unit of layer whose geometry contains the point.
func (ix *Index) UnitAt(layer model.LayerKind, lon, lat float64) (model.SummaryUnit, bool) {
	byCell := ix.cells[layer]
	if byCell == nil {
		return model.SummaryUnit{}, false
	}
	c, err := ix.mapper.CellAt(lon, lat)
	if err != nil {
		return model.SummaryUnit{}, false
	}
	pt := orb.Point{lon, lat}
	for _, pos := range byCell[c] {
		u := ix.layers[layer][pos]
		g := ix.shapes[u.Key()]
		if !g.Bound().Contains(pt) {
			continue
		}
		if contains(g, pt) {
			return u, true
		}
	}
	return model.SummaryUnit{}, false
}

func contains(g orb.Geometry, pt orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	case orb.Bound:
		return g.Contains(pt)
	}
	return false
}

func (ix *Index) Layers() []model.LayerKind {
	var out []model.LayerKind
	for _, l := range model.Layers {
		if len(ix.layers[l]) > 0 {
			out = append(out, l)
		}
	}
	return out
}

func (ix *Index) Len() int {
	return len(ix.byKey)
}

package gazetteer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
)

const fixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"layer": "HUC8", "id": "03020201", "name": "Upper Neuse", "dams": 120, "barriers": 40},
     "geometry": {"type": "Polygon", "coordinates": [[[-79,35],[-78,35],[-78,36],[-79,36],[-79,35]]]}},
    {"type": "Feature", "properties": {"layer": "HUC8", "id": "03020202", "name": "Middle Neuse"},
     "geometry": {"type": "Polygon", "coordinates": [[[-78,35],[-77,35],[-77,36],[-78,36],[-78,35]]]}},
    {"type": "Feature", "properties": {"layer": "State", "id": 37, "name": "North Carolina"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-84,34],[-75,34],[-75,37],[-84,37],[-84,34]]]]}},
    {"type": "Feature", "properties": {"layer": "ECO3", "id": "45", "name": "Piedmont"}, "geometry": null}
  ]
}`

func TestParse_LookupInStorageOrder(t *testing.T) {
	ix, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ix.Len() != 4 {
		t.Fatalf("Len=%d", ix.Len())
	}
	got := ix.Lookup(model.LayerHUC8)
	if len(got) != 2 || got[0].ID != "03020201" || got[1].ID != "03020202" {
		t.Fatalf("lookup order: %+v", got)
	}
	if got[0].Counts["dams"] != 120 || got[0].Counts["barriers"] != 40 {
		t.Fatalf("counts: %+v", got[0].Counts)
	}
	want := &model.BBox{X1: -79, Y1: 35, X2: -78, Y2: 36, SRID: "EPSG:4326"}
	if diff := cmp.Diff(want, got[0].BBox); diff != "" {
		t.Fatalf("bbox (-want +got):\n%s", diff)
	}

	got[0].Name = "mutated"
	if ix.Lookup(model.LayerHUC8)[0].Name != "Upper Neuse" {
		t.Fatalf("index mutated through Lookup")
	}

	if diff := cmp.Diff([]model.LayerKind{model.LayerState, model.LayerHUC8, model.LayerECO3}, ix.Layers()); diff != "" {
		t.Fatalf("layers (-want +got):\n%s", diff)
	}
}

func TestUnit_NumericIDNormalized(t *testing.T) {
	ix, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	u, err := ix.Unit(model.LayerState, "37")
	if err != nil {
		t.Fatalf("Unit: %v", err)
	}
	if u.Name != "North Carolina" {
		t.Fatalf("got %+v", u)
	}
	if _, err := ix.Unit(model.LayerState, "51"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("want ErrUnknownUnit, got %v", err)
	}
}

func TestUnitAt(t *testing.T) {
	ix, err := Parse([]byte(fixture), WithH3Res(5))
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		layer    model.LayerKind
		lon, lat float64
		want     string
	}{
		{model.LayerHUC8, -78.5, 35.5, "03020201"},
		{model.LayerHUC8, -77.5, 35.5, "03020202"},
		{model.LayerState, -80, 35.5, "37"},
	}
	for _, tc := range cases {
		u, ok := ix.UnitAt(tc.layer, tc.lon, tc.lat)
		if !ok || u.ID != tc.want {
			t.Fatalf("UnitAt(%s, %v, %v) = %+v, %v; want %s", tc.layer, tc.lon, tc.lat, u, ok, tc.want)
		}
	}
	if _, ok := ix.UnitAt(model.LayerHUC8, -70, 40); ok {
		t.Fatalf("point outside every unit matched")
	}
	if _, ok := ix.UnitAt(model.LayerECO3, -78.5, 35.5); ok {
		t.Fatalf("unit without geometry matched")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown layer": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"layer":"HUC10","id":"1"},"geometry":null}]}`,
		"missing id":    `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"layer":"HUC8"},"geometry":null}]}`,
		"duplicate": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"layer":"HUC8","id":"1"},"geometry":null},
			{"type":"Feature","properties":{"layer":"HUC8","id":"1"},"geometry":null}]}`,
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.geojson")
	if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.geojson")); err == nil {
		t.Fatalf("missing file must fail")
	}
}

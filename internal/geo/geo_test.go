package geo

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

const boundaryGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"ProjectID": "SAU-NSF-4", "SilvSys": "CC", "NumCluster": 12, "Area_ha": 8.41, "LAT": 46.5, "LON": -79.5},
      "geometry": {"type": "Polygon", "coordinates": [[[-80,46],[-79,46],[-79,47],[-80,47],[-80,46]]]}
    },
    {
      "type": "Feature",
      "properties": {"projectid": "TIM-Gil01", "SILVSYS": "SH"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-82,48],[-81,48],[-81,49],[-82,49],[-82,48]]]]}
    }
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	bs, err := ReadGeoJSON(strings.NewReader(boundaryGeoJSON), Options{})
	if err != nil {
		t.Fatalf("ReadGeoJSON() error = %v", err)
	}
	if len(bs) != 2 {
		t.Fatalf("len = %d, want 2", len(bs))
	}

	first := bs[0]
	if first.ProjectID != "SAU-NSF-4" {
		t.Errorf("ProjectID = %q", first.ProjectID)
	}
	if first.SilvSys() != core.Clearcut {
		t.Errorf("SilvSys() = %q, want CC", first.SilvSys())
	}
	if first.NumClusters() != 12 || first.Attr(core.AttrNumCluster) != "12" {
		t.Errorf("NUMCLUSTER = %q, want 12", first.Attr(core.AttrNumCluster))
	}
	if first.Attr(core.AttrAreaHa) != "8.41" {
		t.Errorf("AREA_HA = %q, want 8.41", first.Attr(core.AttrAreaHa))
	}
	if first.Lat != 46.5 || first.Lon != -79.5 {
		t.Errorf("centroid = %v, %v, want LAT/LON attributes", first.Lat, first.Lon)
	}
	if !first.Contains(orb.Point{-79.5, 46.5}) {
		t.Error("Contains() = false inside the polygon")
	}

	second := bs[1]
	if second.ProjectID != "TIM-Gil01" {
		t.Errorf("ProjectID from lower-case attribute = %q", second.ProjectID)
	}
	if math.Abs(second.Lat-48.5) > 1e-9 || math.Abs(second.Lon+81.5) > 1e-9 {
		t.Errorf("computed centroid = %v, %v, want 48.5, -81.5", second.Lat, second.Lon)
	}
	if _, ok := second.Geometry.(orb.MultiPolygon); !ok {
		t.Errorf("Geometry = %T, want orb.MultiPolygon", second.Geometry)
	}
}

func TestReadGeoJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
	}{
		{"not json", "nope", Options{}, core.ErrUnsupportedLayer},
		{
			name:    "point geometry",
			input:   `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"ProjectID":"A"},"geometry":{"type":"Point","coordinates":[-79,46]}}]}`,
			wantErr: core.ErrUnsupportedLayer,
		},
		{
			name:    "missing id attribute",
			input:   boundaryGeoJSON,
			opts:    Options{IDField: "Block"},
			wantErr: core.ErrMissingProjectID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadGeoJSON(strings.NewReader(tt.input), tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadGeoJSON() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadBoundaries_UnknownExtension(t *testing.T) {
	if _, err := LoadBoundaries("projects.kml", Options{}); !errors.Is(err, core.ErrUnsupportedLayer) {
		t.Errorf("LoadBoundaries(.kml) error = %v, want ErrUnsupportedLayer", err)
	}
}

func TestLoadBoundaries_GeoJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.geojson")
	if err := os.WriteFile(path, []byte(boundaryGeoJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	bs, err := LoadBoundaries(path, Options{})
	if err != nil {
		t.Fatalf("LoadBoundaries() error = %v", err)
	}
	if len(bs) != 2 {
		t.Errorf("len = %d, want 2", len(bs))
	}
}

func writeShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("shp.Create() error = %v", err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.StringField("ProjectID", 20),
		shp.StringField("SILVSYS", 2),
		shp.NumberField("NUMCLUSTER", 4),
	}); err != nil {
		t.Fatalf("SetFields() error = %v", err)
	}

	// Clockwise outer ring with a counter-clockwise hole.
	outer := []shp.Point{{X: -80, Y: 46}, {X: -80, Y: 47}, {X: -79, Y: 47}, {X: -79, Y: 46}, {X: -80, Y: 46}}
	hole := []shp.Point{{X: -79.6, Y: 46.4}, {X: -79.4, Y: 46.4}, {X: -79.4, Y: 46.6}, {X: -79.6, Y: 46.6}, {X: -79.6, Y: 46.4}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{outer, hole}))

	n := w.Write(&poly)
	w.WriteAttribute(int(n), 0, "P1")
	w.WriteAttribute(int(n), 1, "SH")
	w.WriteAttribute(int(n), 2, 6)
}

func TestLoadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.shp")
	writeShapefile(t, path)

	bs, err := LoadBoundaries(path, Options{})
	if err != nil {
		t.Fatalf("LoadBoundaries() error = %v", err)
	}
	if len(bs) != 1 {
		t.Fatalf("len = %d, want 1", len(bs))
	}

	b := bs[0]
	if b.ProjectID != "P1" || b.SilvSys() != core.Shelterwood || b.NumClusters() != 6 {
		t.Errorf("boundary = %q %q %d", b.ProjectID, b.SilvSys(), b.NumClusters())
	}
	poly, ok := b.Geometry.(orb.Polygon)
	if !ok || len(poly) != 2 {
		t.Fatalf("Geometry = %T with %d rings, want polygon with a hole", b.Geometry, len(poly))
	}
	if !b.Contains(orb.Point{-79.9, 46.9}) {
		t.Error("Contains() = false inside the outer ring")
	}
	if b.Contains(orb.Point{-79.5, 46.5}) {
		t.Error("Contains() = true inside the hole")
	}
}

func TestPolygonGeometry_MultipleOuterRings(t *testing.T) {
	a := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	b := []shp.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5}}
	g := polygonGeometry([]int32{0, 5}, append(a, b...))
	mp, ok := g.(orb.MultiPolygon)
	if !ok || len(mp) != 2 {
		t.Errorf("polygonGeometry() = %T, want MultiPolygon of 2", g)
	}
	if polygonGeometry(nil, nil) != nil {
		t.Error("polygonGeometry(empty) != nil")
	}
}

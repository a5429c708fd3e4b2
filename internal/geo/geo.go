// Package geo loads project boundary layers into core.ProjectBoundary values.
//
// Two formats are supported: GeoJSON feature collections (.geojson, .json)
// and ESRI shapefiles (.shp with its .dbf). Coordinates must already be
// WGS84 longitude/latitude; a layer in another projection fails the
// centroid envelope check in the resolver.
package geo

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultIDField is the attribute holding the project id.
const DefaultIDField = "ProjectID"

// Options controls how a layer is read.
type Options struct {
	IDField string // attribute holding the project id, matched case-insensitively
}

func (o Options) idField() string {
	if strings.TrimSpace(o.IDField) == "" {
		return DefaultIDField
	}
	return o.IDField
}

// LoadBoundaries reads a boundary layer, choosing the reader by extension.
func LoadBoundaries(path string, opts Options) ([]core.ProjectBoundary, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return LoadGeoJSON(path, opts)
	case ".shp":
		return LoadShapefile(path, opts)
	default:
		return nil, fmt.Errorf("%w: %s is not a .geojson or .shp file", core.ErrUnsupportedLayer, path)
	}
}

// builder turns one feature (geometry plus attribute row) into a boundary.
type builder struct {
	idKey string
	n     int
	hasID bool
}

func newBuilder(opts Options) *builder {
	return &builder{idKey: strings.ToUpper(opts.idField())}
}

func (b *builder) build(g orb.Geometry, attrs map[string]string) (core.ProjectBoundary, error) {
	b.n++

	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	case nil:
		return core.ProjectBoundary{}, fmt.Errorf("%w: feature %d has no geometry", core.ErrUnsupportedLayer, b.n)
	default:
		return core.ProjectBoundary{}, fmt.Errorf("%w: feature %d is a %s, not a polygon",
			core.ErrUnsupportedLayer, b.n, g.GeoJSONType())
	}

	id, ok := attrs[b.idKey]
	if ok {
		b.hasID = true
	}

	pb := core.ProjectBoundary{
		ProjectID: strings.TrimSpace(id),
		Geometry:  g,
		Attrs:     attrs,
	}

	lat, latOK := parseAttr(attrs[core.AttrLat])
	lon, lonOK := parseAttr(attrs[core.AttrLon])
	if latOK && lonOK {
		pb.Lat, pb.Lon = lat, lon
	} else {
		c, _ := planar.CentroidArea(g)
		pb.Lon, pb.Lat = c.Lon(), c.Lat()
	}
	return pb, nil
}

// finish reports a layer without the id attribute at all.
func (b *builder) finish(out []core.ProjectBoundary) ([]core.ProjectBoundary, error) {
	if len(out) > 0 && !b.hasID {
		return nil, fmt.Errorf("%w: layer has no %s attribute", core.ErrMissingProjectID, b.idKey)
	}
	return out, nil
}

func parseAttr(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// attrString formats a decoded attribute value. Integral numbers lose their
// decimal part so "NUMCLUSTER": 12 reads back as "12".
func attrString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

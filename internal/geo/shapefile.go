package geo

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// LoadShapefile reads a polygon shapefile and its attribute table.
func LoadShapefile(path string, opts Options) ([]core.ProjectBoundary, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening boundary layer: %w", err)
	}
	defer r.Close()

	if t := r.GeometryType; t != shp.POLYGON && t != shp.POLYGONZ && t != shp.POLYGONM {
		return nil, fmt.Errorf("%w: %s has shape type %d, not polygon", core.ErrUnsupportedLayer, path, t)
	}

	fields := r.Fields()
	b := newBuilder(opts)
	var out []core.ProjectBoundary

	for r.Next() {
		n, shape := r.Shape()

		attrs := make(map[string]string, len(fields))
		for k, f := range fields {
			name := strings.ToUpper(strings.TrimSpace(f.String()))
			attrs[name] = strings.Trim(r.ReadAttribute(n, k), " \x00")
		}

		var g orb.Geometry
		switch poly := shape.(type) {
		case *shp.Polygon:
			g = polygonGeometry(poly.Parts, poly.Points)
		case *shp.PolygonZ:
			g = polygonGeometry(poly.Parts, poly.Points)
		case *shp.PolygonM:
			g = polygonGeometry(poly.Parts, poly.Points)
		}

		pb, err := b.build(g, attrs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, pb)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%s: reading shapes: %w", path, err)
	}

	return b.finish(out)
}

// polygonGeometry rebuilds polygons from shapefile parts. Outer rings are
// clockwise; a counter-clockwise ring is a hole in the preceding polygon.
func polygonGeometry(parts []int32, points []shp.Point) orb.Geometry {
	var polys orb.MultiPolygon

	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start >= end || end > len(points) {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}

		if ring.Orientation() == orb.CCW && len(polys) > 0 {
			last := len(polys) - 1
			polys[last] = append(polys[last], ring)
			continue
		}
		polys = append(polys, orb.Polygon{ring})
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	default:
		return polys
	}
}

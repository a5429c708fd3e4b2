package geo

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/paulmach/orb/geojson"
)

// LoadGeoJSON reads a GeoJSON boundary file.
func LoadGeoJSON(path string, opts Options) ([]core.ProjectBoundary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening boundary layer: %w", err)
	}
	defer f.Close()

	out, err := ReadGeoJSON(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ReadGeoJSON decodes a FeatureCollection of polygon features.
func ReadGeoJSON(r io.Reader, opts Options) ([]core.ProjectBoundary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading boundary layer: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedLayer, err)
	}

	b := newBuilder(opts)
	out := make([]core.ProjectBoundary, 0, len(fc.Features))
	for _, f := range fc.Features {
		attrs := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			attrs[strings.ToUpper(k)] = attrString(v)
		}
		pb, err := b.build(f.Geometry, attrs)
		if err != nil {
			return nil, err
		}
		out = append(out, pb)
	}
	return b.finish(out)
}

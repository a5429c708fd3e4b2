package core

import (
	"testing"

	"github.com/paulmach/orb"
)

// testCatalog returns a small catalog used across tests.
func testCatalog(t *testing.T) *SpeciesCatalog {
	t.Helper()
	c, err := NewSpeciesCatalog([]SpeciesEntry{
		{Code: "BF", Group: "BF"},
		{Code: "BW", Group: "BW"},
		{Code: "PJ", Group: "PJ"},
		{Code: "SB", Group: "SX"},
		{Code: "SW", Group: "SX"},
	}, FRISpecies())
	if err != nil {
		t.Fatalf("NewSpeciesCatalog() error = %v", err)
	}
	return c
}

// square returns a closed square polygon with its lower-left corner at (lon, lat).
func square(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat},
		{lon + size, lat},
		{lon + size, lat + size},
		{lon, lat + size},
		{lon, lat},
	}}
}

func testBoundary(id string, silvsys SilvSys, lon, lat float64) ProjectBoundary {
	return ProjectBoundary{
		ProjectID: id,
		Lat:       lat + 0.5,
		Lon:       lon + 0.5,
		Geometry:  square(lon, lat, 1),
		Attrs: map[string]string{
			AttrSilvSys:    string(silvsys),
			AttrNumCluster: "2",
			AttrAreaHa:     "12.5",
			AttrFMU:        "Nipissing",
			AttrDistrict:   "North Bay",
		},
	}
}

// unoccupiedRecord returns a clearcut record with every plot marked unoccupied.
func unoccupiedRecord(uid int, cluster string) SurveyRecord {
	rec := SurveyRecord{
		UID:              uid,
		SilvSys:          Clearcut,
		ClusterNumber:    cluster,
		CreationDateTime: "2021-09-14T10:00:00",
	}
	for i := range rec.Plots {
		rec.Plots[i] = Plot{Unoccupied: true, UnoccupiedReason: "Road"}
	}
	return rec
}

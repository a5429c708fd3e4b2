package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestDecideProjectID(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		override   string
		geo        string
		wantID     string
		wantSource ResolutionSource
	}{
		{"override wins", "A", "B", "C", "B", SourceOverride},
		{"use gps falls through to geometry", "A", NoOverride, "C", "C", SourceGeometry},
		{"padded use gps", "A", "  Use GPS ", "", "A", SourceUser},
		{"blank override", "A", "", "C", "C", SourceGeometry},
		{"override equal to user", "A", "A", "C", "C", SourceGeometry},
		{"geometry equal to user", "A", "", "A", "A", SourceUser},
		{"no candidates", "A", " ", "", "A", SourceUser},
		{"nothing at all", "", "", "", "", SourceUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, src := DecideProjectID(tt.user, tt.override, tt.geo)
			if id != tt.wantID || src != tt.wantSource {
				t.Errorf("DecideProjectID(%q, %q, %q) = %q, %s, want %q, %s",
					tt.user, tt.override, tt.geo, id, src, tt.wantID, tt.wantSource)
			}
		})
	}
}

func TestValidateBoundaries(t *testing.T) {
	outside := testBoundary("FAR", Clearcut, -80, 45)
	outside.Lat = 60

	tests := []struct {
		name       string
		boundaries []ProjectBoundary
		wantErr    error
	}{
		{"valid", []ProjectBoundary{testBoundary("P1", Clearcut, -80, 45)}, nil},
		{"empty set", nil, nil},
		{
			name: "duplicate ignoring case",
			boundaries: []ProjectBoundary{
				testBoundary("P1", Clearcut, -80, 45),
				testBoundary("p1", Clearcut, -79, 45),
			},
			wantErr: ErrDuplicateProject,
		},
		{"missing id", []ProjectBoundary{testBoundary(" ", Clearcut, -80, 45)}, ErrMissingProjectID},
		{"outside envelope", []ProjectBoundary{outside}, ErrOutsideEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBoundaries(tt.boundaries)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateBoundaries() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBoundaries() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInEnvelope_Exclusive(t *testing.T) {
	b := ProjectBoundary{Lat: MinLat, Lon: -80}
	if b.InEnvelope() {
		t.Error("InEnvelope() on the minimum latitude = true, want false")
	}
	b.Lat = MinLat + 0.0001
	if !b.InEnvelope() {
		t.Error("InEnvelope() just inside = false, want true")
	}
}

func newTestResolver(t *testing.T) *ProjectResolver {
	t.Helper()
	// P2 overlaps the eastern half of P1.
	p1 := testBoundary("P1", Clearcut, -80, 45)
	p2 := testBoundary("P2", Shelterwood, -79.5, 45)
	r, err := NewProjectResolver([]ProjectBoundary{p2, p1})
	if err != nil {
		t.Fatalf("NewProjectResolver() error = %v", err)
	}
	return r
}

func TestProjectResolver_Locate(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name  string
		point orb.Point
		want  []string
	}{
		{"only P1", orb.Point{-79.8, 45.5}, []string{"P1"}},
		{"overlap", orb.Point{-79.2, 45.5}, []string{"P1", "P2"}},
		{"only P2", orb.Point{-78.7, 45.5}, []string{"P2"}},
		{"on the edge", orb.Point{-80, 45.5}, []string{"P1"}},
		{"outside", orb.Point{-70, 45.5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Locate(tt.point)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Locate(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestProjectResolver_Resolve(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name       string
		rec        SurveyRecord
		wantID     string
		wantSource ResolutionSource
		wantCodes  []string
	}{
		{
			name:       "geometry over user id",
			rec:        SurveyRecord{UID: 1, SilvSys: Clearcut, UserProjectID: "TYPO", Latitude: 45.5, Longitude: -79.8},
			wantID:     "P1",
			wantSource: SourceGeometry,
		},
		{
			name:       "overlap takes smallest id",
			rec:        SurveyRecord{UID: 2, SilvSys: Clearcut, Latitude: 45.5, Longitude: -79.2},
			wantID:     "P1",
			wantSource: SourceGeometry,
			wantCodes:  []string{DiagOverlap},
		},
		{
			name:       "override",
			rec:        SurveyRecord{UID: 3, SilvSys: Shelterwood, OverrideProjectID: "P2", Latitude: 45.5, Longitude: -79.8},
			wantID:     "P2",
			wantSource: SourceOverride,
		},
		{
			name:       "no location keeps user id",
			rec:        SurveyRecord{UID: 4, SilvSys: Clearcut, UserProjectID: "p1"},
			wantID:     "p1",
			wantSource: SourceUser,
			wantCodes:  []string{DiagNoLocation},
		},
		{
			name:       "unresolved",
			rec:        SurveyRecord{UID: 5, SilvSys: Clearcut},
			wantID:     "",
			wantSource: SourceUser,
			wantCodes:  []string{DiagNoLocation, DiagUnresolved},
		},
		{
			name:       "system mismatch",
			rec:        SurveyRecord{UID: 6, SilvSys: Clearcut, Latitude: 45.5, Longitude: -78.7},
			wantID:     "P2",
			wantSource: SourceGeometry,
			wantCodes:  []string{DiagSilvSysMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, diags := r.Resolve(tt.rec)
			if res.ProjectID != tt.wantID {
				t.Errorf("ProjectID = %q, want %q", res.ProjectID, tt.wantID)
			}
			if res.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", res.Source, tt.wantSource)
			}
			if res.RecordKey != tt.rec.Key() {
				t.Errorf("RecordKey = %q, want %q", res.RecordKey, tt.rec.Key())
			}
			var codes []string
			for _, d := range diags {
				codes = append(codes, d.Code)
			}
			if strings.Join(codes, ",") != strings.Join(tt.wantCodes, ",") {
				t.Errorf("diagnostic codes = %v, want %v", codes, tt.wantCodes)
			}
		})
	}
}

func TestProjectResolver_ResolveAll(t *testing.T) {
	r := newTestResolver(t)

	records := []SurveyRecord{
		{UID: 1, SilvSys: Clearcut, Latitude: 45.5, Longitude: -79.8},
		{UID: 2, SilvSys: Clearcut, UserProjectID: "x9"},
		{UID: 3, SilvSys: Clearcut, UserProjectID: "X9"},
		{UID: 4, SilvSys: Clearcut, UserProjectID: "P1"},
	}

	res := r.ResolveAll(records)

	if len(res.Resolutions) != len(records) {
		t.Fatalf("len(Resolutions) = %d, want %d", len(res.Resolutions), len(records))
	}
	for i, rec := range records {
		if res.Resolutions[i].RecordKey != rec.Key() {
			t.Errorf("Resolutions[%d] is for %s, want %s", i, res.Resolutions[i].RecordKey, rec.Key())
		}
	}
	if res.ProjectCounts["P1"] != 2 || res.ProjectCounts["X9"] != 2 {
		t.Errorf("ProjectCounts = %v, want P1:2 X9:2", res.ProjectCounts)
	}

	unknown := res.Diagnostics.Filter(DiagUnknownProject)
	if len(unknown) != 1 {
		t.Fatalf("unknown project diagnostics = %d, want 1", len(unknown))
	}
	if !strings.Contains(unknown[0].Message, "X9") || !strings.Contains(unknown[0].Message, "(2 records)") {
		t.Errorf("unknown project message = %q", unknown[0].Message)
	}
}

func TestNewProjectResolver_OrdersBoundaries(t *testing.T) {
	r := newTestResolver(t)
	bs := r.Boundaries()
	if len(bs) != 2 || bs[0].ProjectID != "P1" || bs[1].ProjectID != "P2" {
		t.Errorf("Boundaries() order = %v", bs)
	}
	if _, ok := r.Lookup("p2"); !ok {
		t.Error("Lookup(p2) = false, want case-insensitive match")
	}
}

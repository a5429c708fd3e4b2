package core

import (
	"testing"
)

func TestSpeciesCode(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantCode   string
		wantPadded string
		wantOK     bool
	}{
		{"descriptive name", "Bf (fir, balsam)", "BF", "Bf (fir, balsam) ", true},
		{"two letters", "sw", "SW", "sw ", true},
		{"three letter code", "Oak", "OAK", "Oak ", true},
		{"single letter skipped", "B", "", "", false},
		{"empty skipped", "", "", "", false},
		{"unknown code", "XY", "XY", "XY ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, padded, ok := SpeciesCode(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("SpeciesCode(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if code != tt.wantCode {
				t.Errorf("SpeciesCode(%q) code = %q, want %q", tt.input, code, tt.wantCode)
			}
			if padded != tt.wantPadded {
				t.Errorf("SpeciesCode(%q) padded = %q, want %q", tt.input, padded, tt.wantPadded)
			}
		})
	}
}

func TestEffectiveDensity(t *testing.T) {
	tests := []struct {
		name string
		c8   int
		c16  int
		max  float64
		want float64
	}{
		{"three trees", 3, 0, 0.5, 468.75},
		{"8 m² capped at 32", 100, 0, 0.5, 5000},
		{"16 m² capped at 64", 0, 100, 0.5, 5000},
		{"both tiers capped", 40, 70, 0.5, 10000},
		{"both tiers under cap", 2, 4, 0.5, 625},
		{"zero", 0, 0, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveDensity(tt.c8, tt.c16, tt.max)
			if got != tt.want {
				t.Errorf("EffectiveDensity(%d, %d, %v) = %v, want %v", tt.c8, tt.c16, tt.max, got, tt.want)
			}
		})
	}
}

func TestClusterAggregator_ClearcutExample(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 2
	agg := NewClusterAggregator(testCatalog(t), params, PhotoNamer{})

	rec := SurveyRecord{
		UID:              1,
		SilvSys:          Clearcut,
		ClusterNumber:    "101",
		CreationDateTime: "2021-09-14T10:22:31",
		GeneralComment:   "crew's lunch spot",
	}
	rec.Plots[0].Slots[0] = Slot{Name: "Bf (fir, balsam)", Count: "3"}
	rec.Plots[0].Slots[1] = Slot{Name: "XY", Count: "1"}
	rec.Plots[1] = Plot{Unoccupied: true, UnoccupiedReason: "Road"}

	sum, diags := agg.Aggregate(rec, "SAU-NSF-4")

	if sum.TotalTrees != 3 {
		t.Errorf("TotalTrees = %d, want 3", sum.TotalTrees)
	}
	if len(sum.InvalidSpecies) != 1 || sum.InvalidSpecies[0] != "XY " {
		t.Errorf("InvalidSpecies = %q, want [\"XY \"]", sum.InvalidSpecies)
	}
	if len(sum.Composition) != 1 || sum.Composition["BF"] != 3 {
		t.Errorf("Composition = %v, want map[BF:3]", sum.Composition)
	}
	if sum.CompositionPerc["BF"] != 100.0 {
		t.Errorf("CompositionPerc[BF] = %v, want 100", sum.CompositionPerc["BF"])
	}
	if sum.SiteOcc != 0.5 {
		t.Errorf("SiteOcc = %v, want 0.5", sum.SiteOcc)
	}
	if sum.EffectiveDensity != 468.75 {
		t.Errorf("EffectiveDensity = %v, want 468.75", sum.EffectiveDensity)
	}
	if sum.CreationDate != "2021-09-14" {
		t.Errorf("CreationDate = %q, want %q", sum.CreationDate, "2021-09-14")
	}
	if sum.Comments["cluster"] != "crews lunch spot" {
		t.Errorf("Comments[cluster] = %q, want apostrophes removed", sum.Comments["cluster"])
	}
	if got := sum.SiteOccReason()["P2"]; got != "Road" {
		t.Errorf("SiteOccReason[P2] = %q, want %q", got, "Road")
	}
	if len(sum.Plots) != 2 {
		t.Fatalf("len(Plots) = %d, want 2", len(sum.Plots))
	}
	if sum.Plots[1].Counts[Tier8] != nil {
		t.Errorf("unoccupied plot counts = %v, want nil", sum.Plots[1].Counts)
	}
	if got := diags.Filter(DiagInvalidSpecies); len(got) != 1 {
		t.Errorf("invalid species diagnostics = %d, want 1", len(got))
	}
	for _, d := range diags {
		if d.ProjectID != "SAU-NSF-4" || d.RecordKey != "cc1" {
			t.Errorf("diagnostic %v not tagged with record and project", d)
		}
	}
}

func TestClusterAggregator_AllUnoccupied(t *testing.T) {
	agg := NewClusterAggregator(testCatalog(t), DefaultCalcParams(), PhotoNamer{})

	sum, diags := agg.Aggregate(unoccupiedRecord(4, "7"), "P1")

	if sum.SiteOcc != 0 {
		t.Errorf("SiteOcc = %v, want 0", sum.SiteOcc)
	}
	if sum.TotalTrees != 0 || sum.EffectiveDensity != 0 {
		t.Errorf("TotalTrees, EffectiveDensity = %d, %v, want 0, 0", sum.TotalTrees, sum.EffectiveDensity)
	}
	if len(sum.Composition) != 0 || len(sum.CompositionPerc) != 0 {
		t.Errorf("composition = %v / %v, want empty", sum.Composition, sum.CompositionPerc)
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
	for _, p := range sum.Plots {
		if p.Occupied || p.Reason != "Road" {
			t.Errorf("plot %d = occupied %v reason %q", p.Number, p.Occupied, p.Reason)
		}
	}
}

func TestClusterAggregator_EmptyPlotDemoted(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 1
	agg := NewClusterAggregator(testCatalog(t), params, PhotoNamer{})

	rec := SurveyRecord{UID: 2, SilvSys: Clearcut, ClusterNumber: "9"}
	rec.Plots[0].Slots[0] = Slot{Name: "BF", Count: "0"}
	rec.Plots[0].Slots[1] = Slot{Name: "SW", Count: ""}
	rec.Plots[0].Slots[2] = Slot{Name: "Qq", Count: "4"}

	sum, _ := agg.Aggregate(rec, "P1")

	p := sum.Plots[0]
	if p.Occupied {
		t.Error("plot with no valid trees should be unoccupied")
	}
	if p.Reason != UnspecifiedReason {
		t.Errorf("Reason = %q, want %q", p.Reason, UnspecifiedReason)
	}
	if sum.SiteOcc != 0 {
		t.Errorf("SiteOcc = %v, want 0", sum.SiteOcc)
	}
	if len(sum.InvalidSpecies) != 1 || sum.InvalidSpecies[0] != "Qq " {
		t.Errorf("InvalidSpecies = %q, want [\"Qq \"]", sum.InvalidSpecies)
	}
}

func TestClusterAggregator_ShelterwoodTiers(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 1
	agg := NewClusterAggregator(testCatalog(t), params, PhotoNamer{})

	rec := SurveyRecord{UID: 1, SilvSys: Shelterwood, ClusterNumber: "3"}
	rec.Plots[0].Slots[0] = Slot{Name: "Sw", Count: "2"}
	rec.Plots[0].Slots[3] = Slot{Name: "Sb", Count: "3"}
	rec.Plots[0].Slots[5] = Slot{Name: "Sw", Count: "1"}

	sum, _ := agg.Aggregate(rec, "P2")

	p := sum.Plots[0]
	if p.Counts[Tier8]["SW"] != 2 {
		t.Errorf("8 m² SW = %d, want 2", p.Counts[Tier8]["SW"])
	}
	if p.Counts[Tier16]["SB"] != 3 || p.Counts[Tier16]["SW"] != 1 {
		t.Errorf("16 m² counts = %v, want SB:3 SW:1", p.Counts[Tier16])
	}
	if sum.EffectiveDensity != 625 {
		t.Errorf("EffectiveDensity = %v, want 625", sum.EffectiveDensity)
	}
	if sum.GroupComposition["SX"] != 6 {
		t.Errorf("GroupComposition[SX] = %d, want 6", sum.GroupComposition["SX"])
	}
	if sum.CompositionPerc["SW"] != 50 || sum.CompositionPerc["SB"] != 50 {
		t.Errorf("CompositionPerc = %v, want SW:50 SB:50", sum.CompositionPerc)
	}
	if sum.GroupCompositionPerc["SX"] != 100 {
		t.Errorf("GroupCompositionPerc = %v, want SX:100", sum.GroupCompositionPerc)
	}
}

func TestClusterAggregator_ClearcutIgnoresExtraSlots(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 1
	agg := NewClusterAggregator(testCatalog(t), params, PhotoNamer{})

	rec := SurveyRecord{UID: 1, SilvSys: Clearcut, ClusterNumber: "3"}
	rec.Plots[0].Slots[0] = Slot{Name: "PJ", Count: "1"}
	rec.Plots[0].Slots[4] = Slot{Name: "BW", Count: "5"}

	sum, _ := agg.Aggregate(rec, "P1")

	if sum.TotalTrees != 1 {
		t.Errorf("TotalTrees = %d, want 1 (slot 5 is not a clearcut slot)", sum.TotalTrees)
	}
}

func TestClusterAggregator_BadCount(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 1
	agg := NewClusterAggregator(testCatalog(t), params, PhotoNamer{})

	rec := SurveyRecord{UID: 5, SilvSys: Clearcut, ClusterNumber: "3"}
	rec.Plots[0].Slots[0] = Slot{Name: "BF", Count: "two"}
	rec.Plots[0].Slots[1] = Slot{Name: "BW", Count: "-1"}
	rec.Plots[0].Slots[2] = Slot{Name: "PJ", Count: "2"}

	sum, diags := agg.Aggregate(rec, "P1")

	if sum.TotalTrees != 2 {
		t.Errorf("TotalTrees = %d, want 2", sum.TotalTrees)
	}
	if got := len(diags.Filter(DiagBadCount)); got != 2 {
		t.Errorf("bad count diagnostics = %d, want 2", got)
	}
}

func TestClusterAggregator_OversizedCounts(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 1
	agg := NewClusterAggregator(testCatalog(t), params, PhotoNamer{})

	rec := SurveyRecord{UID: 6, SilvSys: Clearcut, ClusterNumber: "4"}
	rec.Plots[0].Slots[0] = Slot{Name: "BF", Count: "9223372036854775807"}
	rec.Plots[0].Slots[1] = Slot{Name: "BW", Count: "9223372036854775807"}
	rec.Plots[0].Slots[2] = Slot{Name: "PJ", Count: "3"}

	sum, diags := agg.Aggregate(rec, "P1")

	if sum.TotalTrees != 3 {
		t.Errorf("TotalTrees = %d, want 3", sum.TotalTrees)
	}
	if sum.EffectiveDensity < 0 {
		t.Errorf("EffectiveDensity = %v, want non-negative", sum.EffectiveDensity)
	}
	if got := len(diags.Filter(DiagBadCount)); got != 2 {
		t.Errorf("bad count diagnostics = %d, want 2", got)
	}
}

func TestClusterAggregator_PhotoRefs(t *testing.T) {
	params := DefaultCalcParams()
	params.NumPlots = 1
	namer := PhotoNamer{SourceDir: "/in", LocalDir: "/out", PublicBase: "https://example.org/rap"}
	agg := NewClusterAggregator(testCatalog(t), params, namer)

	rec := SurveyRecord{
		UID:              1,
		SilvSys:          Clearcut,
		ClusterNumber:    "16",
		CreationDateTime: "2021-10-15 09:00",
		ClusterPhoto:     "images/connectspatial/25aa1a61-367f-4ffk.jpg",
	}
	rec.Plots[0].Photos = "images/a/0001-a23w.jpg|images/a/0002-b777.jpg"
	rec.Plots[0].Slots[0] = Slot{Name: "BF", Count: "1"}

	sum, _ := agg.Aggregate(rec, "SAU-NSF-4")

	if len(sum.PhotoRefs) != 3 {
		t.Fatalf("len(PhotoRefs) = %d, want 3", len(sum.PhotoRefs))
	}
	first := sum.PhotoRefs[0]
	if first.Name != "SAU-NSF-4_C16_cluster_4ffk_2021-10-15.jpg" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.PublicURL != "https://example.org/rap/SAU-NSF-4_C16_cluster_4ffk_2021-10-15.jpg" {
		t.Errorf("PublicURL = %q", first.PublicURL)
	}
	local := sum.PhotoPaths(false)
	if len(local["P1"]) != 2 || len(local["cluster"]) != 1 {
		t.Errorf("PhotoPaths(false) = %v", local)
	}
}

package core

import (
	"reflect"
	"strings"
	"testing"
)

func clusterFixture(num, date string, density, siteOcc float64, perc map[string]float64, moisture string) ClusterSummary {
	c := ClusterSummary{
		ClusterNumber:        num,
		CreationDate:         date,
		SilvSys:              Clearcut,
		EffectiveDensity:     density,
		SiteOcc:              siteOcc,
		CompositionPerc:      perc,
		GroupCompositionPerc: map[string]float64{},
		Moisture:             moisture,
		Comments:             map[string]string{"cluster": "c" + num},
	}
	for code, v := range perc {
		g := code
		if code == "SW" || code == "SB" {
			g = "SX"
		}
		c.GroupCompositionPerc[g] += v
	}
	return c
}

func TestProjectAggregator_Aggregate(t *testing.T) {
	b := testBoundary("P1", Clearcut, -80, 45)
	b.Attrs[AttrNumCluster] = "3"
	b.Attrs[AttrSGR] = "SGR-7"

	clusters := []ClusterSummary{
		clusterFixture("102", "2021-09-20", 1250, 1, map[string]float64{"BF": 50, "SW": 50}, "moist"),
		clusterFixture("101", "2021-09-14", 468.75, 0.5, map[string]float64{"BF": 100}, "fresh"),
		clusterFixture("103", "2021-09-17", 0, 0, map[string]float64{}, "fresh"),
	}
	records := []SurveyRecord{
		{SilvSys: Clearcut, Surveyors: "Ana", ForestManagementUnit: "Nipissing"},
		{SilvSys: Clearcut, Surveyors: ""},
		{SilvSys: Clearcut, Surveyors: "Ana, Ben", DistrictName: "North Bay"},
		{SilvSys: Shelterwood, Surveyors: "Zed"},
	}

	p := NewProjectAggregator(DefaultCalcParams()).Aggregate(b, clusters, records)

	if p.ProjectID != "P1" || p.SilvSys != "CC" || p.PlotSizeM2 != 8 {
		t.Errorf("identity = %s %s %d", p.ProjectID, p.SilvSys, p.PlotSizeM2)
	}
	if p.Metadata.SGR != "SGR-7" {
		t.Errorf("Metadata.SGR = %q, want SGR-7", p.Metadata.SGR)
	}
	if want := []string{"101", "102", "103"}; !reflect.DeepEqual(p.Clusters, want) {
		t.Errorf("Clusters = %v, want %v", p.Clusters, want)
	}
	if p.ClustersSurveyed != 3 || !p.SurveyComplete {
		t.Errorf("ClustersSurveyed, SurveyComplete = %d, %v, want 3, true", p.ClustersSurveyed, p.SurveyComplete)
	}
	if p.AssessStartDate != "2021-09-14" || p.AssessLastDate != "2021-09-20" {
		t.Errorf("assessment dates = %s..%s", p.AssessStartDate, p.AssessLastDate)
	}
	if want := []string{"Ana", "Ana, Ben"}; !reflect.DeepEqual(p.Assessors, want) {
		t.Errorf("Assessors = %v, want %v", p.Assessors, want)
	}
	if !reflect.DeepEqual(p.SurveyorFMU, []string{"Nipissing"}) {
		t.Errorf("SurveyorFMU = %v", p.SurveyorFMU)
	}

	if p.NumClustersOccupied != 2 {
		t.Errorf("NumClustersOccupied = %d, want 2", p.NumClustersOccupied)
	}
	ed := p.EffectiveDensity
	if ed.Mean != 572.9167 || ed.Stdv != 631.4769 || ed.CI != 1568.6755 || ed.UpperCI != 2141.5922 {
		t.Errorf("EffectiveDensity = %+v", ed)
	}

	if want := []string{"BF", "SW"}; !reflect.DeepEqual(p.SpeciesFound, want) {
		t.Errorf("SpeciesFound = %v, want %v", p.SpeciesFound, want)
	}
	if want := map[string]float64{"101": 0, "102": 50}; !reflect.DeepEqual(p.SpeciesData["SW"], want) {
		t.Errorf("SpeciesData[SW] = %v, want %v", p.SpeciesData["SW"], want)
	}
	if _, ok := p.SpeciesData["SW"]["103"]; ok {
		t.Error("unoccupied cluster included in species data")
	}
	if p.Species["BF"].N != 2 {
		t.Errorf("Species[BF].N = %d, want 2", p.Species["BF"].N)
	}
	if want := []string{"BF", "SX"}; !reflect.DeepEqual(p.SpeciesGroupsFound, want) {
		t.Errorf("SpeciesGroupsFound = %v, want %v", p.SpeciesGroupsFound, want)
	}

	if p.EcositeMoisture["fresh"] != 66.7 || p.EcositeMoisture["moist"] != 33.3 {
		t.Errorf("EcositeMoisture = %v", p.EcositeMoisture)
	}
	if p.Comments["101"]["cluster"] != "c101" {
		t.Errorf("Comments[101] = %v", p.Comments["101"])
	}
	if len(p.AnalysisComments) != 0 {
		t.Errorf("AnalysisComments = %v, want none", p.AnalysisComments)
	}
}

func TestProjectAggregator_DuplicateCluster(t *testing.T) {
	b := testBoundary("P1", Clearcut, -80, 45)
	clusters := []ClusterSummary{
		clusterFixture("5", "2021-09-14", 100, 1, map[string]float64{"BF": 100}, "fresh"),
		clusterFixture("5", "2021-09-15", 300, 1, map[string]float64{"BF": 100}, "fresh"),
	}

	p := NewProjectAggregator(DefaultCalcParams()).Aggregate(b, clusters, nil)

	if got := p.Diagnostics.Filter(DiagDuplicateCluster); len(got) != 1 || got[0].Message != "Duplicate cluster found: 5" {
		t.Errorf("duplicate diagnostics = %v", got)
	}
	if got := p.Diagnostics.Filter(DiagInsufficientStats); len(got) != 1 {
		t.Errorf("insufficient stats diagnostics = %d, want 1", len(got))
	}
	if !p.EffectiveDensity.Empty() {
		t.Errorf("EffectiveDensity = %+v, want empty", p.EffectiveDensity)
	}
	if p.EffectiveDensityData["5"] != 300 {
		t.Errorf("EffectiveDensityData[5] = %v, want last value 300", p.EffectiveDensityData["5"])
	}
	if len(p.AnalysisComments) != 2 {
		t.Errorf("AnalysisComments = %v, want 2 entries", p.AnalysisComments)
	}
	if p.ClustersSurveyed != 2 {
		t.Errorf("ClustersSurveyed = %d, want 2", p.ClustersSurveyed)
	}
}

func TestProjectAggregator_NoClusters(t *testing.T) {
	b := testBoundary("EMPTY", Shelterwood, -80, 45)

	p := NewProjectAggregator(DefaultCalcParams()).Aggregate(b, nil, nil)

	if p.ClustersSurveyed != 0 || p.SurveyComplete {
		t.Errorf("ClustersSurveyed, SurveyComplete = %d, %v, want 0, false", p.ClustersSurveyed, p.SurveyComplete)
	}
	if p.PlotSizeM2 != 16 {
		t.Errorf("PlotSizeM2 = %d, want 16", p.PlotSizeM2)
	}
	if len(p.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", p.Diagnostics)
	}
	if p.Assessors == nil || p.Clusters == nil {
		t.Error("list fields should be empty, not nil")
	}
}

func TestProjectSummary_AttachDiagnostics(t *testing.T) {
	var p ProjectSummary
	p.AttachDiagnostics(Diagnostics{
		{Code: DiagInvalidSpecies, RecordKey: "cc3", Message: "species XY not in catalog"},
	})
	if len(p.AnalysisComments) != 1 || !strings.HasPrefix(p.AnalysisComments[0], "[CLU001] cc3:") {
		t.Errorf("AnalysisComments = %v", p.AnalysisComments)
	}
}

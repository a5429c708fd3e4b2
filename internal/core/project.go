package core

import (
	"fmt"
	"sort"
	"strings"
)

// ProjectMetadata carries the forestry attributes of a boundary through to
// the project summary unchanged.
type ProjectMetadata struct {
	YrDep      string `json:"yrdep"`
	DepletionF string `json:"depletionf"`
	YrOrg      string `json:"yrorg"`
	SGR        string `json:"sgr"`
	TargetFU   string `json:"targetfu"`
	TargetSpc  string `json:"targetspc"`
	TargetSO   string `json:"targetso"`
	SFLAsYr    string `json:"sfl_as_yr"`
	SFLAsMeth  string `json:"sfl_asmeth"`
	SFLSpComp  string `json:"sfl_spcomp"`
	SFLSO      string `json:"sfl_so"`
	SFLFU      string `json:"sfl_fu"`
	SFLEffDen  string `json:"sfl_effden"`
}

func metadataFrom(b ProjectBoundary) ProjectMetadata {
	return ProjectMetadata{
		YrDep:      b.Attr(AttrYrDep),
		DepletionF: b.Attr(AttrDepletionF),
		YrOrg:      b.Attr(AttrYrOrg),
		SGR:        b.Attr(AttrSGR),
		TargetFU:   b.Attr(AttrTargetFU),
		TargetSpc:  b.Attr(AttrTargetSpc),
		TargetSO:   b.Attr(AttrTargetSO),
		SFLAsYr:    b.Attr(AttrSFLAsYr),
		SFLAsMeth:  b.Attr(AttrSFLAsMeth),
		SFLSpComp:  b.Attr(AttrSFLSpComp),
		SFLSO:      b.Attr(AttrSFLSO),
		SFLFU:      b.Attr(AttrSFLFU),
		SFLEffDen:  b.Attr(AttrSFLEffDen),
	}
}

// EcositeEntry is the [moisture, nutrient, comment] triple of one cluster.
type EcositeEntry [3]string

// ProjectSummary is the aggregated view of one project boundary.
type ProjectSummary struct {
	ProjectID   string          `json:"proj_id"`
	NumClusters int             `json:"num_clusters"`
	SilvSys     string          `json:"silvsys"`
	AreaHa      string          `json:"area_ha"`
	PlotSizeM2  int             `json:"plot_size_m2"`
	FMU         string          `json:"spatial_fmu"`
	District    string          `json:"spatial_mnrf_district"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Metadata    ProjectMetadata `json:"metadata"`

	ClustersSurveyed int      `json:"num_clusters_surveyed"`
	Clusters         []string `json:"list_of_clusters"`
	SurveyComplete   bool     `json:"is_survey_complete"`
	AssessStartDate  string   `json:"assess_start_date"`
	AssessLastDate   string   `json:"assess_last_date"`
	Assessors        []string `json:"assessors"`
	SurveyorFMU      []string `json:"surveyor_fmu"`
	SurveyorDistrict []string `json:"surveyor_mnrf_district"`

	Comments map[string]map[string]string `json:"all_comments"`

	EffectiveDensityData map[string]float64 `json:"effective_density_data"`
	EffectiveDensity     Stats              `json:"effective_density"`

	NumClustersOccupied int                          `json:"num_clusters_occupied"`
	SiteOccupancyData   map[string]float64           `json:"site_occupancy_data"`
	SiteOccupancy       Stats                        `json:"site_occupancy"`
	SiteOccupancyReason map[string]map[string]string `json:"site_occupancy_reason"`

	SpeciesFound       []string                      `json:"species_found"`
	SpeciesGroupsFound []string                      `json:"species_grps_found"`
	SpeciesData        map[string]map[string]float64 `json:"species_data_percent"`
	SpeciesGroupData   map[string]map[string]float64 `json:"species_grp_data_percent"`
	Species            map[string]Stats              `json:"spcomp"`
	SpeciesGroups      map[string]Stats              `json:"spcomp_grp"`

	EcositeData     map[string]EcositeEntry `json:"ecosite_data"`
	EcositeMoisture map[string]float64      `json:"ecosite_moisture"`

	AnalysisComments []string    `json:"analysis_comments"`
	Diagnostics      Diagnostics `json:"diagnostics"`
}

// ProjectAggregator summarises the clusters of one project.
type ProjectAggregator struct {
	params CalcParams
}

// NewProjectAggregator creates an aggregator.
func NewProjectAggregator(params CalcParams) *ProjectAggregator {
	return &ProjectAggregator{params: params}
}

// Aggregate builds the summary of boundary b. clusters are the summaries
// resolved to the project; records are the raw records resolved to it and
// provide the assessor fields. Per-cluster maps are keyed by cluster number,
// so a duplicated cluster number keeps the last cluster's values.
func (a *ProjectAggregator) Aggregate(b ProjectBoundary, clusters []ClusterSummary, records []SurveyRecord) ProjectSummary {
	var diags Diagnostics
	silvsys := b.SilvSys()

	p := ProjectSummary{
		ProjectID:   b.ProjectID,
		NumClusters: b.NumClusters(),
		SilvSys:     string(silvsys),
		AreaHa:      b.Attr(AttrAreaHa),
		PlotSizeM2:  silvsys.PlotSizeM2(),
		FMU:         b.Attr(AttrFMU),
		District:    b.Attr(AttrDistrict),
		Lat:         b.Lat,
		Lon:         b.Lon,
		Metadata:    metadataFrom(b),

		Comments:             make(map[string]map[string]string),
		EffectiveDensityData: make(map[string]float64),
		SiteOccupancyData:    make(map[string]float64),
		SiteOccupancyReason:  make(map[string]map[string]string),
		SpeciesData:          make(map[string]map[string]float64),
		SpeciesGroupData:     make(map[string]map[string]float64),
		Species:              make(map[string]Stats),
		SpeciesGroups:        make(map[string]Stats),
		EcositeData:          make(map[string]EcositeEntry),
		EcositeMoisture:      make(map[string]float64),
		AnalysisComments:     []string{},
	}

	// Cluster list and duplicates.
	p.Clusters = make([]string, 0, len(clusters))
	for _, c := range clusters {
		p.Clusters = append(p.Clusters, c.ClusterNumber)
	}
	sort.Strings(p.Clusters)
	if dups := duplicates(p.Clusters); len(dups) > 0 {
		diags = append(diags, Diagnostic{
			Code:      DiagDuplicateCluster,
			ProjectID: b.ProjectID,
			Message:   fmt.Sprintf("Duplicate cluster found: %s", strings.Join(dups, ", ")),
		})
	}
	p.ClustersSurveyed = len(p.Clusters)
	p.SurveyComplete = p.ClustersSurveyed >= p.NumClusters

	// Survey dates.
	if len(clusters) > 0 {
		dates := make([]string, len(clusters))
		for i, c := range clusters {
			dates[i] = c.CreationDate
		}
		sort.Strings(dates)
		p.AssessStartDate = dates[0]
		p.AssessLastDate = dates[len(dates)-1]
	}

	// Assessors come from the raw records of the project's own system.
	var assessors, fmus, districts []string
	for _, r := range records {
		if r.SilvSys != silvsys {
			continue
		}
		assessors = append(assessors, r.Surveyors)
		fmus = append(fmus, r.ForestManagementUnit)
		districts = append(districts, r.DistrictName)
	}
	p.Assessors = distinctNonEmpty(assessors)
	p.SurveyorFMU = distinctNonEmpty(fmus)
	p.SurveyorDistrict = distinctNonEmpty(districts)

	occupied := make(map[string]bool)
	spcByCluster := make(map[string]map[string]float64)
	grpByCluster := make(map[string]map[string]float64)

	for _, c := range clusters {
		num := c.ClusterNumber
		p.Comments[num] = c.Comments
		p.EffectiveDensityData[num] = c.EffectiveDensity
		p.SiteOccupancyData[num] = c.SiteOcc
		p.SiteOccupancyReason[num] = c.SiteOccReason()
		p.EcositeData[num] = EcositeEntry{c.Moisture, c.Nutrient, StripApostrophes(c.EcositeComment)}
		if c.Occupied() {
			occupied[num] = true
			spcByCluster[num] = c.CompositionPerc
			grpByCluster[num] = c.GroupCompositionPerc
		}
	}

	conf := a.params.Confidence
	p.EffectiveDensity = SampleStats(p.EffectiveDensityData, conf)
	p.SiteOccupancy = SampleStats(p.SiteOccupancyData, conf)
	p.NumClustersOccupied = len(occupied)

	p.SpeciesFound, p.SpeciesData = speciesData(occupied, spcByCluster)
	p.SpeciesGroupsFound, p.SpeciesGroupData = speciesData(occupied, grpByCluster)
	for code, data := range p.SpeciesData {
		p.Species[code] = SampleStats(data, conf)
	}
	for code, data := range p.SpeciesGroupData {
		p.SpeciesGroups[code] = SampleStats(data, conf)
	}

	if len(p.EcositeData) > 0 {
		counts := make(map[string]int)
		for _, e := range p.EcositeData {
			counts[e[0]]++
		}
		for k, v := range counts {
			p.EcositeMoisture[k] = Round(float64(v)*100/float64(len(p.EcositeData)), 1)
		}
	}

	if distinct := len(p.EffectiveDensityData); distinct > 0 && distinct < 2 {
		diags = append(diags, Diagnostic{
			Code:      DiagInsufficientStats,
			ProjectID: b.ProjectID,
			Message:   "Less than 2 distinct clusters collected - unable to run statistics on just one sample.",
		})
	}

	p.Diagnostics = diags
	p.AnalysisComments = append(p.AnalysisComments, diags.Messages()...)
	return p
}

// AttachDiagnostics appends diagnostics raised for the project's records
// to its analysis comments.
func (p *ProjectSummary) AttachDiagnostics(ds Diagnostics) {
	for _, d := range ds {
		p.Diagnostics = append(p.Diagnostics, d)
		p.AnalysisComments = append(p.AnalysisComments, d.String())
	}
}

// speciesData builds, for every code seen in an occupied cluster, a map of
// cluster number to percentage where clusters without the code count as 0.
func speciesData(occupied map[string]bool, byCluster map[string]map[string]float64) ([]string, map[string]map[string]float64) {
	seen := make(map[string]bool)
	for _, comp := range byCluster {
		for code := range comp {
			seen[code] = true
		}
	}

	found := make([]string, 0, len(seen))
	data := make(map[string]map[string]float64, len(seen))
	for code := range seen {
		found = append(found, code)
		m := make(map[string]float64, len(occupied))
		for num := range occupied {
			m[num] = byCluster[num][code]
		}
		data[code] = m
	}
	sort.Strings(found)
	return found, data
}

func duplicates(sorted []string) []string {
	var dups []string
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] && (len(dups) == 0 || dups[len(dups)-1] != sorted[i]) {
			dups = append(dups, sorted[i])
		}
	}
	return dups
}

func distinctNonEmpty(values []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

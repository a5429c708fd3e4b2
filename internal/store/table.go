// Package store turns a run result into flat tables and writes them to
// SQLite, Postgres or CSV sinks.
//
// Every table is dropped and recreated on each run. Nested values (maps,
// lists, statistics) are JSON-encoded into text columns.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/RAP/internal/core"
)

// Table names.
const (
	ClusterTable       = "Cluster_summary"
	ProjectTable       = "Project_summary"
	PlotTablePrefix    = "Plot_summary_"
	ProjectTablePrefix = "z_"
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Real
)

// Column is one named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is an in-memory table ready for a sink. Row values are string,
// int64 or float64 matching the column type.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

var nonWord = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ProjectTableName returns the per-project table name, e.g. "z_NOR_HWY11_5".
func ProjectTableName(projectID string) string {
	return ProjectTablePrefix + nonWord.ReplaceAllString(projectID, "_")
}

// BuildTables flattens a run result. A plot table is left out when its
// system has no plots; the cluster and project tables are always present,
// so sinks reject a run with nothing to store.
func BuildTables(res *core.Result, logger *slog.Logger) ([]Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clusters, err := clusterTable(res.Clusters)
	if err != nil {
		return nil, err
	}
	projects, err := projectTable(res.Projects)
	if err != nil {
		return nil, err
	}
	tables := []Table{clusters, projects}

	for _, pt := range res.Plots {
		name := PlotTablePrefix + pt.SilvSys.KeyPrefix()
		if len(pt.Rows) == 0 {
			logger.Info("no plots for silvicultural system, skipping plot table",
				"silvsys", string(pt.SilvSys),
				"table", name,
			)
			continue
		}
		tables = append(tables, plotTable(name, pt))
	}

	used := make(map[string]bool, len(tables)+len(res.Projects))
	for _, t := range tables {
		used[strings.ToLower(t.Name)] = true
	}
	for _, p := range res.Projects {
		if p.ClustersSurveyed == 0 {
			continue
		}
		t := projectDetailTable(p)
		if name := uniqueName(t.Name, used); name != t.Name {
			logger.Warn("project table name collision", "project", p.ProjectID, "table", t.Name, "renamed", name)
			t.Name = name
		}
		used[strings.ToLower(t.Name)] = true
		tables = append(tables, t)
	}
	return tables, nil
}

// uniqueName returns name, or name with the first free "_N" suffix. Names
// compare case-insensitively since SQLite table names do.
func uniqueName(name string, used map[string]bool) string {
	if !used[strings.ToLower(name)] {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if !used[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// encoder JSON-encodes nested values for text columns, keeping the first
// error.
type encoder struct{ err error }

func (e *encoder) json(v any) string {
	if e.err != nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		e.err = err
		return ""
	}
	return string(b)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var clusterColumns = []Column{
	{"cluster_uid", Integer},
	{"record_key", Text},
	{"proj_id", Text},
	{"cluster_num", Text},
	{"creation_date", Text},
	{"silvsys", Text},
	{"lat", Real},
	{"lon", Real},
	{"total_num_trees", Integer},
	{"effective_density", Real},
	{"invalid_spc_codes", Text},
	{"site_occ", Real},
	{"site_occ_raw", Text},
	{"site_occ_reason", Text},
	{"spc_count", Text},
	{"spc_comp", Text},
	{"spc_comp_grp", Text},
	{"spc_comp_perc", Text},
	{"spc_comp_grp_perc", Text},
	{"ecosite_moisture", Text},
	{"ecosite_nutrient", Text},
	{"ecosite_comment", Text},
	{"cluster_comments", Text},
	{"photos", Text},
	{"photos_local", Text},
	{"photos_public", Text},
}

func clusterTable(clusters []core.ClusterSummary) (Table, error) {
	t := Table{Name: ClusterTable, Columns: clusterColumns}
	for _, c := range clusters {
		counts := make(map[string][2]map[string]int, len(c.Plots))
		for _, p := range c.Plots {
			counts[p.Name()] = p.Counts
		}

		var e encoder
		row := []any{
			int64(c.UID), c.RecordKey, c.ProjectID, c.ClusterNumber, c.CreationDate, string(c.SilvSys),
			c.Lat, c.Lon, int64(c.TotalTrees), c.EffectiveDensity,
			e.json(c.InvalidSpecies),
			c.SiteOcc,
			e.json(c.SiteOccData()),
			e.json(c.SiteOccReason()),
			e.json(counts),
			e.json(c.Composition),
			e.json(c.GroupComposition),
			e.json(c.CompositionPerc),
			e.json(c.GroupCompositionPerc),
			c.Moisture, c.Nutrient, c.EcositeComment,
			e.json(c.Comments),
			e.json(c.Photos),
			e.json(c.PhotoPaths(false)),
			e.json(c.PhotoPaths(true)),
		}
		if e.err != nil {
			return Table{}, fmt.Errorf("encoding cluster %s: %w", c.RecordKey, e.err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

var projectColumns = []Column{
	{"proj_id", Text},
	{"num_clusters", Integer},
	{"silvsys", Text},
	{"area_ha", Text},
	{"plot_size_m2", Integer},
	{"spatial_fmu", Text},
	{"spatial_mnrf_district", Text},
	{"lat", Real},
	{"lon", Real},
	{"yrdep", Text},
	{"depletionf", Text},
	{"yrorg", Text},
	{"sgr", Text},
	{"targetfu", Text},
	{"targetspc", Text},
	{"targetso", Text},
	{"sfl_as_yr", Text},
	{"sfl_asmeth", Text},
	{"sfl_spcomp", Text},
	{"sfl_so", Text},
	{"sfl_fu", Text},
	{"sfl_effden", Text},
	{"num_clusters_surveyed", Integer},
	{"list_of_clusters", Text},
	{"is_survey_complete", Integer},
	{"assess_start_date", Text},
	{"assess_last_date", Text},
	{"assessors", Text},
	{"surveyor_fmu", Text},
	{"surveyor_mnrf_district", Text},
	{"all_comments", Text},
	{"effective_density_data", Text},
	{"effective_density", Text},
	{"num_clusters_occupied", Integer},
	{"site_occupancy_data", Text},
	{"site_occupancy", Text},
	{"site_occupancy_reason", Text},
	{"species_found", Text},
	{"species_grps_found", Text},
	{"species_data_percent", Text},
	{"species_grp_data_percent", Text},
	{"spcomp", Text},
	{"spcomp_grp", Text},
	{"ecosite_data", Text},
	{"ecosite_moisture", Text},
	{"analysis_comments", Text},
}

func projectTable(projects []core.ProjectSummary) (Table, error) {
	t := Table{Name: ProjectTable, Columns: projectColumns}
	for _, p := range projects {
		m := p.Metadata
		var e encoder
		row := []any{
			p.ProjectID, int64(p.NumClusters), p.SilvSys, p.AreaHa, int64(p.PlotSizeM2),
			p.FMU, p.District, p.Lat, p.Lon,
			m.YrDep, m.DepletionF, m.YrOrg, m.SGR, m.TargetFU, m.TargetSpc, m.TargetSO,
			m.SFLAsYr, m.SFLAsMeth, m.SFLSpComp, m.SFLSO, m.SFLFU, m.SFLEffDen,
			int64(p.ClustersSurveyed),
			e.json(p.Clusters),
			boolInt(p.SurveyComplete), p.AssessStartDate, p.AssessLastDate,
			e.json(p.Assessors),
			e.json(p.SurveyorFMU),
			e.json(p.SurveyorDistrict),
			e.json(p.Comments),
			e.json(p.EffectiveDensityData),
			e.json(p.EffectiveDensity),
			int64(p.NumClustersOccupied),
			e.json(p.SiteOccupancyData),
			e.json(p.SiteOccupancy),
			e.json(p.SiteOccupancyReason),
			e.json(p.SpeciesFound),
			e.json(p.SpeciesGroupsFound),
			e.json(p.SpeciesData),
			e.json(p.SpeciesGroupData),
			e.json(p.Species),
			e.json(p.SpeciesGroups),
			e.json(p.EcositeData),
			e.json(p.EcositeMoisture),
			e.json(p.AnalysisComments),
		}
		if e.err != nil {
			return Table{}, fmt.Errorf("encoding project %s: %w", p.ProjectID, e.err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func plotTable(name string, pt core.PlotTable) Table {
	t := Table{Name: name, Columns: []Column{
		{"proj_id", Text},
		{"cluster_num", Text},
		{"plot_num", Integer},
		{"site_occupied", Integer},
		{"reason_for_unoccupancy", Text},
	}}
	for _, col := range pt.Columns {
		t.Columns = append(t.Columns, Column{col, Integer})
	}

	for _, r := range pt.Rows {
		row := []any{r.ProjectID, r.ClusterNumber, int64(r.PlotNumber), int64(r.SiteOccupied), r.Reason}
		for _, col := range pt.Columns {
			row = append(row, int64(r.Counts[col]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// projectDetailTable lists the surveyed clusters of one project with the
// species composition of each as percentages.
func projectDetailTable(p core.ProjectSummary) Table {
	species := append([]string(nil), p.SpeciesFound...)
	sort.Strings(species)

	t := Table{Name: ProjectTableName(p.ProjectID), Columns: []Column{
		{"Cluster_Num", Text},
		{"Site_Occ", Real},
		{"Ef_Density", Real},
		{"Moisture", Text},
		{"Silvsys", Text},
	}}
	for _, code := range species {
		t.Columns = append(t.Columns, Column{"_" + code, Real})
	}

	clusters := uniqueSorted(p.Clusters)
	for _, num := range clusters {
		row := []any{
			num,
			p.SiteOccupancyData[num],
			p.EffectiveDensityData[num],
			p.EcositeData[num][0],
			p.SilvSys,
		}
		for _, code := range species {
			row = append(row, p.SpeciesData[code][num])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

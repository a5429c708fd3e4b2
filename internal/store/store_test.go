package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/jackc/pgx/v5"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resultFixture() *core.Result {
	clusters := []core.ClusterSummary{
		{
			UID: 1, RecordKey: "cc1", ClusterNumber: "101", ProjectID: "P1", SilvSys: core.Clearcut,
			Plots: []core.PlotTally{
				{Number: 1, Occupied: true, Counts: [2]map[string]int{{"BF": 2}, {}}},
				{Number: 2, Reason: "Road"},
			},
			TotalTrees: 2, SiteOcc: 0.5, EffectiveDensity: 312.5,
			Composition: map[string]int{"BF": 2}, Moisture: "Moist",
		},
		{
			UID: 2, RecordKey: "cc2", ClusterNumber: "102", ProjectID: "P1", SilvSys: core.Clearcut,
			Plots: []core.PlotTally{{Number: 1, Occupied: true}, {Number: 2, Occupied: true}},
			SiteOcc: 1,
		},
	}
	projects := []core.ProjectSummary{
		{
			ProjectID: "P1", SilvSys: "CC", NumClusters: 2, ClustersSurveyed: 2,
			Clusters:             []string{"102", "101", "101"},
			SpeciesFound:         []string{"BF"},
			SiteOccupancyData:    map[string]float64{"101": 0.5, "102": 1},
			EffectiveDensityData: map[string]float64{"101": 312.5, "102": 625},
			EcositeData:          map[string]core.EcositeEntry{"101": {"Moist", "", ""}},
			SpeciesData:          map[string]map[string]float64{"BF": {"101": 100}},
			SurveyComplete:       true,
		},
		{ProjectID: "P2 north", SilvSys: "SH", NumClusters: 4},
	}
	return &core.Result{Clusters: clusters, Projects: projects, Plots: core.FlattenPlots(clusters)}
}

func TestProjectTableName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"NOR-HWY11-5", "z_NOR_HWY11_5"},
		{"Test Project1", "z_Test_Project1"},
		{"plain", "z_plain"},
	}
	for _, tt := range tests {
		if got := ProjectTableName(tt.id); got != tt.want {
			t.Errorf("ProjectTableName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestBuildTables(t *testing.T) {
	tables, err := BuildTables(resultFixture(), quietLogger())
	if err != nil {
		t.Fatalf("BuildTables() error = %v", err)
	}

	var names []string
	for _, tb := range tables {
		names = append(names, tb.Name)
		for i, row := range tb.Rows {
			if len(row) != len(tb.Columns) {
				t.Errorf("%s row %d has %d values for %d columns", tb.Name, i, len(row), len(tb.Columns))
			}
		}
	}
	if got := strings.Join(names, ","); got != "Cluster_summary,Project_summary,Plot_summary_cc,z_P1" {
		t.Errorf("tables = %s", got)
	}

	plots := tables[2]
	if plots.Len() != 4 {
		t.Errorf("plot rows = %d, want 4", plots.Len())
	}
	if last := plots.Columns[len(plots.Columns)-1].Name; last != "_BF" {
		t.Errorf("last plot column = %q, want _BF", last)
	}

	z := tables[3]
	if got := strings.Join(z.ColumnNames(), ","); got != "Cluster_Num,Site_Occ,Ef_Density,Moisture,Silvsys,_BF" {
		t.Errorf("z columns = %s", got)
	}
	if len(z.Rows) != 2 {
		t.Fatalf("z rows = %d, want 2 distinct clusters", len(z.Rows))
	}
	first := z.Rows[0]
	if first[0] != "101" || first[1] != 0.5 || first[2] != 312.5 || first[3] != "Moist" || first[5] != 100.0 {
		t.Errorf("z row 1 = %v", first)
	}
	if second := z.Rows[1]; second[0] != "102" || second[5] != 0.0 {
		t.Errorf("z row 2 = %v", second)
	}
}

func TestBuildTables_NameCollision(t *testing.T) {
	res := resultFixture()
	twin := res.Projects[0]
	twin.ProjectID = "P-1"
	a := res.Projects[0]
	a.ProjectID = "P_1"
	res.Projects = []core.ProjectSummary{a, twin}

	tables, err := BuildTables(res, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if tables[len(tables)-2].Name != "z_P_1" || tables[len(tables)-1].Name != "z_P_1_2" {
		t.Errorf("colliding names = %s, %s", tables[len(tables)-2].Name, tables[len(tables)-1].Name)
	}
}

func TestBuildTables_NameCollisionSeries(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"three way", []string{"A-1", "A_1", "A 1"}, "z_A_1,z_A_1_2,z_A_1_3"},
		{"case only", []string{"A-1", "a_1"}, "z_A_1,z_a_1_2"},
		{"suffix already taken", []string{"A_1_2", "A-1", "A_1"}, "z_A_1_2,z_A_1,z_A_1_3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resultFixture()
			base := res.Projects[0]
			res.Projects = nil
			for _, id := range tt.ids {
				p := base
				p.ProjectID = id
				res.Projects = append(res.Projects, p)
			}

			tables, err := BuildTables(res, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			seen := make(map[string]bool)
			for _, tb := range tables {
				key := strings.ToLower(tb.Name)
				if seen[key] {
					t.Errorf("duplicate table name %s", tb.Name)
				}
				seen[key] = true
				if strings.HasPrefix(tb.Name, ProjectTablePrefix) {
					names = append(names, tb.Name)
				}
			}
			if got := strings.Join(names, ","); got != tt.want {
				t.Errorf("project tables = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSQLiteSink_Write(t *testing.T) {
	tables, err := BuildTables(resultFixture(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "rap.sqlite"), quietLogger())
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	// Second write replaces the first.
	for i := 0; i < 2; i++ {
		if err := sink.Write(ctx, tables); err != nil {
			t.Fatalf("Write() #%d error = %v", i+1, err)
		}
	}

	var n int
	if err := sink.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM "Cluster_summary"`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Cluster_summary rows = %d, want 2", n)
	}

	var density float64
	err = sink.DB().QueryRowContext(ctx, `SELECT "Ef_Density" FROM "z_P1" WHERE "Cluster_Num" = '102'`).Scan(&density)
	if err != nil {
		t.Fatal(err)
	}
	if density != 625 {
		t.Errorf("Ef_Density = %v, want 625", density)
	}

	var complete int
	if err := sink.DB().QueryRowContext(ctx, `SELECT is_survey_complete FROM "Project_summary" WHERE proj_id = 'P1'`).Scan(&complete); err != nil {
		t.Fatal(err)
	}
	if complete != 1 {
		t.Errorf("is_survey_complete = %d, want 1", complete)
	}
}

func TestSinks_RejectEmptyTables(t *testing.T) {
	empty := &core.Result{Plots: core.FlattenPlots(nil)}
	tables, err := BuildTables(empty, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables = %d, want cluster and project tables only", len(tables))
	}

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "rap.sqlite"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer sqlite.Close()
	csvSink, err := NewCSVSink(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []Sink{sqlite, csvSink} {
		err := s.Write(context.Background(), tables)
		if !errors.Is(err, core.ErrEmptyTable) {
			t.Errorf("%s Write() error = %v, want ErrEmptyTable", s.Name(), err)
		}
		if core.ErrorCode(err) != "STO001" {
			t.Errorf("ErrorCode() = %q, want STO001", core.ErrorCode(err))
		}
	}
}

func TestCSVSink_Write(t *testing.T) {
	tables, err := BuildTables(resultFixture(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(context.Background(), tables); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "z_P1.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Cluster_Num,Site_Occ,Ef_Density,Moisture,Silvsys,_BF\n101,0.5,312.5,Moist,CC,100\n102,1,625,,CC,0\n"
	if string(data) != want {
		t.Errorf("z_P1.csv =\n%s\nwant\n%s", data, want)
	}
}

func TestCreateTableSQL(t *testing.T) {
	tb := Table{Name: "z_P1", Columns: []Column{{"Cluster_Num", Text}, {"n", Integer}, {"Ef_Density", Real}}}

	got := createTableSQL(quoteIdent(tb.Name), tb.Columns, sqliteType)
	want := `CREATE TABLE "z_P1" ("Cluster_Num" TEXT, "n" INTEGER, "Ef_Density" REAL)`
	if got != want {
		t.Errorf("sqlite = %s, want %s", got, want)
	}

	got = createTableSQL(pgx.Identifier{"rap", tb.Name}.Sanitize(), tb.Columns, postgresType)
	want = `CREATE TABLE "rap"."z_P1" ("Cluster_Num" TEXT, "n" BIGINT, "Ef_Density" DOUBLE PRECISION)`
	if got != want {
		t.Errorf("postgres = %s, want %s", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(3), "3"},
		{468.75, "468.75"},
		{100.0, "100"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

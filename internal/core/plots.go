package core

import (
	"sort"
)

// PlotRow is one physical plot in a plot table.
type PlotRow struct {
	ProjectID     string
	ClusterNumber string
	PlotNumber    int
	SiteOccupied  int
	Reason        string
	Counts        map[string]int // species column -> tree count
}

// PlotTable is the flattened per-plot view of one silvicultural system.
type PlotTable struct {
	SilvSys SilvSys
	Columns []string // species columns, in output order
	Rows    []PlotRow
}

// PlotColumns returns the species columns for a system given the sorted
// species codes: "_BF" for clearcut, "BF_8sqm"/"BF_16sqm" for shelterwood.
func PlotColumns(s SilvSys, codes []string) []string {
	var cols []string
	for _, code := range codes {
		if s == Shelterwood {
			cols = append(cols, code+"_"+Tier8.Suffix(), code+"_"+Tier16.Suffix())
		} else {
			cols = append(cols, "_"+code)
		}
	}
	return cols
}

// ObservedSpecies returns the union of species codes counted in any plot
// of any cluster, sorted.
func ObservedSpecies(clusters []ClusterSummary) []string {
	seen := make(map[string]bool)
	for _, c := range clusters {
		for _, p := range c.Plots {
			for _, tier := range p.Counts {
				for code := range tier {
					seen[code] = true
				}
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// FlattenPlots produces one table per silvicultural system with one row per
// plot of every cluster of that system. Both tables share the same species
// set so they can be compared side by side; missing counts are 0.
func FlattenPlots(clusters []ClusterSummary) []PlotTable {
	codes := ObservedSpecies(clusters)

	tables := make([]PlotTable, 0, len(SilvSystems))
	for _, s := range SilvSystems {
		t := PlotTable{SilvSys: s, Columns: PlotColumns(s, codes)}
		for _, c := range clusters {
			if c.SilvSys != s {
				continue
			}
			for _, p := range c.Plots {
				t.Rows = append(t.Rows, plotRow(c, p, codes))
			}
		}
		tables = append(tables, t)
	}
	return tables
}

func plotRow(c ClusterSummary, p PlotTally, codes []string) PlotRow {
	row := PlotRow{
		ProjectID:     c.ProjectID,
		ClusterNumber: c.ClusterNumber,
		PlotNumber:    p.Number,
		Reason:        p.Reason,
		Counts:        make(map[string]int),
	}
	if p.Occupied {
		row.SiteOccupied = 1
	}
	for _, code := range codes {
		if c.SilvSys == Shelterwood {
			row.Counts[code+"_"+Tier8.Suffix()] = p.Counts[Tier8][code]
			row.Counts[code+"_"+Tier16.Suffix()] = p.Counts[Tier16][code]
		} else {
			row.Counts["_"+code] = p.Counts[Tier8][code] + p.Counts[Tier16][code]
		}
	}
	return row
}

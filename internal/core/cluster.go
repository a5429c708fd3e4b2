package core

import (
	"fmt"
	"strconv"
	"strings"
)

// UnspecifiedReason is recorded for plots marked occupied that hold no
// countable trees.
const UnspecifiedReason = "Unspecified"

// PlotTally is the per-plot outcome of cluster aggregation.
type PlotTally struct {
	Number   int               `json:"plot"`
	Occupied bool              `json:"occupied"`
	Reason   string            `json:"reason"`
	Counts   [2]map[string]int `json:"counts"` // by tier; nil when unoccupied
	Invalid  []string          `json:"invalid,omitempty"`
}

// Name returns the plot label, e.g. "P3".
func (p PlotTally) Name() string {
	return "P" + strconv.Itoa(p.Number)
}

// Total returns the number of valid trees on the plot.
func (p PlotTally) Total() int {
	n := 0
	for _, tier := range p.Counts {
		for _, c := range tier {
			n += c
		}
	}
	return n
}

// ClusterSummary is the aggregated view of one survey record.
type ClusterSummary struct {
	UID           int     `json:"cluster_uid"`
	RecordKey     string  `json:"record_key"`
	ClusterNumber string  `json:"cluster_number"`
	ProjectID     string  `json:"proj_id"`
	CreationDate  string  `json:"creation_date"`
	SilvSys       SilvSys `json:"silvsys"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`

	Plots            []PlotTally `json:"plots"`
	TotalTrees       int         `json:"total_num_trees"`
	EffectiveDensity float64     `json:"effective_density"`
	InvalidSpecies   []string    `json:"invalid_spc_codes"`
	SiteOcc          float64     `json:"site_occ"`

	Composition          map[string]int     `json:"spc_comp"`
	GroupComposition     map[string]int     `json:"spc_comp_grp"`
	CompositionPerc      map[string]float64 `json:"spc_comp_perc"`
	GroupCompositionPerc map[string]float64 `json:"spc_comp_grp_perc"`

	Moisture       string `json:"ecosite_moisture"`
	Nutrient       string `json:"ecosite_nutrient"`
	EcositeComment string `json:"ecosite_comment"`

	Comments  map[string]string `json:"cluster_comments"`
	Photos    map[string]string `json:"photos"`
	PhotoRefs []PhotoRef        `json:"photo_refs"`
}

// SiteOccData returns 1/0 occupancy per plot label.
func (c ClusterSummary) SiteOccData() map[string]int {
	out := make(map[string]int, len(c.Plots))
	for _, p := range c.Plots {
		if p.Occupied {
			out[p.Name()] = 1
		} else {
			out[p.Name()] = 0
		}
	}
	return out
}

// SiteOccReason returns the unoccupied reason per plot label ("" if occupied).
func (c ClusterSummary) SiteOccReason() map[string]string {
	out := make(map[string]string, len(c.Plots))
	for _, p := range c.Plots {
		out[p.Name()] = p.Reason
	}
	return out
}

// PhotoPaths groups the renamed photo paths by location. public selects the
// public URLs instead of the local paths.
func (c ClusterSummary) PhotoPaths(public bool) map[string][]string {
	out := make(map[string][]string, len(c.Photos))
	for loc := range c.Photos {
		out[loc] = []string{}
	}
	for _, ref := range c.PhotoRefs {
		if public {
			out[ref.Location] = append(out[ref.Location], ref.PublicURL)
		} else {
			out[ref.Location] = append(out[ref.Location], ref.LocalPath)
		}
	}
	return out
}

// Occupied reports whether any plot of the cluster is occupied.
func (c ClusterSummary) Occupied() bool {
	return c.SiteOcc > 0
}

// ClusterAggregator turns survey records into cluster summaries. It holds
// only read-only state and may be shared between goroutines.
type ClusterAggregator struct {
	catalog *SpeciesCatalog
	params  CalcParams
	namer   PhotoNamer
}

// NewClusterAggregator creates an aggregator.
func NewClusterAggregator(catalog *SpeciesCatalog, params CalcParams, namer PhotoNamer) *ClusterAggregator {
	return &ClusterAggregator{catalog: catalog, params: params, namer: namer}
}

// SpeciesCode derives the catalog code from a free-text species name:
// the first three characters of the name padded with a space, trimmed and
// upper-cased. Names shorter than two characters yield ok=false.
func SpeciesCode(name string) (code, padded string, ok bool) {
	r := []rune(name)
	if len(r) < 2 {
		return "", "", false
	}
	padded = name + " "
	r = append(r, ' ')
	return strings.ToUpper(strings.TrimSpace(string(r[:3]))), padded, true
}

// Aggregate builds the summary of one record resolved to projectID.
func (a *ClusterAggregator) Aggregate(rec SurveyRecord, projectID string) (ClusterSummary, Diagnostics) {
	var diags Diagnostics
	key := rec.Key()
	n := a.params.NumPlots

	sum := ClusterSummary{
		UID:            rec.UID,
		RecordKey:      key,
		ClusterNumber:  rec.ClusterNumber,
		ProjectID:      projectID,
		CreationDate:   rec.CreationDate(),
		SilvSys:        rec.SilvSys,
		Lat:            rec.Latitude,
		Lon:            rec.Longitude,
		Plots:          make([]PlotTally, n),
		InvalidSpecies: []string{},
		Moisture:       rec.Moisture,
		Nutrient:       rec.Nutrient,
		EcositeComment: StripApostrophes(rec.EcositeComment),
		Comments: map[string]string{
			"cluster": StripApostrophes(rec.GeneralComment),
			"ecosite": StripApostrophes(rec.EcositeComment),
		},
		Photos: map[string]string{"cluster": rec.ClusterPhoto},
	}

	var tierTotals [2]int
	occupied := 0

	for i := 0; i < n; i++ {
		plot := rec.Plots[i]
		tally := PlotTally{Number: i + 1}
		label := tally.Name()
		sum.Comments[label] = StripApostrophes(plot.Comment)
		sum.Photos[label] = plot.Photos

		if plot.Unoccupied {
			tally.Reason = plot.UnoccupiedReason
			sum.Plots[i] = tally
			continue
		}

		counts := [2]map[string]int{{}, {}}
		for s := 1; s <= rec.SilvSys.SlotCount(); s++ {
			slot := plot.Slots[s-1]
			code, padded, ok := SpeciesCode(slot.Name)
			if !ok {
				continue
			}
			if !a.catalog.Contains(code) {
				tally.Invalid = append(tally.Invalid, padded)
				sum.InvalidSpecies = append(sum.InvalidSpecies, padded)
				diags.Add(DiagInvalidSpecies, key, "invalid species name %q on %s of cluster %s; not counted",
					slot.Name, label, rec.ClusterNumber)
				continue
			}
			count, skip, err := ParseCount(slot.Count)
			if err != nil {
				diags.Add(DiagBadCount, key, "%v for %s on %s of cluster %s; not counted",
					err, code, label, rec.ClusterNumber)
				continue
			}
			if skip {
				continue
			}
			tier := rec.SilvSys.TierOf(s)
			counts[tier][code] += count
			tierTotals[tier] += count
		}

		tally.Counts = counts
		if tally.Total() == 0 {
			tally.Counts = [2]map[string]int{}
			tally.Reason = UnspecifiedReason
		} else {
			tally.Occupied = true
			occupied++
		}
		sum.Plots[i] = tally
	}

	sum.TotalTrees = tierTotals[Tier8] + tierTotals[Tier16]
	sum.EffectiveDensity = EffectiveDensity(tierTotals[Tier8], tierTotals[Tier16], a.params.MaxTreesPerSqm)
	sum.SiteOcc = float64(occupied) / float64(n)

	sum.Composition, sum.GroupComposition = a.composition(sum.Plots)
	tallied := 0
	for _, v := range sum.Composition {
		tallied += v
	}
	if tallied != sum.TotalTrees {
		diags.Add(DiagTallyMismatch, key, "cluster %s composition tallies %d trees but %d were counted",
			rec.ClusterNumber, tallied, sum.TotalTrees)
	}
	sum.CompositionPerc = percentages(sum.Composition, sum.TotalTrees)
	sum.GroupCompositionPerc = percentages(sum.GroupComposition, sum.TotalTrees)

	date := sum.CreationDate
	sum.PhotoRefs = append(sum.PhotoRefs, a.namer.NameAll(projectID, rec.ClusterNumber, "cluster", date, rec.ClusterPhoto)...)
	for i := 0; i < n; i++ {
		label := sum.Plots[i].Name()
		sum.PhotoRefs = append(sum.PhotoRefs, a.namer.NameAll(projectID, rec.ClusterNumber, label, date, rec.Plots[i].Photos)...)
	}

	for i := range diags {
		diags[i].ProjectID = projectID
		diags[i].ClusterNumber = rec.ClusterNumber
	}
	return sum, diags
}

// composition sums species and group counts over all plots and tiers,
// dropping zero entries.
func (a *ClusterAggregator) composition(plots []PlotTally) (map[string]int, map[string]int) {
	spc := make(map[string]int)
	grp := make(map[string]int)
	for _, p := range plots {
		for _, tier := range p.Counts {
			for code, c := range tier {
				if c == 0 {
					continue
				}
				spc[code] += c
				if g, ok := a.catalog.Group(code); ok {
					grp[g] += c
				}
			}
		}
	}
	return spc, grp
}

// percentages converts counts to percentages of total rounded to 1 decimal.
func percentages(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	if total == 0 {
		return out
	}
	for k, v := range counts {
		out[k] = Round(float64(v)*100/float64(total), 1)
	}
	return out
}

// EffectiveDensity returns stems per hectare from the 8 m² and 16 m² tier
// totals. Each tier total is capped at its area × 8 plots × maxPerSqm first.
func EffectiveDensity(c8, c16 int, maxPerSqm float64) float64 {
	const plots = 8
	cap8 := Tier8.Area() * plots * maxPerSqm
	cap16 := Tier16.Area() * plots * maxPerSqm

	f8 := float64(c8)
	if f8 > cap8 {
		f8 = cap8
	}
	f16 := float64(c16)
	if f16 > cap16 {
		f16 = cap16
	}
	return f8*10000/(Tier8.Area()*plots) + f16*10000/(Tier16.Area()*plots)
}

// String implements fmt.Stringer for log output.
func (c ClusterSummary) String() string {
	return fmt.Sprintf("%s/C%s (%s)", c.ProjectID, c.ClusterNumber, c.RecordKey)
}

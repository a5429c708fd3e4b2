package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// SilvSys identifies the silvicultural system a survey form belongs to.
type SilvSys string

const (
	Clearcut    SilvSys = "CC"
	Shelterwood SilvSys = "SH"
)

// Fixed survey geometry. Every cluster has up to MaxPlots plots and every
// plot has up to MaxSlots species slots.
const (
	MaxPlots = 8
	MaxSlots = 6
)

// SilvSystems lists the supported systems in output order.
var SilvSystems = []SilvSys{Clearcut, Shelterwood}

// Valid reports whether s is a supported system.
func (s SilvSys) Valid() bool {
	return s == Clearcut || s == Shelterwood
}

// SlotCount returns how many species slots a plot of this system records.
func (s SilvSys) SlotCount() int {
	if s == Shelterwood {
		return 6
	}
	return 4
}

// TierOf returns the area tier of a 1-based slot number.
// Shelterwood slots 4-6 are tallied on the 16 m² tier, everything else on 8 m².
func (s SilvSys) TierOf(slot int) Tier {
	if s == Shelterwood && slot > 3 {
		return Tier16
	}
	return Tier8
}

// KeyPrefix is the lowercase prefix used in record keys ("cc", "sh").
func (s SilvSys) KeyPrefix() string {
	return strings.ToLower(string(s))
}

// PlotSizeM2 returns the nominal plot size reported at project level.
func (s SilvSys) PlotSizeM2() int {
	if s == Shelterwood {
		return 16
	}
	return 8
}

// SilvSysFromKey extracts the system from a record key such as "sh12".
func SilvSysFromKey(key string) (SilvSys, bool) {
	if len(key) < 2 {
		return "", false
	}
	s := SilvSys(strings.ToUpper(key[:2]))
	return s, s.Valid()
}

// Tier is the plot area tier a tree count is tallied on.
type Tier int

const (
	Tier8 Tier = iota
	Tier16
)

// Area returns the tier's plot area in square metres.
func (t Tier) Area() float64 {
	if t == Tier16 {
		return 16
	}
	return 8
}

// Suffix returns the column suffix used for the tier in plot tables.
func (t Tier) Suffix() string {
	if t == Tier16 {
		return "16sqm"
	}
	return "8sqm"
}

// Slot is one species entry on a plot: the free-text species name as
// entered in the field and the raw tree count.
type Slot struct {
	Name  string
	Count string
}

// Plot holds the raw observations for one plot of a cluster.
type Plot struct {
	Unoccupied       bool
	UnoccupiedReason string
	Slots            [MaxSlots]Slot
	Comment          string
	Photos           string // '|' separated photo references
}

// SurveyRecord is one field-collected cluster survey. Records are built once
// during ingestion and never modified by the engine.
type SurveyRecord struct {
	UID               int
	SilvSys           SilvSys
	ClusterNumber     string
	UserProjectID     string
	OverrideProjectID string
	Latitude          float64
	Longitude         float64
	CreationDateTime  string
	Plots             [MaxPlots]Plot

	Moisture       string
	Nutrient       string
	EcositeComment string
	ClusterPhoto   string
	GeneralComment string

	Surveyors            string
	ForestManagementUnit string
	DistrictName         string
}

// Key returns the record key, e.g. "cc1".
func (r SurveyRecord) Key() string {
	return r.SilvSys.KeyPrefix() + strconv.Itoa(r.UID)
}

// Point returns the record location as an orb point (lon, lat).
func (r SurveyRecord) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// HasLocation reports whether the record carries coordinates.
func (r SurveyRecord) HasLocation() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// CreationDate returns the YYYY-MM-DD prefix of the creation timestamp.
func (r SurveyRecord) CreationDate() string {
	if len(r.CreationDateTime) < 10 {
		return r.CreationDateTime
	}
	return r.CreationDateTime[:10]
}

// Boundary attribute names. Attribute keys are stored upper-cased.
const (
	AttrSilvSys    = "SILVSYS"
	AttrNumCluster = "NUMCLUSTER"
	AttrAreaHa     = "AREA_HA"
	AttrFMU        = "FMU"
	AttrDistrict   = "DISTRICT"
	AttrLat        = "LAT"
	AttrLon        = "LON"
	AttrYrDep      = "YRDEP"
	AttrDepletionF = "DEPLETIONF"
	AttrYrOrg      = "YRORG"
	AttrSGR        = "SGR"
	AttrTargetFU   = "TARGETFU"
	AttrTargetSpc  = "TARGETSPC"
	AttrTargetSO   = "TARGETSO"
	AttrSFLAsYr    = "SFL_AS_YR"
	AttrSFLAsMeth  = "SFL_ASMETH"
	AttrSFLSpComp  = "SFL_SPCOMP"
	AttrSFLSO      = "SFL_SO"
	AttrSFLFU      = "SFL_FU"
	AttrSFLEffDen  = "SFL_EFFDEN"
)

// ProjectBoundary is a project polygon with its attribute table row.
type ProjectBoundary struct {
	ProjectID string
	Lat       float64
	Lon       float64
	Geometry  orb.Geometry
	Attrs     map[string]string
}

// Attr returns an attribute value by key (case-insensitive), or "".
func (b ProjectBoundary) Attr(key string) string {
	return b.Attrs[strings.ToUpper(key)]
}

// SilvSys returns the boundary's SILVSYS attribute.
func (b ProjectBoundary) SilvSys() SilvSys {
	return SilvSys(strings.ToUpper(strings.TrimSpace(b.Attr(AttrSilvSys))))
}

// NumClusters returns the planned cluster count, or 0 when absent or unparseable.
func (b ProjectBoundary) NumClusters() int {
	v := strings.TrimSpace(b.Attr(AttrNumCluster))
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

// Contains reports whether p falls inside the boundary polygon.
// Points on an edge are considered inside.
func (b ProjectBoundary) Contains(p orb.Point) bool {
	switch g := b.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	default:
		return false
	}
}

// Centroid envelope for the province. Boundaries outside it are rejected.
const (
	MinLat = 41.0
	MaxLat = 57.0
	MinLon = -96.0
	MaxLon = -73.0
)

// InEnvelope reports whether the boundary centroid lies strictly inside the
// accepted latitude/longitude envelope.
func (b ProjectBoundary) InEnvelope() bool {
	return b.Lat > MinLat && b.Lat < MaxLat && b.Lon > MinLon && b.Lon < MaxLon
}

// CalcParams holds the numeric parameters of the aggregation.
type CalcParams struct {
	NumPlots       int     // plots per cluster used for occupancy
	MaxTreesPerSqm float64 // density cap per square metre
	Confidence     float64 // confidence level for intervals
}

// DefaultCalcParams returns the standard survey parameters.
func DefaultCalcParams() CalcParams {
	return CalcParams{
		NumPlots:       8,
		MaxTreesPerSqm: 0.5,
		Confidence:     0.95,
	}
}

// Validate checks parameter ranges.
func (p CalcParams) Validate() error {
	if p.NumPlots < 1 || p.NumPlots > MaxPlots {
		return fmt.Errorf("%w: plot count %d must be 1-%d", ErrInvalidParams, p.NumPlots, MaxPlots)
	}
	if p.MaxTreesPerSqm <= 0 {
		return fmt.Errorf("%w: max trees per m² must be positive", ErrInvalidParams)
	}
	if p.Confidence <= 0 || p.Confidence >= 1 {
		return fmt.Errorf("%w: confidence %v must be between 0 and 1", ErrInvalidParams, p.Confidence)
	}
	return nil
}

package core

// resolver.go assigns every survey record to a project.
//
// Three candidate ids are considered for each record:
//  1. the developer override, unless blank or NoOverride
//  2. the id of the boundary containing the record location
//  3. the id the surveyor typed in the field
//
// A candidate is only taken over the user id when it differs from it, so an
// override equal to the user id falls through to the spatial match.

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

// NoOverride is the override value meaning "use the GPS location".
const NoOverride = "Use GPS"

// ResolutionSource records which candidate produced the final project id.
type ResolutionSource string

const (
	SourceOverride ResolutionSource = "override"
	SourceGeometry ResolutionSource = "geometry"
	SourceUser     ResolutionSource = "user"
)

// Resolution is the outcome for one record.
type Resolution struct {
	RecordKey string           `json:"record_key"`
	ProjectID string           `json:"proj_id"`
	Source    ResolutionSource `json:"source"`
	GeoMatch  string           `json:"geo_match,omitempty"`
}

// ResolveResult holds the resolutions of a batch, aligned with the input
// records, plus the batch-level checks.
type ResolveResult struct {
	Resolutions   []Resolution
	Diagnostics   Diagnostics
	ProjectCounts map[string]int // upper-cased project id -> record count
}

// ProjectResolver matches records to project boundaries. It is read-only
// after construction and safe for concurrent use.
type ProjectResolver struct {
	boundaries []ProjectBoundary
	bounds     []orb.Bound
	byID       map[string]int
}

// ValidateBoundaries checks the boundary set for fatal problems: empty or
// duplicate project ids (case-insensitive) and centroids outside the
// accepted envelope. All problems are returned together.
func ValidateBoundaries(boundaries []ProjectBoundary) error {
	var errs []error
	seen := make(map[string]string, len(boundaries))
	outside := 0

	for i, b := range boundaries {
		id := strings.TrimSpace(b.ProjectID)
		if id == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("boundary %d", i+1),
				Message: "project id is empty",
				Err:     ErrMissingProjectID,
			})
			continue
		}
		key := FoldID(id)
		if first, dup := seen[key]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("boundary %d", i+1),
				Value:   id,
				Message: fmt.Sprintf("project id duplicates %q", first),
				Err:     ErrDuplicateProject,
			})
			continue
		}
		seen[key] = id

		if !b.InEnvelope() {
			outside++
			errs = append(errs, ValidationError{
				Field:   id,
				Value:   fmt.Sprintf("LAT=%v LON=%v", b.Lat, b.Lon),
				Message: "centroid outside accepted envelope",
				Err:     ErrOutsideEnvelope,
			})
		}
	}

	if outside > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d boundaries", ErrOutsideEnvelope, outside, len(boundaries)))
	}
	return errors.Join(errs...)
}

// NewProjectResolver validates the boundaries and builds a resolver.
// Boundaries are ordered by project id, so when a location falls inside
// several polygons the smallest id wins.
func NewProjectResolver(boundaries []ProjectBoundary) (*ProjectResolver, error) {
	if err := ValidateBoundaries(boundaries); err != nil {
		return nil, err
	}

	sorted := make([]ProjectBoundary, len(boundaries))
	copy(sorted, boundaries)
	for i := range sorted {
		sorted[i].ProjectID = strings.TrimSpace(sorted[i].ProjectID)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProjectID < sorted[j].ProjectID
	})

	r := &ProjectResolver{
		boundaries: sorted,
		bounds:     make([]orb.Bound, len(sorted)),
		byID:       make(map[string]int, len(sorted)),
	}
	for i, b := range sorted {
		if b.Geometry != nil {
			r.bounds[i] = b.Geometry.Bound()
		}
		r.byID[FoldID(b.ProjectID)] = i
	}
	return r, nil
}

// Boundaries returns the boundaries in resolution order.
func (r *ProjectResolver) Boundaries() []ProjectBoundary {
	return r.boundaries
}

// Lookup finds a boundary by project id, ignoring case.
func (r *ProjectResolver) Lookup(id string) (ProjectBoundary, bool) {
	i, ok := r.byID[FoldID(id)]
	if !ok {
		return ProjectBoundary{}, false
	}
	return r.boundaries[i], true
}

// Locate returns the ids of every boundary containing p, in resolution order.
func (r *ProjectResolver) Locate(p orb.Point) []string {
	var ids []string
	for i, b := range r.boundaries {
		if b.Geometry == nil || !r.bounds[i].Contains(p) {
			continue
		}
		if b.Contains(p) {
			ids = append(ids, b.ProjectID)
		}
	}
	return ids
}

// DecideProjectID applies the precedence rule to the three candidates.
func DecideProjectID(user, override, geo string) (string, ResolutionSource) {
	user = strings.TrimSpace(user)
	override = strings.TrimSpace(override)
	geo = strings.TrimSpace(geo)

	if override != "" && override != NoOverride && override != user {
		return override, SourceOverride
	}
	if geo != "" && geo != user {
		return geo, SourceGeometry
	}
	return user, SourceUser
}

// Resolve determines the project id of one record.
func (r *ProjectResolver) Resolve(rec SurveyRecord) (Resolution, Diagnostics) {
	var diags Diagnostics
	key := rec.Key()

	var geo string
	if rec.HasLocation() {
		matches := r.Locate(rec.Point())
		if len(matches) > 0 {
			geo = matches[0]
		}
		if len(matches) > 1 {
			diags.Add(DiagOverlap, key, "location falls inside %d boundaries (%s); using %s",
				len(matches), strings.Join(matches, ", "), geo)
		}
	} else {
		diags.Add(DiagNoLocation, key, "record has no coordinates; spatial match skipped")
	}

	id, source := DecideProjectID(rec.UserProjectID, rec.OverrideProjectID, geo)
	res := Resolution{
		RecordKey: key,
		ProjectID: id,
		Source:    source,
		GeoMatch:  geo,
	}

	if id == "" {
		diags.Add(DiagUnresolved, key, "no project id could be determined for cluster %s", rec.ClusterNumber)
		return res, diags
	}

	if b, ok := r.Lookup(id); ok && b.SilvSys() != rec.SilvSys {
		diags.Add(DiagSilvSysMismatch, key, "cluster %s is a %s survey but project %s is %s",
			rec.ClusterNumber, rec.SilvSys, b.ProjectID, b.SilvSys())
	}

	for i := range diags {
		diags[i].ProjectID = id
		diags[i].ClusterNumber = rec.ClusterNumber
	}
	return res, diags
}

// ResolveAll resolves a batch and runs the cross-checks: unknown project ids
// are reported once each with their occurrence count.
func (r *ProjectResolver) ResolveAll(records []SurveyRecord) ResolveResult {
	result := ResolveResult{
		Resolutions:   make([]Resolution, len(records)),
		ProjectCounts: make(map[string]int),
	}

	for i, rec := range records {
		res, diags := r.Resolve(rec)
		result.Resolutions[i] = res
		result.Diagnostics = append(result.Diagnostics, diags...)
		if res.ProjectID != "" {
			result.ProjectCounts[strings.ToUpper(res.ProjectID)]++
		}
	}

	ids := make([]string, 0, len(result.ProjectCounts))
	for id := range result.ProjectCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := r.Lookup(id); ok {
			continue
		}
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Code:      DiagUnknownProject,
			ProjectID: id,
			Message:   fmt.Sprintf("project id %s not found in boundary layer (%d records)", id, result.ProjectCounts[id]),
		})
	}

	return result
}

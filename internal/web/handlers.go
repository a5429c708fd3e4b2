package web

import (
	"bytes"
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/JonMunkholm/RAP/internal/store"
)

// projectListItem is the compact project view returned by /api/projects.
type projectListItem struct {
	ProjectID        string     `json:"proj_id"`
	SilvSys          string     `json:"silvsys"`
	NumClusters      int        `json:"num_clusters"`
	ClustersSurveyed int        `json:"num_clusters_surveyed"`
	SurveyComplete   bool       `json:"is_survey_complete"`
	EffectiveDensity core.Stats `json:"effective_density"`
	SiteOccupancy    core.Stats `json:"site_occupancy"`
	Diagnostics      int        `json:"diagnostics"`
}

func listItem(p core.ProjectSummary) projectListItem {
	return projectListItem{
		ProjectID:        p.ProjectID,
		SilvSys:          p.SilvSys,
		NumClusters:      p.NumClusters,
		ClustersSurveyed: p.ClustersSurveyed,
		SurveyComplete:   p.SurveyComplete,
		EffectiveDensity: p.EffectiveDensity,
		SiteOccupancy:    p.SiteOccupancy,
		Diagnostics:      len(p.Diagnostics),
	}
}

// loaded returns the current result or writes errNoResult.
func (s *Server) loaded(w http.ResponseWriter, r *http.Request) (*core.Result, bool) {
	res := s.current()
	if res == nil {
		s.respondError(w, r, errNoResult, http.StatusServiceUnavailable)
		return nil, false
	}
	return res, true
}

// project looks up the {projectID} route parameter.
func (s *Server) project(w http.ResponseWriter, r *http.Request) (*core.Result, core.ProjectSummary, bool) {
	res, ok := s.loaded(w, r)
	if !ok {
		return nil, core.ProjectSummary{}, false
	}
	p, ok := res.Project(chi.URLParam(r, "projectID"))
	if !ok {
		s.respondError(w, r, errProjectNotFound, http.StatusNotFound)
		return nil, core.ProjectSummary{}, false
	}
	return res, p, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.current() == nil {
		status = "empty"
	}
	writeJSON(w, map[string]string{"status": status})
}

// handleListProjects returns every project, optionally filtered by
// ?silvsys= and ?complete=true|false.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loaded(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	silvsys := strings.ToUpper(q.Get("silvsys"))
	complete := q.Get("complete")

	items := make([]projectListItem, 0, len(res.Projects))
	for _, p := range res.Projects {
		if silvsys != "" && !strings.EqualFold(p.SilvSys, silvsys) {
			continue
		}
		if complete != "" && (complete == "true") != p.SurveyComplete {
			continue
		}
		items = append(items, listItem(p))
	}
	writeJSON(w, items)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if _, p, ok := s.project(w, r); ok {
		writeJSON(w, p)
	}
}

func (s *Server) handleProjectClusters(w http.ResponseWriter, r *http.Request) {
	if res, p, ok := s.project(w, r); ok {
		writeJSON(w, orEmpty(res.ClustersOf(p.ProjectID)))
	}
}

// handleListClusters returns cluster summaries, optionally for one project
// (?project=) or only those with invalid species codes (?invalid=true).
func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loaded(w, r)
	if !ok {
		return
	}

	clusters := res.Clusters
	if id := r.URL.Query().Get("project"); id != "" {
		clusters = res.ClustersOf(id)
	}
	if r.URL.Query().Get("invalid") == "true" {
		clusters = slices.DeleteFunc(slices.Clone(clusters), func(c core.ClusterSummary) bool {
			return len(c.InvalidSpecies) == 0
		})
	}
	writeJSON(w, orEmpty(clusters))
}

// handleDiagnostics returns run diagnostics, filtered by ?code= (comma
// separated) and ?project=, with per-code counts.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loaded(w, r)
	if !ok {
		return
	}

	diags := res.Diagnostics
	if codes := r.URL.Query().Get("code"); codes != "" {
		want := strings.Split(strings.ToUpper(codes), ",")
		diags = slices.DeleteFunc(slices.Clone(diags), func(d core.Diagnostic) bool {
			return !slices.Contains(want, d.Code)
		})
	}
	if id := r.URL.Query().Get("project"); id != "" {
		key := core.FoldID(id)
		diags = slices.DeleteFunc(slices.Clone(diags), func(d core.Diagnostic) bool {
			return core.FoldID(d.ProjectID) != key
		})
	}

	writeJSON(w, map[string]any{
		"counts":      diags.CountByCode(),
		"diagnostics": orEmpty(diags),
	})
}

// handleExportPlots streams Plot_summary_<silvsys> as CSV.
func (s *Server) handleExportPlots(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loaded(w, r)
	if !ok {
		return
	}

	sys := core.SilvSys(strings.ToUpper(chi.URLParam(r, "silvsys")))
	if !sys.Valid() {
		s.respondError(w, r, errUnknownSilvSys, http.StatusBadRequest)
		return
	}
	s.exportTable(w, r, res, store.PlotTablePrefix+sys.KeyPrefix())
}

// handleExportProject streams the per-project z_ table as CSV.
func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	if res, p, ok := s.project(w, r); ok {
		s.exportTable(w, r, res, store.ProjectTableName(p.ProjectID))
	}
}

func (s *Server) exportTable(w http.ResponseWriter, r *http.Request, res *core.Result, name string) {
	tables, err := store.BuildTables(res, nil)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	i := slices.IndexFunc(tables, func(t store.Table) bool { return t.Name == name })
	if i < 0 {
		s.respondError(w, r, errTableNotFound, http.StatusNotFound)
		return
	}

	// Buffer so a write error can still become a proper status.
	var buf bytes.Buffer
	if err := store.WriteCSV(&buf, tables[i]); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	w.Write(buf.Bytes())
}

// sortedProjects orders projects incomplete first, then by id.
func sortedProjects(ps []core.ProjectSummary) []core.ProjectSummary {
	out := slices.Clone(ps)
	slices.SortStableFunc(out, func(a, b core.ProjectSummary) int {
		if a.SurveyComplete != b.SurveyComplete {
			if a.SurveyComplete {
				return 1
			}
			return -1
		}
		return cmp.Compare(core.FoldID(a.ProjectID), core.FoldID(b.ProjectID))
	})
	return out
}

// orEmpty keeps JSON arrays from encoding as null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

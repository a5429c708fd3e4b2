package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/RAP/internal/core"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loaded(w, r)
	if !ok {
		return
	}
	templ.Handler(indexPage(res)).ServeHTTP(w, r)
}

func (s *Server) handleProjectPage(w http.ResponseWriter, r *http.Request) {
	res, p, ok := s.project(w, r)
	if !ok {
		return
	}
	templ.Handler(projectPage(p, res.ClustersOf(p.ProjectID))).ServeHTTP(w, r)
}

// htmlWriter accumulates the first write error so views stay linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) cell(s string) {
	h.raw("<td>")
	h.text(s)
	h.raw("</td>")
}

func (h *htmlWriter) head(cols ...string) {
	h.raw("<thead><tr>")
	for _, c := range cols {
		h.raw("<th>")
		h.text(c)
		h.raw("</th>")
	}
	h.raw("</tr></thead>")
}

func layout(title string, body func(*htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(`</title><style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}` +
			`td,th{border:1px solid #ccc;padding:.25em .5em;text-align:left}.warn{color:#a40}</style></head><body>`)
		body(h)
		h.raw("</body></html>")
		return h.err
	})
}

func formatStats(st core.Stats) string {
	if st.Empty() {
		return "-"
	}
	return fmt.Sprintf("%.1f ± %.1f (n=%d)", st.Mean, st.CI, st.N)
}

func indexPage(res *core.Result) templ.Component {
	return layout("Regeneration projects", func(h *htmlWriter) {
		h.raw("<h1>Regeneration projects</h1><p>")
		h.text(fmt.Sprintf("%d projects, %d clusters, %d diagnostics",
			len(res.Projects), len(res.Clusters), len(res.Diagnostics)))
		h.raw("</p><table>")
		h.head("Project", "SilvSys", "Surveyed", "Complete", "Effective density", "Site occupancy")
		h.raw("<tbody>")
		for _, p := range sortedProjects(res.Projects) {
			h.raw(`<tr><td><a href="/projects/`)
			h.text(url.PathEscape(p.ProjectID))
			h.raw(`">`)
			h.text(p.ProjectID)
			h.raw("</a></td>")
			h.cell(p.SilvSys)
			h.cell(fmt.Sprintf("%d / %d", p.ClustersSurveyed, p.NumClusters))
			if p.SurveyComplete {
				h.cell("yes")
			} else {
				h.raw(`<td class="warn">no</td>`)
			}
			h.cell(formatStats(p.EffectiveDensity))
			h.cell(formatStats(p.SiteOccupancy))
			h.raw("</tr>")
		}
		h.raw("</tbody></table>")
	})
}

func projectPage(p core.ProjectSummary, clusters []core.ClusterSummary) templ.Component {
	return layout(p.ProjectID, func(h *htmlWriter) {
		h.raw("<h1>")
		h.text(p.ProjectID)
		h.raw("</h1><p>")
		h.text(fmt.Sprintf("%s, %s ha, %s / %s. Surveyed %s to %s by %d assessors.",
			p.SilvSys, p.AreaHa, p.FMU, p.District, p.AssessStartDate, p.AssessLastDate, len(p.Assessors)))
		h.raw("</p>")

		h.raw("<h2>Summary</h2><table>")
		h.head("Measure", "Value")
		h.raw("<tbody>")
		for _, row := range [][2]string{
			{"Clusters surveyed", fmt.Sprintf("%d of %d", p.ClustersSurveyed, p.NumClusters)},
			{"Clusters occupied", strconv.Itoa(p.NumClustersOccupied)},
			{"Effective density (trees/ha)", formatStats(p.EffectiveDensity)},
			{"Site occupancy (%)", formatStats(p.SiteOccupancy)},
		} {
			h.raw("<tr>")
			h.cell(row[0])
			h.cell(row[1])
			h.raw("</tr>")
		}
		h.raw("</tbody></table>")

		h.raw("<h2>Species composition</h2><table>")
		h.head("Species", "Mean %", "CI")
		h.raw("<tbody>")
		for _, code := range sortedKeys(p.Species) {
			st := p.Species[code]
			h.raw("<tr>")
			h.cell(code)
			h.cell(strconv.FormatFloat(st.Mean, 'f', 1, 64))
			h.cell(strconv.FormatFloat(st.CI, 'f', 1, 64))
			h.raw("</tr>")
		}
		h.raw("</tbody></table>")

		h.raw("<h2>Clusters</h2><table>")
		h.head("Cluster", "Date", "Trees", "Effective density", "Site occupancy", "Moisture", "Photos")
		h.raw("<tbody>")
		for _, c := range clusters {
			h.raw("<tr>")
			h.cell(c.ClusterNumber)
			h.cell(c.CreationDate)
			h.cell(strconv.Itoa(c.TotalTrees))
			h.cell(strconv.FormatFloat(c.EffectiveDensity, 'f', 0, 64))
			h.cell(strconv.FormatFloat(c.SiteOcc, 'f', 1, 64))
			h.cell(c.Moisture)
			h.raw("<td>")
			for i, ref := range c.PhotoRefs {
				if i > 0 {
					h.raw(" ")
				}
				h.raw(`<a href="`)
				h.text(ref.PublicURL)
				h.raw(`">`)
				h.text(ref.Location)
				h.raw("</a>")
			}
			h.raw("</td></tr>")
		}
		h.raw("</tbody></table>")

		if len(p.AnalysisComments) > 0 {
			h.raw(`<h2>Analysis comments</h2><ul class="warn">`)
			for _, c := range p.AnalysisComments {
				h.raw("<li>")
				h.text(c)
				h.raw("</li>")
			}
			h.raw("</ul>")
		}
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

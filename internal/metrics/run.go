// Package metrics exposes Prometheus metrics for survey runs
package metrics

import (
	"time"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunMetrics contains Prometheus metrics for pipeline runs
type RunMetrics struct {
	registry *prometheus.Registry

	// Run lifecycle
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRunTime   prometheus.Gauge
	ingestedTotal *prometheus.CounterVec

	// Results of the last run
	clusters       *prometheus.GaugeVec
	projects       *prometheus.GaugeVec
	invalidSpecies prometheus.Gauge
	diagnostics    *prometheus.GaugeVec
	photos         *prometheus.GaugeVec
}

// NewRunMetrics creates and registers run metrics
func NewRunMetrics(registry *prometheus.Registry) (*RunMetrics, error) {
	m := &RunMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *RunMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rap_runs_total",
			Help: "Total number of survey analysis runs",
		},
		[]string{"status"},
	)

	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "rap_run_duration_seconds",
			Help: "Time taken by a full survey analysis run",
			// 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	m.lastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rap_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)

	m.ingestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rap_survey_rows_total",
			Help: "Survey rows read, by form and outcome",
		},
		[]string{"form", "outcome"}, // outcome: kept, skipped, test
	)

	m.clusters = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rap_clusters",
			Help: "Clusters summarized by the last run",
		},
		[]string{"silvsys"},
	)

	m.projects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rap_projects",
			Help: "Projects in the last run",
		},
		[]string{"state"}, // state: total, surveyed, complete
	)

	m.invalidSpecies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rap_invalid_species_codes",
			Help: "Invalid species entries found by the last run",
		},
	)

	m.diagnostics = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rap_diagnostics",
			Help: "Diagnostics raised by the last run, by code",
		},
		[]string{"code"},
	)

	m.photos = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rap_photos",
			Help: "Photos handled by the last sync, by outcome",
		},
		[]string{"outcome"}, // outcome: copied, skipped, missing
	)
}

// Describe implements the Collector interface
func (m *RunMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.lastRunTime.Describe(ch)
	m.ingestedTotal.Describe(ch)
	m.clusters.Describe(ch)
	m.projects.Describe(ch)
	m.invalidSpecies.Describe(ch)
	m.diagnostics.Describe(ch)
	m.photos.Describe(ch)
}

// Collect implements the Collector interface
func (m *RunMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.lastRunTime.Collect(ch)
	m.ingestedTotal.Collect(ch)
	m.clusters.Collect(ch)
	m.projects.Collect(ch)
	m.invalidSpecies.Collect(ch)
	m.diagnostics.Collect(ch)
	m.photos.Collect(ch)
}

// RecordRun records a finished run
func (m *RunMetrics) RecordRun(status string, d time.Duration, finished time.Time) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.lastRunTime.Set(float64(finished.Unix()))
}

// RecordIngest records the row outcomes of one survey form
func (m *RunMetrics) RecordIngest(form string, kept, skipped, test int) {
	m.ingestedTotal.WithLabelValues(form, "kept").Add(float64(kept))
	m.ingestedTotal.WithLabelValues(form, "skipped").Add(float64(skipped))
	m.ingestedTotal.WithLabelValues(form, "test").Add(float64(test))
}

// RecordResult replaces the last-run gauges with the figures of res
func (m *RunMetrics) RecordResult(res *core.Result) {
	m.clusters.Reset()
	for _, s := range core.SilvSystems {
		m.clusters.WithLabelValues(string(s)).Set(0)
	}
	invalid := 0
	for _, c := range res.Clusters {
		m.clusters.WithLabelValues(string(c.SilvSys)).Inc()
		invalid += len(c.InvalidSpecies)
	}
	m.invalidSpecies.Set(float64(invalid))

	surveyed, complete := 0, 0
	for _, p := range res.Projects {
		if p.ClustersSurveyed > 0 {
			surveyed++
		}
		if p.SurveyComplete {
			complete++
		}
	}
	m.projects.WithLabelValues("total").Set(float64(len(res.Projects)))
	m.projects.WithLabelValues("surveyed").Set(float64(surveyed))
	m.projects.WithLabelValues("complete").Set(float64(complete))

	m.diagnostics.Reset()
	for code, n := range res.Diagnostics.CountByCode() {
		m.diagnostics.WithLabelValues(code).Set(float64(n))
	}
}

// RecordPhotos records the outcome of a photo sync
func (m *RunMetrics) RecordPhotos(copied, skipped, missing int) {
	m.photos.WithLabelValues("copied").Set(float64(copied))
	m.photos.WithLabelValues("skipped").Set(float64(skipped))
	m.photos.WithLabelValues("missing").Set(float64(missing))
}

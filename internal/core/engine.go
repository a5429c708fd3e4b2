package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Input is everything a run consumes.
type Input struct {
	Records    []SurveyRecord
	Boundaries []ProjectBoundary
	Catalog    *SpeciesCatalog

	// Diagnostics raised while reading the records. Those keyed by a record
	// key follow the record into its project's analysis comments.
	Diagnostics Diagnostics
}

// Result is everything a run produces. Clusters are in record order and
// projects in resolution (project id) order.
type Result struct {
	Clusters    []ClusterSummary
	Projects    []ProjectSummary
	Plots       []PlotTable
	Resolution  ResolveResult
	Diagnostics Diagnostics // every diagnostic raised by the run
	Catalog     *SpeciesCatalog
}

// Project returns the summary of a project by id, ignoring case.
func (r *Result) Project(id string) (ProjectSummary, bool) {
	key := FoldID(id)
	for _, p := range r.Projects {
		if FoldID(p.ProjectID) == key {
			return p, true
		}
	}
	return ProjectSummary{}, false
}

// ClustersOf returns the cluster summaries resolved to a project.
func (r *Result) ClustersOf(id string) []ClusterSummary {
	key := FoldID(id)
	var out []ClusterSummary
	for _, c := range r.Clusters {
		if FoldID(c.ProjectID) == key {
			out = append(out, c)
		}
	}
	return out
}

// Engine runs the resolve → cluster → project pipeline.
type Engine struct {
	params  CalcParams
	namer   PhotoNamer
	workers int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of concurrent aggregations.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithPhotoNamer sets how photo references are renamed.
func WithPhotoNamer(n PhotoNamer) Option {
	return func(e *Engine) { e.namer = n }
}

// WithLogger sets the logger used for run progress.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine after validating params.
func NewEngine(params CalcParams, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		params:  params,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes one batch. Boundary validation failures are fatal and
// returned before any record is processed; everything else is reported
// through diagnostics.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Catalog == nil {
		return nil, fmt.Errorf("%w: no species catalog", ErrInvalidSpecies)
	}

	resolver, err := NewProjectResolver(in.Boundaries)
	if err != nil {
		return nil, fmt.Errorf("boundaries: %w", err)
	}

	resolution := resolver.ResolveAll(in.Records)
	e.logger.Info("records resolved",
		"records", len(in.Records),
		"projects", len(resolution.ProjectCounts),
		"warnings", len(resolution.Diagnostics),
	)

	// Stage 1: one cluster summary per record.
	clusterAgg := NewClusterAggregator(in.Catalog, e.params, e.namer)
	clusters := make([]ClusterSummary, len(in.Records))
	clusterDiags := make([]Diagnostics, len(in.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range in.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			clusters[i], clusterDiags[i] = clusterAgg.Aggregate(in.Records[i], resolution.Resolutions[i].ProjectID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cluster aggregation: %w", err)
	}

	// Group clusters, raw records and record diagnostics by project.
	boundaries := resolver.Boundaries()
	index := make(map[string]int, len(boundaries))
	for i, b := range boundaries {
		index[FoldID(b.ProjectID)] = i
	}
	byProject := make([][]ClusterSummary, len(boundaries))
	recordsByProject := make([][]SurveyRecord, len(boundaries))
	diagsByProject := make([]Diagnostics, len(boundaries))

	var all Diagnostics
	for _, d := range resolution.Diagnostics {
		all = append(all, d)
		if i, ok := index[FoldID(d.ProjectID)]; ok && d.RecordKey != "" {
			diagsByProject[i] = append(diagsByProject[i], d)
		}
	}
	owner := make(map[string]int, len(clusters))
	for i, c := range clusters {
		all = append(all, clusterDiags[i]...)
		p, ok := index[FoldID(c.ProjectID)]
		if !ok {
			continue
		}
		owner[c.RecordKey] = p
		byProject[p] = append(byProject[p], c)
		recordsByProject[p] = append(recordsByProject[p], in.Records[i])
		diagsByProject[p] = append(diagsByProject[p], clusterDiags[i]...)
	}
	for _, d := range in.Diagnostics {
		all = append(all, d)
		if p, ok := owner[d.RecordKey]; ok {
			diagsByProject[p] = append(diagsByProject[p], d)
		}
	}

	// Stage 2: one project summary per boundary.
	projectAgg := NewProjectAggregator(e.params)
	projects := make([]ProjectSummary, len(boundaries))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range boundaries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := projectAgg.Aggregate(boundaries[i], byProject[i], recordsByProject[i])
			p.AttachDiagnostics(diagsByProject[i])
			projects[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("project aggregation: %w", err)
	}
	for _, p := range projects {
		all = append(all, p.Diagnostics.filterProjectLevel()...)
	}

	res := &Result{
		Clusters:    clusters,
		Projects:    projects,
		Plots:       FlattenPlots(clusters),
		Resolution:  resolution,
		Diagnostics: all,
		Catalog:     in.Catalog,
	}

	e.logger.Info("aggregation complete",
		"clusters", len(clusters),
		"projects", len(projects),
		"diagnostics", len(all),
	)
	return res, nil
}

// filterProjectLevel returns the diagnostics raised by project aggregation
// itself, i.e. those not tied to a record.
func (ds Diagnostics) filterProjectLevel() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.RecordKey == "" {
			out = append(out, d)
		}
	}
	return out
}

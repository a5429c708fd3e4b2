// Package application wires configuration, inputs, the survey engine and
// the output sinks into one batch run.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/RAP/internal/config"
	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/JonMunkholm/RAP/internal/geo"
	"github.com/JonMunkholm/RAP/internal/ingest"
	"github.com/JonMunkholm/RAP/internal/logging"
	"github.com/JonMunkholm/RAP/internal/metrics"
	"github.com/JonMunkholm/RAP/internal/photo"
	"github.com/JonMunkholm/RAP/internal/store"
)

// Report describes one finished run.
type Report struct {
	RunID    string             `json:"run_id"`
	Started  time.Time          `json:"started"`
	Finished time.Time          `json:"finished"`
	Files    []ingest.FileStats `json:"files"`
	Photos   photo.Report       `json:"photos"`
	Tables   []string           `json:"tables"`
	Result   *core.Result       `json:"-"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Inputs are the validated reference layers of a run.
type Inputs struct {
	Catalog    *core.SpeciesCatalog
	Boundaries []core.ProjectBoundary
}

// Pipeline runs the survey analysis end to end.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.RunMetrics
	photos  *photo.Syncer
	sinks   []store.Sink
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records every run in m.
func WithMetrics(m *metrics.RunMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPhotoSyncer copies renamed photos after aggregation.
func WithPhotoSyncer(s *photo.Syncer) Option {
	return func(p *Pipeline) { p.photos = s }
}

// WithSinks sets the table sinks, written in order.
func WithSinks(sinks ...store.Sink) Option {
	return func(p *Pipeline) { p.sinks = sinks }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline for cfg.
func NewPipeline(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadInputs reads the species catalog and boundary layer and validates
// the boundaries. Every problem found is fatal.
func (p *Pipeline) LoadInputs(ctx context.Context) (*Inputs, error) {
	logger := logging.Enrich(ctx, p.logger)

	catalog, err := ingest.LoadSpeciesCatalog(p.cfg.Survey.SpeciesFile)
	if err != nil {
		return nil, fmt.Errorf("species catalog: %w", err)
	}
	logger.Info("species catalog loaded", "path", p.cfg.Survey.SpeciesFile, "species", catalog.Len())

	boundaries, err := geo.LoadBoundaries(p.cfg.Survey.BoundaryPath, geo.Options{IDField: p.cfg.Survey.BoundaryIDField})
	if err != nil {
		return nil, fmt.Errorf("boundary layer: %w", err)
	}
	if err := core.ValidateBoundaries(boundaries); err != nil {
		return nil, fmt.Errorf("boundary layer: %w", err)
	}
	logger.Info("boundaries loaded", "path", p.cfg.Survey.BoundaryPath, "projects", len(boundaries))

	return &Inputs{Catalog: catalog, Boundaries: boundaries}, nil
}

// Run performs one batch: inputs, surveys, engine, photos, sinks.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), Started: p.now()}
	ctx = logging.WithRunID(ctx, rep.RunID)
	logger := logging.Enrich(ctx, p.logger)
	logger.Info("run started", "input_dir", p.cfg.Survey.InputDir)

	err := p.run(ctx, logger, rep)
	rep.Finished = p.now()

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		logger.Error("run failed", "error", err, "code", core.ErrorCode(err))
	} else {
		logger.Info("run complete",
			"duration", rep.Duration(),
			"clusters", len(rep.Result.Clusters),
			"projects", len(rep.Result.Projects),
			"diagnostics", len(rep.Result.Diagnostics),
		)
	}
	if p.metrics != nil {
		p.metrics.RecordRun(status, rep.Duration(), rep.Finished)
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, rep *Report) error {
	in, err := p.LoadInputs(ctx)
	if err != nil {
		return err
	}

	reader := ingest.NewReader(logger)
	reader.KeepTestData = !p.cfg.Survey.IgnoreTestData
	surveys, err := reader.ReadSurveyDir(ctx, p.cfg.Survey.InputDir)
	if err != nil {
		return fmt.Errorf("surveys: %w", err)
	}
	rep.Files = surveys.Files
	if p.metrics != nil {
		for _, f := range surveys.Files {
			p.metrics.RecordIngest(f.Form, f.Kept, f.Skipped, f.TestRows)
		}
	}

	engine, err := core.NewEngine(p.cfg.Calc.CalcParams(),
		core.WithWorkers(p.cfg.Calc.Workers),
		core.WithPhotoNamer(p.photoNamer()),
		core.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, core.Input{
		Records:     surveys.Records,
		Boundaries:  in.Boundaries,
		Catalog:     in.Catalog,
		Diagnostics: surveys.Diagnostics,
	})
	if err != nil {
		return err
	}
	rep.Result = res
	if p.metrics != nil {
		p.metrics.RecordResult(res)
	}

	if p.photos != nil {
		photos, err := p.photos.Sync(ctx, res.Clusters)
		if err != nil {
			return err
		}
		rep.Photos = photos
		if p.metrics != nil {
			p.metrics.RecordPhotos(photos.Copied, photos.Skipped, photos.Missing)
		}
	}

	return p.write(ctx, logger, rep)
}

func (p *Pipeline) write(ctx context.Context, logger *slog.Logger, rep *Report) error {
	if len(p.sinks) == 0 {
		logger.Warn("no sinks configured, results are not persisted")
		return nil
	}

	tables, err := store.BuildTables(rep.Result, logger)
	if err != nil {
		return fmt.Errorf("building tables: %w", err)
	}
	for _, t := range tables {
		rep.Tables = append(rep.Tables, t.Name)
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.Write(ctx, tables); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Info("results stored", "sink", s.Name(), "tables", len(tables))
	}
	return errors.Join(errs...)
}

// photoNamer places local copies under the photo output directory (or the
// S3 prefix) and public links under PHOTO_PUBLIC_URL.
func (p *Pipeline) photoNamer() core.PhotoNamer {
	local := p.cfg.Photo.OutputDir
	if p.cfg.Photo.Backend == "s3" {
		local = p.cfg.S3.Prefix
	}
	return core.PhotoNamer{
		SourceDir:  p.cfg.PhotoSourceDir(),
		LocalDir:   local,
		PublicBase: p.cfg.Photo.PublicURL,
	}
}

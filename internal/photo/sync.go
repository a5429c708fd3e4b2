package photo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/JonMunkholm/RAP/internal/core"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent uploads.
const DefaultWorkers = 4

// Report counts the outcome of a sync.
type Report struct {
	Copied  int      `json:"copied"`
	Skipped int      `json:"skipped"` // destination already present
	Missing int      `json:"missing"` // source photo not found
	Sources []string `json:"missing_sources,omitempty"`
}

// Total is the number of references considered.
func (r Report) Total() int { return r.Copied + r.Skipped + r.Missing }

// Syncer copies the renamed photos of a run into a Store.
type Syncer struct {
	store   Store
	logger  *slog.Logger
	workers int
}

// NewSyncer returns a syncer writing to store. workers <= 0 uses DefaultWorkers.
func NewSyncer(store Store, logger *slog.Logger, workers int) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Syncer{store: store, logger: logger, workers: workers}
}

// Sync copies every photo referenced by clusters. A missing source is
// counted and logged; store failures abort the sync.
func (s *Syncer) Sync(ctx context.Context, clusters []core.ClusterSummary) (Report, error) {
	refs := uniqueRefs(clusters)

	var (
		mu  sync.Mutex
		rep Report
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, ref := range refs {
		g.Go(func() error {
			copied, err := s.copy(ctx, ref)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, os.ErrNotExist):
				rep.Missing++
				rep.Sources = append(rep.Sources, ref.Source)
				s.logger.Warn("survey photo not found", "source", ref.Source, "name", ref.Name)
				return nil
			case err != nil:
				return err
			case copied:
				rep.Copied++
			default:
				rep.Skipped++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return rep, fmt.Errorf("syncing photos: %w", err)
	}
	sort.Strings(rep.Sources)

	s.logger.Info("photo sync complete",
		"copied", rep.Copied,
		"skipped", rep.Skipped,
		"missing", rep.Missing,
	)
	return rep, nil
}

func (s *Syncer) copy(ctx context.Context, ref core.PhotoRef) (bool, error) {
	exists, err := s.store.Exists(ctx, ref.Name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	f, err := os.Open(ref.Source)
	if err != nil {
		return false, err
	}
	defer f.Close()

	return s.store.Put(ctx, ref.Name, f)
}

// uniqueRefs flattens photo references, dropping repeated names.
func uniqueRefs(clusters []core.ClusterSummary) []core.PhotoRef {
	seen := make(map[string]bool)
	var out []core.PhotoRef
	for _, c := range clusters {
		for _, ref := range c.PhotoRefs {
			if ref.Name == "" || seen[ref.Name] {
				continue
			}
			seen[ref.Name] = true
			out = append(out, ref)
		}
	}
	return out
}

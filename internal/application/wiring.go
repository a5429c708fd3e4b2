package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/RAP/internal/config"
	"github.com/JonMunkholm/RAP/internal/photo"
	"github.com/JonMunkholm/RAP/internal/store"
)

// OpenSinks opens every output configured in cfg. The returned close
// function releases them all, including the PostgreSQL pool.
func OpenSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]store.Sink, func(), error) {
	var (
		sinks []store.Sink
		pools []*pgxpool.Pool
	)
	closeAll := func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("closing sink", "sink", s.Name(), "error", err)
			}
		}
		for _, p := range pools {
			p.Close()
		}
	}

	if cfg.Output.SQLitePath != "" {
		s, err := store.OpenSQLite(cfg.Output.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.Output.CSVDir != "" {
		s, err := store.NewCSVSink(cfg.Output.CSVDir, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.Database.URL != "" {
		pool, err := openPool(ctx, cfg.Database, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		pools = append(pools, pool)
		sinks = append(sinks, store.NewPostgresSink(pool, cfg.Database.Schema, logger))
	}

	if len(sinks) == 0 {
		return nil, nil, errors.New("no output configured")
	}
	return sinks, closeAll, nil
}

func openPool(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if u, err := url.Parse(db.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "schema", db.Schema)
	} else {
		logger.Info("connected to database")
	}
	return pool, nil
}

// NewPhotoStore builds the configured photo backend. It returns nil when
// photo sync is disabled.
func NewPhotoStore(ctx context.Context, cfg *config.Config) (photo.Store, error) {
	if !cfg.Photo.Enabled {
		return nil, nil
	}
	switch cfg.Photo.Backend {
	case "fs", "":
		s, err := photo.NewFSStore(cfg.Photo.OutputDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		s, err := photo.NewS3Store(ctx, photo.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown photo backend %q", cfg.Photo.Backend)
	}
}

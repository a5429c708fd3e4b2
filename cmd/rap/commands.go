package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/RAP/internal/application"
	"github.com/JonMunkholm/RAP/internal/config"
	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/JonMunkholm/RAP/internal/logging"
	"github.com/JonMunkholm/RAP/internal/metrics"
	"github.com/JonMunkholm/RAP/internal/photo"
	"github.com/JonMunkholm/RAP/internal/web"
)

// RootCommand creates the rap command tree over cfg. Flags override the
// environment values already in cfg.
func RootCommand(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rap",
		Short:         "Regeneration assessment survey analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, cfg)

	rootCmd.AddCommand(
		runCommand(cfg),
		serveCommand(cfg),
		checkCommand(cfg),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			return err
		}
		slog.Debug("configuration loaded", "config", cfg.String())
		return nil
	}

	return rootCmd
}

// setupFlags defines the flags shared by every subcommand.
func setupFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.PersistentFlags()
	f.StringVarP(&cfg.Survey.InputDir, "input", "i", cfg.Survey.InputDir, "Directory holding the survey exports")
	f.StringVar(&cfg.Survey.SpeciesFile, "species", cfg.Survey.SpeciesFile, "Species catalog CSV")
	f.StringVar(&cfg.Survey.BoundaryPath, "boundaries", cfg.Survey.BoundaryPath, "Project boundary layer (.shp or .geojson)")
	f.StringVar(&cfg.Output.SQLitePath, "sqlite", cfg.Output.SQLitePath, "Result database path; empty disables it")
	f.StringVar(&cfg.Output.CSVDir, "csv-dir", cfg.Output.CSVDir, "Directory receiving one CSV per table")
	f.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")
	f.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format: text or json")
}

func runCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyse the surveys once and write the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := runOnce(cmd.Context(), cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cfg.Photo.Enabled, "photos", cfg.Photo.Enabled, "Copy renamed survey photos")
	return cmd
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Analyse the surveys, then serve the reports over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			rep, err := runOnce(cmd.Context(), cfg, registry)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)

			return serve(web.NewServer(rep.Result, cfg, web.WithGatherer(registry)), cfg.Server)
		},
	}
	cmd.Flags().IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "Port to listen on")
	cmd.Flags().BoolVar(&cfg.Photo.Enabled, "photos", cfg.Photo.Enabled, "Copy renamed survey photos")
	return cmd
}

func checkCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the species catalog and boundary layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := application.NewPipeline(cfg).LoadInputs(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), core.FormatUserError(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "species catalog: %d codes in %d groups\n",
				in.Catalog.Len(), len(in.Catalog.Groups()))
			fmt.Fprintf(cmd.OutOrStdout(), "boundaries: %d projects\n", len(in.Boundaries))
			return nil
		},
	}
}

// runOnce opens the configured outputs and performs a single run.
func runOnce(ctx context.Context, cfg *config.Config, registry *prometheus.Registry) (*application.Report, error) {
	logger := slog.Default()

	sinks, closeSinks, err := application.OpenSinks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeSinks()

	m, err := metrics.NewRunMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	opts := []application.Option{
		application.WithLogger(logger),
		application.WithMetrics(m),
		application.WithSinks(sinks...),
	}

	photos, err := application.NewPhotoStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("photo store: %w", err)
	}
	if photos != nil {
		opts = append(opts, application.WithPhotoSyncer(photo.NewSyncer(photos, logger, cfg.Photo.Workers)))
	}

	rep, err := application.NewPipeline(cfg, opts...).Run(ctx)
	if err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		return nil, err
	}
	return rep, nil
}

func printReport(w io.Writer, rep *application.Report) {
	res := rep.Result
	complete := 0
	for _, p := range res.Projects {
		if p.SurveyComplete {
			complete++
		}
	}

	fmt.Fprintf(w, "run %s finished in %s\n", rep.RunID, rep.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  clusters:    %d\n", len(res.Clusters))
	fmt.Fprintf(w, "  projects:    %d (%d complete)\n", len(res.Projects), complete)
	fmt.Fprintf(w, "  diagnostics: %d\n", len(res.Diagnostics))
	for _, code := range res.Diagnostics.Codes() {
		fmt.Fprintf(w, "    %s: %d\n", code, len(res.Diagnostics.Filter(code)))
	}
	if rep.Photos.Total() > 0 {
		fmt.Fprintf(w, "  photos:      %d copied, %d skipped, %d missing\n",
			rep.Photos.Copied, rep.Photos.Skipped, rep.Photos.Missing)
	}
	fmt.Fprintf(w, "  tables:      %d\n", len(rep.Tables))
}

// serve runs the server until SIGINT or SIGTERM.
func serve(server *web.Server, cfg config.ServerConfig) error {
	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	slog.Info("server stopped")
	return nil
}

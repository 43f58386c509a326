package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	csvadapter "github.com/couchcryptid/storm-lightning-align/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-lightning-align/internal/adapter/glm"
	httpadapter "github.com/couchcryptid/storm-lightning-align/internal/adapter/http"
	"github.com/couchcryptid/storm-lightning-align/internal/adapter/hurdat"
	kafkaadapter "github.com/couchcryptid/storm-lightning-align/internal/adapter/kafka"
	"github.com/couchcryptid/storm-lightning-align/internal/adapter/ships"
	sqliteadapter "github.com/couchcryptid/storm-lightning-align/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-lightning-align/internal/align"
	"github.com/couchcryptid/storm-lightning-align/internal/config"
	"github.com/couchcryptid/storm-lightning-align/internal/observability"
	"github.com/couchcryptid/storm-lightning-align/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load region catalog", "error", err)
		os.Exit(1)
	}
	region, err := catalog.Region(cfg.Region)
	if err != nil {
		logger.Error("unknown region", "region", cfg.Region, "error", err)
		os.Exit(1)
	}

	fields := []string{ships.FieldShearMag, ships.FieldShearDir}
	reductions := []align.Reduction{
		{Field: glm.PayloadEnergy, Op: align.ReduceSum},
		{Field: glm.PayloadEnergy, Op: align.ReduceMean},
		{Field: glm.PayloadArea, Op: align.ReduceMax},
	}

	tracks := hurdat.NewSource(http.DefaultClient, region.BestTrackURL, region.Window(), cfg.HurricanesOnly, logger)
	scalars := ships.NewSource(http.DefaultClient, region.ShipsURL, logger)
	events := glm.NewFactory(
		glm.NewS3Client(cfg.S3Region),
		cfg.S3Bucket, cfg.S3Prefix,
		glm.NewCache(cfg.CacheDir),
		logger,
	)

	sink, err := buildSink(cfg, fields, reductions, logger)
	if err != nil {
		logger.Error("failed to build sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(tracks, scalars, events, pipeline.Options{
		Interval:    cfg.TimeInterval,
		BoxSize:     cfg.BoxSizeDegrees,
		RMWMultiple: cfg.RMWMultiple,
		Tolerance:   cfg.NNTolerance,
		Fields:      fields,
		Reductions:  reductions,
	}, logger, metrics)
	runner := pipeline.NewRunner(pipe, sink, cfg.Workers, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the batch; a finished batch triggers shutdown.
	go func() {
		defer stop()

		storms, err := tracks.Storms(ctx)
		if err != nil {
			logger.Error("failed to load storm catalog", "error", err)
			return
		}
		logger.Info("batch starting",
			"region", cfg.Region, "storms", len(storms), "workers", cfg.Workers)

		results := runner.Run(ctx, storms)
		var failed int
		for _, res := range results {
			if res.Err != nil {
				failed++
			}
		}
		logger.Info("batch finished", "storms", len(results), "failed", failed)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func buildSink(cfg *config.Config, fields []string, reductions []align.Reduction, logger *slog.Logger) (pipeline.RowSink, error) {
	switch cfg.Sink {
	case config.SinkSQLite:
		return sqliteadapter.NewStore(cfg.SQLitePath, logger), nil
	case config.SinkKafka:
		return kafkaadapter.NewSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	default:
		names := make([]string, len(reductions))
		for i, r := range reductions {
			names[i] = r.Name()
		}
		return csvadapter.NewWriter(cfg.OutputDir, fields, names, logger)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/sst-heatwave-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sst-heatwave-service/internal/adapter/kafka"
	"github.com/couchcryptid/sst-heatwave-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/sst-heatwave-service/internal/adapter/sqlite"
	"github.com/couchcryptid/sst-heatwave-service/internal/config"
	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/observability"
	"github.com/couchcryptid/sst-heatwave-service/internal/pipeline"
	"github.com/couchcryptid/sst-heatwave-service/internal/scheduler"
	"github.com/couchcryptid/sst-heatwave-service/internal/tabular"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	baseline, err := loadBaseline(cfg.BaselinePath, logger)
	if err != nil {
		return err
	}

	repo, err := sqlite.Open(ctx, cfg.ArchiveDBPath)
	if err != nil {
		return fmt.Errorf("open archive db: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("archive db close error", "error", err)
		}
	}()

	// Fetching and publishing are feature-flagged via FETCH_ENABLED / KAFKA_ENABLED.
	var fetcher pipeline.Fetcher
	if cfg.FetchEnabled {
		fetcher = openmeteo.NewClient(openmeteo.Options{
			BaseURL:      cfg.OpenMeteoBaseURL,
			Timeout:      cfg.OpenMeteoTimeout,
			Timezone:     cfg.OpenMeteoTimezone,
			PastDays:     cfg.OpenMeteoPastDays,
			ForecastDays: cfg.OpenMeteoForecastDays,
			Backoff:      openmeteo.DefaultBackoff,
		}, metrics, logger)
		metrics.FetchEnabled.Set(1)
		logger.Info("open-meteo fetch enabled", "interval", cfg.FetchInterval, "sites", len(cfg.Sites))
	} else {
		logger.Info("open-meteo fetch disabled")
	}

	var (
		publisher pipeline.Publisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	}

	p := pipeline.New(fetcher, repo, publisher, cfg.Sites, cfg.DetectionWindowDays, logger, metrics)
	p.SetBaseline(baseline)
	if err := p.LoadArchive(ctx); err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	if cfg.ArchiveSeedCSV != "" {
		if err := seedArchive(ctx, p, cfg.ArchiveSeedCSV); err != nil {
			return err
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	var sched *scheduler.Scheduler
	if fetcher != nil {
		sched = scheduler.New(p, cfg.FetchInterval, logger)
		if err := sched.Start(); err != nil {
			return err
		}
	}
	metrics.PipelineRunning.Set(1)

	<-ctx.Done()
	logger.Info("shutting down")
	metrics.PipelineRunning.Set(0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func loadBaseline(path string, logger *slog.Logger) (*domain.BaselineIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open baseline: %w", err)
	}
	defer f.Close()

	idx, stats, err := tabular.ReadBaseline(f)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return nil, fmt.Errorf("baseline %s has no usable rows", path)
	}
	logger.Info("baseline loaded",
		"path", path,
		"days", idx.Len(),
		"generic", stats.Generic,
		"per_location", stats.PerLocation,
		"invalid_day", stats.InvalidDay,
		"duplicates", stats.Duplicates,
	)
	if stats.LeapDayRow {
		logger.Warn("baseline has a day 366 row that no date resolves to", "path", path)
	}
	return idx, nil
}

func seedArchive(ctx context.Context, p *pipeline.Pipeline, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive seed: %w", err)
	}
	defer f.Close()

	rows, err := tabular.ReadRows(f)
	if err != nil {
		return fmt.Errorf("read archive seed %s: %w", path, err)
	}
	if _, err := p.Import(ctx, rows); err != nil {
		return fmt.Errorf("seed archive: %w", err)
	}
	return nil
}

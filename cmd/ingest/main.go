package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/powderlab/avalanche-obs-ingest/internal/adapter/dataset"
	"github.com/powderlab/avalanche-obs-ingest/internal/adapter/fetch"
	httpadapter "github.com/powderlab/avalanche-obs-ingest/internal/adapter/http"
	kafkaadapter "github.com/powderlab/avalanche-obs-ingest/internal/adapter/kafka"
	pgadapter "github.com/powderlab/avalanche-obs-ingest/internal/adapter/postgres"
	"github.com/powderlab/avalanche-obs-ingest/internal/config"
	"github.com/powderlab/avalanche-obs-ingest/internal/dedup"
	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
	"github.com/powderlab/avalanche-obs-ingest/internal/observability"
	"github.com/powderlab/avalanche-obs-ingest/internal/parser"
	"github.com/powderlab/avalanche-obs-ingest/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Table errors are fatal: a bad alias table would corrupt every
	// record systematically, which is worse than not running.
	tables, err := config.LoadTables(cfg)
	if err != nil {
		logger.Error("failed to load normalization tables", "error", err)
		os.Exit(1)
	}
	normalizer := domain.NewNormalizer(tables)
	zoneVersion, scaleVersion := normalizer.TableVersions()
	logger.Info("normalization tables loaded",
		"zone_table_version", zoneVersion,
		"danger_table_version", scaleVersion,
		"date_layouts", len(cfg.DateLayouts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fileWriter, err := dataset.NewFileWriter(cfg.OutputDir)
	if err != nil {
		logger.Error("failed to open output files", "error", err)
		os.Exit(1)
	}
	writers := []pipeline.DatasetWriter{fileWriter}

	var pgWriter *pgadapter.Writer
	if cfg.PostgresEnabled {
		pgWriter, err = pgadapter.NewWriter(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			logger.Error("failed to connect postgres sink", "error", err)
			os.Exit(1)
		}
		writers = append(writers, pgWriter)
		logger.Info("postgres sink enabled")
	}

	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		writers = append(writers, kafkaWriter)
		logger.Info("kafka publisher enabled", "topic", cfg.KafkaTopic)
	}

	client := fetch.NewClient(cfg.FetchTimeout, cfg.FetchRetries, logger)
	fetcher := fetch.NewCachedFetcher(client, cfg.FetchCacheSize)

	store := dedup.NewStore()
	p := pipeline.New(fetcher, parser.New(), normalizer, store, writers, logger, metrics, pipeline.Config{
		BaseURL:       cfg.BaseURL,
		SeasonStart:   cfg.SeasonStart,
		SeasonEnd:     cfg.SeasonEnd,
		PageCap:       cfg.ListingPageCap,
		Workers:       cfg.FetchWorkers,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.BatchFlushInterval,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-done:
		logger.Info("ingest pass complete, shutting down")
		stop()
	}
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := fileWriter.Close(); err != nil {
		logger.Error("output file close error", "error", err)
	}
	if pgWriter != nil {
		if err := pgWriter.Close(); err != nil {
			logger.Error("postgres close error", "error", err)
		}
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

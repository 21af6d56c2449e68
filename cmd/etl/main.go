package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/adapter/httpadapter"
	kafkaadapter "github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/adapter/kafka"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/adapter/nominatim"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/area"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/config"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/download"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/observability"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	if err := pipeline.EnsureDirs(cfg); err != nil {
		logger.Error("failed to prepare data directories", "error", err)
		return 1
	}

	store, err := area.OpenStore(cfg.AreaDBPath)
	if err != nil {
		logger.Error("failed to open area mapping store", "error", err)
		return 1
	}
	defer store.Close()

	// The geocoder is feature-flagged; with it disabled only previously
	// persisted mappings resolve.
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		geocoder = nominatim.NewClient(
			cfg.NominatimBaseURL, cfg.NominatimUserAgent,
			cfg.NominatimTimeout, cfg.NominatimMinInterval,
			logger, clock,
		)
		logger.Info("geocoding enabled", "base_url", cfg.NominatimBaseURL, "min_interval", cfg.NominatimMinInterval)
	} else {
		logger.Info("geocoding disabled; using persisted mappings only")
	}

	resolver, err := area.NewResolver(store, geocoder, logger, metrics, clock)
	if err != nil {
		logger.Error("failed to build area resolver", "error", err)
		return 1
	}

	downloader := download.NewClient(cfg.DownloadTimeout, logger)

	var sink pipeline.JoinedSink
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(cfg, resolver, downloader, sink, logger, metrics, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional status server for health and metrics during long runs.
	var srv *httpadapter.Server
	if cfg.StatusAddr != "" {
		srv = httpadapter.NewServer(cfg.StatusAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline failed", "error", err)
		return 1
	}
	return 0
}

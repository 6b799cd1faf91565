package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/geosphere-warnings/internal/adapter/geosphere"
	httpadapter "github.com/couchcryptid/geosphere-warnings/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geosphere-warnings/internal/adapter/kafka"
	"github.com/couchcryptid/geosphere-warnings/internal/adapter/mapbox"
	"github.com/couchcryptid/geosphere-warnings/internal/config"
	"github.com/couchcryptid/geosphere-warnings/internal/coordinator"
	"github.com/couchcryptid/geosphere-warnings/internal/domain"
	"github.com/couchcryptid/geosphere-warnings/internal/observability"
	"github.com/couchcryptid/geosphere-warnings/internal/sensor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// One HTTP client for the whole process; per-call timeouts come from
	// each adapter.
	httpClient := &http.Client{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Label the location (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var location string
	if cfg.MapboxEnabled {
		geocoder := mapbox.NewClient(httpClient, cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		location = domain.ResolveLocation(ctx, geocoder, cfg.Latitude, cfg.Longitude, logger)
		logger.Info("mapbox geocoding enabled", "location", location, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	client := geosphere.NewClient(httpClient, cfg.Endpoint, cfg.RequestTimeout, logger)
	coord := coordinator.New(client, coordinator.Options{
		Latitude:    cfg.Latitude,
		Longitude:   cfg.Longitude,
		WarningType: cfg.WarningType,
		Interval:    cfg.ScanInterval,
		Policy:      cfg.UnboundedPolicy,
	}, logger, metrics)

	entity := sensor.New(coord, cfg.Latitude, cfg.Longitude, location)

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, metrics, logger)
		go func() {
			if err := publisher.Run(ctx); err != nil {
				logger.Error("kafka publisher error", "error", err)
			}
		}()
		logger.Info("kafka snapshot export enabled", "topic", cfg.KafkaTopic)
	}

	entity.Attach(func(snap sensor.Snapshot) {
		logger.Info("sensor updated",
			"unique_id", snap.UniqueID,
			"state", snap.Count,
			"available", snap.Available,
			"last_update_success", snap.Attributes.LastUpdateSuccess,
		)
		if publisher != nil {
			publisher.Enqueue(snap)
		}
	})
	defer entity.Detach()

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:             cfg.HTTPAddr,
		RefreshPerMinute: cfg.RefreshPerMinute,
		FetchTimeout:     cfg.RequestTimeout,
		Rejected:         metrics.RefreshRequestsRejected,
	}, coord, entity, logger)

	// Start HTTP server. /readyz reports 503 until the first refresh completes.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := coord.FirstRefresh(ctx); err != nil {
		logger.Warn("initial refresh interrupted", "error", err)
	} else {
		// Start the periodic refresh loop.
		go func() {
			if err := coord.Run(ctx); err != nil {
				logger.Error("coordinator error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/quake-ingest/internal/adapter/console"
	"github.com/couchcryptid/quake-ingest/internal/adapter/emsc"
	"github.com/couchcryptid/quake-ingest/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/quake-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/quake-ingest/internal/adapter/nominatim"
	"github.com/couchcryptid/quake-ingest/internal/config"
	"github.com/couchcryptid/quake-ingest/internal/geocode"
	"github.com/couchcryptid/quake-ingest/internal/observability"
	"github.com/couchcryptid/quake-ingest/internal/pipeline"
	"github.com/couchcryptid/quake-ingest/internal/scheduler"
	"github.com/couchcryptid/quake-ingest/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage setup is the one fatal failure mode: without the ledger
	// nothing downstream is safe to run.
	st, err := store.Open(cfg.DBPath, logger, nil)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		logger.Warn("unknown timezone, rendering times in UTC", "tz", cfg.LocalTimezone, "error", err)
		location = nil
	}

	console.PrintSummary(os.Stdout,
		st.RecentEvents(ctx, time.Now().UTC().Add(-cfg.SummaryWindow)),
		cfg.SummaryWindow, location)

	fetcher := emsc.NewClient(emsc.Config{
		BaseURL:      cfg.FeedURL,
		Timeout:      cfg.FeedTimeout,
		MinLat:       cfg.MinLat,
		MaxLat:       cfg.MaxLat,
		MinLon:       cfg.MinLon,
		MaxLon:       cfg.MaxLon,
		MinMagnitude: cfg.MinMagnitude,
	}, metrics, logger)

	reverse := nominatim.NewClient(cfg.GeocodeURL, cfg.GeocodeTimeout, cfg.GeocodeZoom, cfg.ClientTag, logger)
	cache := geocode.NewMemCache(st, cfg.GeocodeCacheSize)
	resolver := geocode.New(cache, reverse, cfg.GeocodeDelay, nil, metrics, logger)

	announcers := []pipeline.Announcer{console.NewAnnouncer(os.Stdout, logger)}
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer publisher.Close()
		announcers = append(announcers, publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(fetcher, st, resolver, announcers, location, nil, metrics, logger)
	sched := scheduler.New(p, cfg.FetchInterval, cfg.LookbackWindow, nil, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, sched, st, cfg.SummaryWindow, nil, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lookout-hq/lookout/config"
	"github.com/lookout-hq/lookout/internal/api"
	"github.com/lookout-hq/lookout/internal/health"
	"github.com/lookout-hq/lookout/internal/httpserver"
	"github.com/lookout-hq/lookout/internal/metrics"
	"github.com/lookout-hq/lookout/internal/notify"
	"github.com/lookout-hq/lookout/internal/probe"
	"github.com/lookout-hq/lookout/internal/scheduler"
	"github.com/lookout-hq/lookout/internal/storage/sqlite"
	"github.com/lookout-hq/lookout/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sqlite.New(ctx, cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open storage", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	monitor := health.NewMonitor(health.Options{
		FailureThreshold: cfg.Health.FailureThreshold,
		SuccessThreshold: cfg.Health.SuccessThreshold,
		ProbeInterval:    config.MustDuration(cfg.Health.ProbeInterval),
		QueueHighWater:   cfg.Queue.HighWater,
		ProbeURLs:        cfg.Health.ProbeURLs,
	}, store, logger.Component(log, "health"))

	prober := probe.New(probe.Options{
		Workers:     cfg.Worker.Count,
		Timeout:     config.MustDuration(cfg.Worker.HTTPTimeout),
		RetryDelay:  config.MustDuration(cfg.Worker.RetryDelay),
		DNSCacheTTL: config.MustDuration(cfg.Worker.DNSCacheTTL),
	}, logger.Component(log, "probe"))
	defer prober.Close()

	collector := metrics.NewCollector(1024, logger.Component(log, "metrics"))
	collector.Start(ctx)

	engine := scheduler.New(scheduler.Options{
		ScanInterval:           config.MustDuration(cfg.Scheduler.Interval),
		InitialDelay:           config.MustDuration(cfg.Scheduler.InitialDelay),
		WorkerCount:            cfg.Worker.Count,
		QueueCapacity:          cfg.Queue.Capacity,
		DefaultNotifyThreshold: cfg.Notifications.DefaultThreshold,
		SettingsCacheTTL:       config.MustDuration(cfg.Notifications.SettingsCacheTTL),
	}, store, monitor, prober, notify.NewLogNotifier(logger.Component(log, "notify")), collector, log)

	if err := engine.Initialize(ctx); err != nil {
		log.Error("Failed to initialize engine", slog.Any("err", err))
		os.Exit(1)
	}
	if err := engine.Start(ctx); err != nil {
		log.Error("Failed to start engine", slog.Any("err", err))
		os.Exit(1)
	}

	handler := api.NewHandler(engine, collector, logger.Component(log, "api"))

	srv, err := httpserver.New(cfg.Server.Address, handler.Routes())
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		engine.Stop()
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		engine.Stop()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error running status server", slog.Any("err", err))
			engine.Stop()
			os.Exit(1)
		}
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-checkout/internal/app"
	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/reconcile"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, "reconciler")

	if err := run(cfg, logger, log); err != nil {
		log.WithError(err).Error("reconciler stopped")
		os.Exit(1)
	}
	log.Info("shutting down")
}

func run(cfg *config.Config, logger *logrus.Logger, log *logrus.Entry) error {
	// Pending refunds live in the API's store; a private memory store has none.
	if cfg.StoreDriver != "postgres" {
		return errors.New("reconciler requires STORE_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, shutdownMetrics, err := app.NewMetrics(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())

	st, err := app.OpenStore(ctx, cfg, false, log)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher := app.NewPublisher(cfg, log)
	defer publisher.Close()

	// The API owns the shared read caches; this one only absorbs invalidations.
	memCache := cache.NewMemoryCache(m, time.Minute)
	defer memCache.Close()

	gateway, err := app.NewGateway(cfg, log)
	if err != nil {
		return err
	}

	handler := app.NewCommandHandler(cfg, app.Deps{
		Store:     st,
		Gateway:   gateway,
		Cache:     memCache,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	})

	r := reconcile.New(st.Refunds(), handler, reconcile.Config{
		Interval: cfg.ReconcileInterval,
		Grace:    cfg.ReconcileGrace,
		Batch:    cfg.ReconcileBatch,
	}, logger)

	log.WithFields(logrus.Fields{
		"interval": cfg.ReconcileInterval,
		"grace":    cfg.ReconcileGrace,
		"batch":    cfg.ReconcileBatch,
	}).Info("starting refund reconciler")
	return r.Run(ctx)
}

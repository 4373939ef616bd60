// Package app wires configuration into the concrete store, gateway,
// publisher and metrics used by the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/command"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/sirupsen/logrus"
)

// sandboxSecret signs sandbox callbacks when no Razorpay secret is set.
const sandboxSecret = "sandbox-secret"

// OpenStore connects the configured store. Postgres is migrated to the
// latest schema when migrate is true.
func OpenStore(ctx context.Context, cfg *config.Config, migrate bool, logger logrus.FieldLogger) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	}

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := store.MigrateUp(db.DB); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	return store.NewPostgresStore(db), nil
}

// SignatureSecret returns the secret payment callbacks are signed with.
func SignatureSecret(cfg *config.Config) string {
	if cfg.UseSandboxGateway() {
		return sandboxSecret
	}
	return cfg.RazorpayKeySecret
}

// ErrGatewayCredentials is returned when Razorpay credentials are missing
// outside a throwaway in-memory run.
var ErrGatewayCredentials = errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required unless STORE_DRIVER=memory")

// NewGateway returns the Razorpay client. Without credentials it returns an
// in-process sandbox, which only makes sense with the memory store since
// sandbox payments vanish with the process.
func NewGateway(cfg *config.Config, logger logrus.FieldLogger) (payment.Gateway, error) {
	if !cfg.UseSandboxGateway() {
		return payment.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout), nil
	}
	if cfg.StoreDriver != "memory" {
		return nil, ErrGatewayCredentials
	}
	logger.Warn("razorpay credentials not set; using sandbox gateway")
	return payment.NewSandbox(sandboxSecret), nil
}

// Publisher is a kafka.Publisher that may hold a connection.
type Publisher interface {
	kafka.Publisher
	Close() error
}

type nopCloser struct{ kafka.LogPublisher }

func (nopCloser) Close() error { return nil }

// NewPublisher returns a Kafka producer, or a logging publisher when no
// brokers are configured.
func NewPublisher(cfg *config.Config, logger logrus.FieldLogger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return nopCloser{kafka.LogPublisher{Logger: logger}}
	}
	return kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// NewMetrics exports instruments over OTLP when enabled. The returned
// shutdown flushes the exporter.
func NewMetrics(ctx context.Context, cfg *config.Config) (*metrics.AppMetrics, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }
	if !cfg.MetricsEnabled {
		return metrics.NewNoop(), noShutdown, nil
	}

	provider, err := metrics.InitProvider(ctx, cfg)
	if err != nil {
		return nil, noShutdown, err
	}
	m, err := metrics.New(provider.Meter(cfg.OTELServiceName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, noShutdown, fmt.Errorf("failed to create instruments: %w", err)
	}
	return m, provider.Shutdown, nil
}

// Deps holds what NewCommandHandler needs besides configuration.
type Deps struct {
	Store     store.Store
	Gateway   payment.Gateway
	Cache     cache.Cache
	Publisher kafka.Publisher
	Metrics   *metrics.AppMetrics
	Logger    logrus.FieldLogger
}

func NewCommandHandler(cfg *config.Config, d Deps) *command.Handler {
	return command.NewHandler(command.HandlerConfig{
		Store:               d.Store,
		Gateway:             d.Gateway,
		Verifier:            payment.NewVerifier(SignatureSecret(cfg)),
		Cache:               d.Cache,
		Publisher:           d.Publisher,
		Metrics:             d.Metrics,
		Logger:              d.Logger,
		Currency:            cfg.Currency,
		MinorUnitMultiplier: cfg.MinorUnitMultiplier,
	})
}

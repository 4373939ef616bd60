package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// AppMetrics holds all application metrics
type AppMetrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestsErrors  metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Checkout Metrics
	OrdersStaged         metric.Int64Counter
	OrdersConfirmed      metric.Int64Counter
	OrdersCancelled      metric.Int64Counter
	StockConflicts       metric.Int64Counter
	AuthenticityFailures metric.Int64Counter
	RefundsIssued        metric.Int64Counter
	RefundFailures       metric.Int64Counter
	RevenueMinor         metric.Int64Counter

	// Cache Metrics
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter
}

// millisecond buckets expanded to 60s
var buckets = []float64{2, 4, 6, 8, 10, 50, 100, 200, 400, 800, 1000, 1400, 2000, 5000, 10000, 15000, 20000, 30000, 45000, 60000}

// InitProvider creates an OTLP/HTTP meter provider and installs it globally.
func InitProvider(ctx context.Context, cfg *config.Config) (*sdkmetric.MeterProvider, error) {
	envRes, err := resource.New(ctx, resource.WithFromEnv())
	if err != nil {
		envRes = resource.Empty()
	}
	explicitRes, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(cfg.OTELServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	res, err := resource.Merge(envRes, explicitRes)
	if err != nil {
		return nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))),
	)
	otel.SetMeterProvider(provider)
	return provider, nil
}

// NewNoop returns metrics backed by a no-op meter.
func NewNoop() *AppMetrics {
	m, _ := New(noop.NewMeterProvider().Meter("noop"))
	return m
}

// New creates every instrument on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestsTotal, "http.server.request.count", "Total number of HTTP requests"},
		{&m.HTTPRequestsErrors, "http.server.request.error.count", "Total number of HTTP error requests"},
		{&m.OrdersStaged, "checkout_orders_staged_total", "Staging requests that opened a payment intent"},
		{&m.OrdersConfirmed, "checkout_orders_confirmed_total", "Orders confirmed after payment verification"},
		{&m.OrdersCancelled, "checkout_orders_cancelled_total", "Orders cancelled by customers"},
		{&m.StockConflicts, "checkout_stock_conflicts_total", "Confirmations rejected for insufficient stock"},
		{&m.AuthenticityFailures, "checkout_authenticity_failures_total", "Payment callbacks rejected by the signature gate"},
		{&m.RefundsIssued, "checkout_refunds_issued_total", "Refunds accepted by the gateway"},
		{&m.RefundFailures, "checkout_refund_failures_total", "Refund attempts rejected or failed"},
		{&m.RevenueMinor, "checkout_revenue_minor_total", "Captured revenue in minor currency units"},
		{&m.CacheHits, "cache_hits_total", "Total number of cache hits"},
		{&m.CacheMisses, "cache_misses_total", "Total number of cache misses"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

// Inc adds one to counter with the given attributes.
func Inc(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrAddressRequired is returned when a confirmation carries no delivery address.
var ErrAddressRequired = apperr.New(apperr.ErrValidation, "address is required")

// Handler runs the checkout use cases. Each exported method is one
// application operation; stock, order and refund writes for an operation
// share one store transaction.
type Handler struct {
	store      store.Store
	gateway    payment.Gateway
	verifier   *payment.Verifier
	cache      cache.Cache
	publisher  kafka.Publisher
	metrics    *metrics.AppMetrics
	logger     *logrus.Entry
	currency   string
	multiplier int64

	now        func() time.Time
	newID      func() string
	newOrderID order.IDGenerator
}

type HandlerConfig struct {
	Store     store.Store
	Gateway   payment.Gateway
	Verifier  *payment.Verifier
	Cache     cache.Cache
	Publisher kafka.Publisher
	Metrics   *metrics.AppMetrics
	Logger    logrus.FieldLogger

	Currency            string
	MinorUnitMultiplier int64
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		store:      cfg.Store,
		gateway:    cfg.Gateway,
		verifier:   cfg.Verifier,
		cache:      cfg.Cache,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		currency:   cfg.Currency,
		multiplier: cfg.MinorUnitMultiplier,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		newOrderID: order.GenerateOrderID,
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	h.logger = logging.Component(cfg.Logger, "checkout")
	if h.metrics == nil {
		h.metrics = metrics.NewNoop()
	}
	if h.currency == "" {
		h.currency = "INR"
	}
	if h.multiplier <= 0 {
		h.multiplier = 100
	}
	return h
}

// invalidate drops cache keys. Failures are logged, never returned.
func (h *Handler) invalidate(ctx context.Context, keys ...string) {
	if err := h.cache.Delete(ctx, keys...); err != nil {
		h.logger.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}

// productKeys returns the catalog cache key of every product in items.
func productKeys(items []*order.OrderItem) []string {
	keys := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			keys = append(keys, cache.ProductKey(item.ProductID))
		}
	}
	return keys
}

// publish emits a checkout event keyed by the order's storage id. Failures
// are logged, never returned.
func (h *Handler) publish(ctx context.Context, eventType, aggregateID string, data any) {
	evt, err := order.NewEvent(eventType, aggregateID, data, h.now())
	if err != nil {
		h.logger.WithError(err).WithField("event_type", eventType).Error("failed to encode event")
		return
	}
	if err := h.publisher.Publish(ctx, aggregateID, evt); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   eventType,
			"aggregate_id": aggregateID,
		}).Warn("failed to publish event")
	}
}

// gatewayError makes sure err classifies as a gateway failure.
func gatewayError(err error) error {
	if errors.Is(err, apperr.ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrGateway, err)
}

// UpdateOrderStatus moves an order along the fulfilment path. Only
// Processing -> Shipped and Shipped -> Delivered are accepted here.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	if cmd.Status != order.StatusShipped && cmd.Status != order.StatusDelivered {
		return nil, fmt.Errorf("%w: status %q cannot be set directly", order.ErrInvalidStatus, cmd.Status)
	}

	o, err := h.store.Orders().FindAnyByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	from := o.Status
	if err := o.TransitionTo(cmd.Status, now); err != nil {
		return nil, err
	}
	if err := h.store.Orders().UpdateStatus(ctx, o.ID, from, cmd.Status, now); err != nil {
		return nil, err
	}

	h.invalidate(ctx, cache.OrderKey(o.OrderID), cache.OrdersKey(o.CustomerID))
	h.publish(ctx, order.EventOrderStatusChanged, o.ID, order.OrderStatusChanged{
		OrderID:    o.OrderID,
		CustomerID: o.CustomerID,
		From:       from,
		To:         cmd.Status,
		ChangedAt:  now,
	})
	h.logger.WithFields(logrus.Fields{"order_id": o.OrderID, "from": from, "to": cmd.Status}).Info("order status changed")
	return o, nil
}

func decimalInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

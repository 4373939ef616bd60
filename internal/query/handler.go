// Package query serves checkout reads through the advisory cache. The store
// stays the source of truth: any cache failure falls back to it.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type Handler struct {
	store  store.Store
	cache  cache.Cache
	logger *logrus.Entry
	group  singleflight.Group
}

func NewHandler(s store.Store, c cache.Cache, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		store:  s,
		cache:  c,
		logger: logging.Component(logger, "query"),
	}
}

// Orders
func (h *Handler) ListOrders(ctx context.Context, customerID string) ([]*order.Order, error) {
	return readThrough(ctx, h, cache.OrdersKey(customerID), cache.OrderTTL, func(ctx context.Context) ([]*order.Order, error) {
		return h.store.Orders().ListByCustomer(ctx, customerID)
	})
}

// GetOrder loads one of the customer's orders with its items and, once
// cancelled, the state of its refund. The cached value is keyed by order
// id, so ownership is checked on every read.
func (h *Handler) GetOrder(ctx context.Context, orderID, customerID string) (*OrderDetail, error) {
	detail, err := readThrough(ctx, h, cache.OrderKey(orderID), cache.OrderTTL, func(ctx context.Context) (*OrderDetail, error) {
		o, err := h.store.Orders().FindAnyByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		items, err := h.store.OrderItems().FindByIDs(ctx, o.OrderItems)
		if err != nil {
			return nil, err
		}
		detail := &OrderDetail{Order: o, Items: items}
		if o.Status == order.StatusCancelled {
			rec, err := h.store.Refunds().FindByOrder(ctx, o.ID)
			switch {
			case err == nil:
				detail.Refund = newRefundView(rec)
			case !errors.Is(err, refund.ErrRecordNotFound):
				return nil, err
			}
		}
		return detail, nil
	})
	if err != nil {
		return nil, err
	}
	if detail.Order == nil || detail.CustomerID != customerID {
		return nil, order.ErrOrderNotFound
	}
	return detail, nil
}

// Cart
func (h *Handler) GetCart(ctx context.Context, userID string) (*CartView, error) {
	return readThrough(ctx, h, cache.CartKey(userID), cache.OrderTTL, func(ctx context.Context) (*CartView, error) {
		entries, err := h.store.Carts().List(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &CartView{UserID: userID, Items: entries}, nil
	})
}

// Products
func (h *Handler) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return readThrough(ctx, h, cache.ProductKey(id), cache.CatalogTTL, func(ctx context.Context) (*product.Product, error) {
		return h.store.Products().FindByID(ctx, id)
	})
}

// readThrough serves key from the cache, loading and caching it on a miss.
// The key's version is read before the load; a load that overlaps an
// invalidation returns its result but does not fill the cache. Concurrent
// misses at the same version share a single load, so callers arriving
// after an invalidation never join a load that began before it.
func readThrough[T any](ctx context.Context, h *Handler, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	log := h.logger.WithField("key", key)

	version, verr := h.cache.Version(ctx, key)
	if verr != nil {
		log.WithError(verr).Warn("cache version read failed")
	}

	var cached T
	ok, err := cache.GetJSON(ctx, h.cache, key, &cached)
	if err != nil {
		log.WithError(err).Warn("cache read failed")
	}
	if ok {
		return cached, nil
	}

	if verr != nil {
		// Without a version the fill cannot be guarded.
		return load(ctx)
	}
	v, err, _ := h.group.Do(fmt.Sprintf("%s@%d", key, version), func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return loaded, err
		}
		stored, err := cache.SetJSONIfVersion(ctx, h.cache, key, version, loaded, ttl)
		switch {
		case err != nil:
			log.WithError(err).Warn("cache write failed")
		case !stored:
			log.Debug("cache fill skipped: key invalidated during load")
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/cache/mocks"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueryHandler() (*Handler, *store.MemoryStore, *mocks.MockCache) {
	s := store.NewMemoryStore()
	c := mocks.NewMockCache()
	return NewHandler(s, c, nil), s, c
}

func seedOrder(t *testing.T, s store.Store, id, customerID string, createdAt time.Time) *order.Order {
	t.Helper()
	ctx := context.Background()
	item := &order.OrderItem{
		ID:              "item-" + id,
		CustomerID:      customerID,
		ProductID:       "prod-1",
		ProductName:     "Linen Shirt",
		Quantity:        2,
		UnitPrice:       decimal.NewFromInt(100),
		TotalPrice:      decimal.NewFromInt(200),
		PaymentIntentID: "order_" + id,
		CreatedAt:       createdAt,
	}
	require.NoError(t, s.OrderItems().CreateBatch(ctx, []*order.OrderItem{item}))

	o := &order.Order{
		ID:             "uuid-" + id,
		OrderID:        id,
		CustomerID:     customerID,
		OrderItems:     []string{item.ID},
		AddressID:      "addr-1",
		Status:         order.StatusProcessing,
		PaymentID:      "pay_" + id,
		GatewayOrderID: item.PaymentIntentID,
		TotalAmount:    item.TotalPrice,
		Currency:       "INR",
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, s.Orders().Create(ctx, o))
	return o
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_ListOrders_ReadThrough(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	ctx := context.Background()
	now := time.Now()
	seedOrder(t, s, "1001", "cust-1", now.Add(-time.Hour))

	orders, err := handler.ListOrders(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, c.SetCalls, 1)
	assert.Equal(t, cache.OrdersKey("cust-1"), c.SetCalls[0].Key)
	assert.Equal(t, cache.OrderTTL, c.SetCalls[0].TTL)

	// A newer order is invisible until the list key is dropped.
	seedOrder(t, s, "1002", "cust-1", now)
	orders, err = handler.ListOrders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	require.NoError(t, c.Delete(ctx, cache.OrdersKey("cust-1")))
	orders, err = handler.ListOrders(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "1002", orders[0].OrderID)
}

func TestHandler_ListOrders_Empty(t *testing.T) {
	handler, _, _ := newTestQueryHandler()

	orders, err := handler.ListOrders(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestHandler_GetOrder_Found(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	ctx := context.Background()
	seeded := seedOrder(t, s, "1001", "cust-1", time.Now())

	detail, err := handler.GetOrder(ctx, "1001", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, detail.ID)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Linen Shirt", detail.Items[0].ProductName)
	assert.True(t, c.Has(cache.OrderKey("1001")))

	// Served from the cache the second time.
	cached, err := handler.GetOrder(ctx, "1001", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, cached.ID)
	assert.True(t, decimal.NewFromInt(200).Equal(cached.TotalAmount))
	assert.Len(t, c.SetCalls, 1)
}

func TestHandler_GetOrder_OtherCustomer(t *testing.T) {
	handler, s, _ := newTestQueryHandler()
	ctx := context.Background()
	seedOrder(t, s, "1001", "cust-1", time.Now())

	// Warm the cache as the owner first.
	_, err := handler.GetOrder(ctx, "1001", "cust-1")
	require.NoError(t, err)

	_, err = handler.GetOrder(ctx, "1001", "cust-2")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestHandler_GetOrder_NotFound(t *testing.T) {
	handler, _, c := newTestQueryHandler()

	_, err := handler.GetOrder(context.Background(), "missing", "cust-1")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.Empty(t, c.SetCalls)
}

func TestHandler_GetOrder_CancelledShowsRefund(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	ctx := context.Background()
	now := time.Now()
	seeded := seedOrder(t, s, "1001", "cust-1", now)

	detail, err := handler.GetOrder(ctx, "1001", "cust-1")
	require.NoError(t, err)
	assert.Nil(t, detail.Refund)

	require.NoError(t, s.Orders().UpdateStatus(ctx, seeded.ID, order.StatusProcessing, order.StatusCancelled, now))
	rec := &refund.Record{
		ID:          "refund-1",
		OrderID:     seeded.ID,
		PaymentID:   seeded.PaymentID,
		AmountMinor: 20000,
		Currency:    "INR",
		Status:      refund.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Refunds().Create(ctx, rec))
	require.NoError(t, c.Delete(ctx, cache.OrderKey("1001")))

	detail, err = handler.GetOrder(ctx, "1001", "cust-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Refund)
	assert.Equal(t, refund.StatusPending, detail.Refund.Status)
	assert.Empty(t, detail.Refund.RefundID)
	assert.Equal(t, int64(20000), detail.Refund.AmountMinor)

	rec.Complete("rfnd_1", now)
	require.NoError(t, s.Refunds().Update(ctx, rec))
	require.NoError(t, c.Delete(ctx, cache.OrderKey("1001")))

	detail, err = handler.GetOrder(ctx, "1001", "cust-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Refund)
	assert.Equal(t, refund.StatusCompleted, detail.Refund.Status)
	assert.Equal(t, "rfnd_1", detail.Refund.RefundID)
}

// gatedStore holds the first ListByCustomer call after it has read from
// the store, until release is closed.
type gatedStore struct {
	store.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Store:   store.NewMemoryStore(),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) Orders() store.OrderRepository {
	return gatedOrders{OrderRepository: g.Store.Orders(), g: g}
}

type gatedOrders struct {
	store.OrderRepository
	g *gatedStore
}

func (r gatedOrders) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	orders, err := r.OrderRepository.ListByCustomer(ctx, customerID)
	first := false
	r.g.once.Do(func() { first = true })
	if first {
		close(r.g.read)
		<-r.g.release
	}
	return orders, err
}

func TestHandler_StaleLoadDoesNotOverwriteInvalidation(t *testing.T) {
	s := newGatedStore()
	c := mocks.NewMockCache()
	handler := NewHandler(s, c, nil)
	ctx := context.Background()

	stale := make(chan []*order.Order, 1)
	go func() {
		orders, err := handler.ListOrders(ctx, "cust-1")
		assert.NoError(t, err)
		stale <- orders
	}()
	<-s.read

	// A write commits and invalidates while the first load is in flight.
	seedOrder(t, s, "1001", "cust-1", time.Now())
	require.NoError(t, c.Delete(ctx, cache.OrdersKey("cust-1")))

	fresh := make(chan []*order.Order, 1)
	go func() {
		orders, err := handler.ListOrders(ctx, "cust-1")
		assert.NoError(t, err)
		fresh <- orders
	}()
	select {
	case orders := <-fresh:
		assert.Len(t, orders, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("read after invalidation joined the earlier load")
	}

	close(s.release)
	assert.Empty(t, <-stale)

	orders, err := handler.ListOrders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestHandler_CacheFailureFallsBackToStore(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	seedOrder(t, s, "1001", "cust-1", time.Now())
	c.GetErr = errors.New("cache down")
	c.SetErr = errors.New("cache down")

	detail, err := handler.GetOrder(context.Background(), "1001", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "1001", detail.OrderID)
}

func TestHandler_CorruptCacheEntryIsAMiss(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	seedOrder(t, s, "1001", "cust-1", time.Now())
	c.Put(cache.OrdersKey("cust-1"), []byte("{not json"))

	orders, err := handler.ListOrders(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

// ============================================
// Cart Query Tests
// ============================================

func TestHandler_GetCart(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	ctx := context.Background()

	empty, err := handler.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", empty.UserID)
	assert.Empty(t, empty.Items)

	entry, err := cart.NewEntry("cust-1", "prod-1", "M", 2, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Carts().Add(ctx, entry))
	require.NoError(t, c.Delete(ctx, cache.CartKey("cust-1")))

	view, err := handler.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

// ============================================
// Product Query Tests
// ============================================

func TestHandler_GetProduct(t *testing.T) {
	handler, s, c := newTestQueryHandler()
	ctx := context.Background()
	require.NoError(t, s.Seed(ctx, []*product.Product{{
		ID:    "prod-1",
		Name:  "Linen Shirt",
		Price: decimal.NewFromInt(100),
		Stock: 5,
		Sizes: []product.Size{{Size: "M", Stock: 5}},
	}}))

	p, err := handler.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", p.Name)
	require.Len(t, c.SetCalls, 1)
	assert.Equal(t, cache.CatalogTTL, c.SetCalls[0].TTL)

	_, err = handler.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

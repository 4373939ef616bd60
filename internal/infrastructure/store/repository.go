package store

import (
	"context"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/refund"
)

// ProductRepository owns product stock. Stock changes are guarded so stock
// never drops below zero under concurrent callers.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*product.Product, error)
	// FindByIDs returns every product found, keyed by id.
	FindByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error)
	DecreaseStock(ctx context.Context, productID, size string, quantity int) error
	IncreaseStock(ctx context.Context, productID, size string, quantity int) error
}

type OrderItemRepository interface {
	CreateBatch(ctx context.Context, items []*order.OrderItem) error
	// FindByIDs returns items in the order of ids, failing with
	// order.ErrItemNotFound if any id is unknown.
	FindByIDs(ctx context.Context, ids []string) ([]*order.OrderItem, error)
	// BindToOrder sets OrderID on unbound items only.
	BindToOrder(ctx context.Context, itemIDs []string, orderID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	FindByID(ctx context.Context, id string) (*order.Order, error)
	// FindByOrderID loads by human-facing id, scoped to the owning customer.
	FindByOrderID(ctx context.Context, orderID, customerID string) (*order.Order, error)
	// FindAnyByOrderID loads by human-facing id without ownership scoping.
	FindAnyByOrderID(ctx context.Context, orderID string) (*order.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*order.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error)
	// UpdateStatus changes status only if the order is still in from.
	UpdateStatus(ctx context.Context, id string, from, to order.Status, now time.Time) error
	SetRefundID(ctx context.Context, id, refundID string, now time.Time) error
}

type CartRepository interface {
	// Add inserts the entry or adds its quantity to the existing line.
	Add(ctx context.Context, e *cart.Entry) error
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]*cart.Entry, error)
	Clear(ctx context.Context, userID string) error
}

type RefundRepository interface {
	Create(ctx context.Context, r *refund.Record) error
	Update(ctx context.Context, r *refund.Record) error
	FindByOrder(ctx context.Context, orderID string) (*refund.Record, error)
	// ListPending returns pending records created before olderThan, oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*refund.Record, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Products() ProductRepository
	OrderItems() OrderItemRepository
	Orders() OrderRepository
	Carts() CartRepository
	Refunds() RefundRepository
}

// Store is the order store. Calls made through Repositories run on their
// own; WithinTx runs fn in a single transaction that commits only when fn
// returns nil.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
	// Seed upserts catalog products and their sizes.
	Seed(ctx context.Context, products []*product.Product) error
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/refund"
)

// MemoryStore implements Store in process memory. One mutex serialises
// every call; WithinTx holds it for the whole transaction and works on a
// copy that replaces the live data only on commit.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	products map[string]*product.Product
	items    map[string]*order.OrderItem
	orders   map[string]*order.Order // storage id -> order
	carts    map[string][]*cart.Entry
	refunds  map[string]*refund.Record
}

func newMemData() *memData {
	return &memData{
		products: make(map[string]*product.Product),
		items:    make(map[string]*order.OrderItem),
		orders:   make(map[string]*order.Order),
		carts:    make(map[string][]*cart.Entry),
		refunds:  make(map[string]*refund.Record),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.products {
		c.products[k] = v.Clone()
	}
	for k, v := range d.items {
		c.items[k] = cloneItem(v)
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range d.carts {
		entries := make([]*cart.Entry, len(v))
		for i, e := range v {
			cp := *e
			entries[i] = &cp
		}
		c.carts[k] = entries
	}
	for k, v := range d.refunds {
		cp := *v
		c.refunds[k] = &cp
	}
	return c
}

func cloneItem(i *order.OrderItem) *order.OrderItem {
	cp := *i
	return &cp
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.OrderItems = append([]string(nil), o.OrderItems...)
	return &cp
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

// autoCommit runs fn against the live data under the store lock.
func (s *MemoryStore) autoCommit(fn func(d *memData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *MemoryStore) repos() memRepos {
	return memRepos{run: s.autoCommit}
}

func (s *MemoryStore) Products() ProductRepository     { return s.repos().Products() }
func (s *MemoryStore) OrderItems() OrderItemRepository { return s.repos().OrderItems() }
func (s *MemoryStore) Orders() OrderRepository         { return s.repos().Orders() }
func (s *MemoryStore) Carts() CartRepository           { return s.repos().Carts() }
func (s *MemoryStore) Refunds() RefundRepository       { return s.repos().Refunds() }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	tx := memRepos{run: func(f func(d *memData) error) error { return f(work) }}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Seed(_ context.Context, products []*product.Product) error {
	return s.autoCommit(func(d *memData) error {
		for _, p := range products {
			d.products[p.ID] = p.Clone()
		}
		return nil
	})
}

func (s *MemoryStore) Close() error { return nil }

type memRepos struct {
	run func(fn func(d *memData) error) error
}

func (r memRepos) Products() ProductRepository     { return memProducts(r) }
func (r memRepos) OrderItems() OrderItemRepository { return memItems(r) }
func (r memRepos) Orders() OrderRepository         { return memOrders(r) }
func (r memRepos) Carts() CartRepository           { return memCarts(r) }
func (r memRepos) Refunds() RefundRepository       { return memRefunds(r) }

// ============================================
// Products
// ============================================

type memProducts memRepos

func (r memProducts) FindByID(_ context.Context, id string) (*product.Product, error) {
	var out *product.Product
	err := r.run(func(d *memData) error {
		p, ok := d.products[id]
		if !ok {
			return product.ErrProductNotFound
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r memProducts) FindByIDs(_ context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	err := r.run(func(d *memData) error {
		for _, id := range ids {
			if p, ok := d.products[id]; ok {
				out[id] = p.Clone()
			}
		}
		return nil
	})
	return out, err
}

func (r memProducts) DecreaseStock(_ context.Context, productID, size string, quantity int) error {
	return r.run(func(d *memData) error {
		p, ok := d.products[productID]
		if !ok {
			return fmt.Errorf("product %s: %w", productID, product.ErrProductNotFound)
		}
		next := p.Clone()
		if err := next.Decrease(size, quantity); err != nil {
			return err
		}
		next.UpdatedAt = time.Now()
		d.products[productID] = next
		return nil
	})
}

func (r memProducts) IncreaseStock(_ context.Context, productID, size string, quantity int) error {
	return r.run(func(d *memData) error {
		p, ok := d.products[productID]
		if !ok {
			return fmt.Errorf("product %s: %w", productID, product.ErrProductNotFound)
		}
		next := p.Clone()
		if err := next.Increase(size, quantity); err != nil {
			return err
		}
		next.UpdatedAt = time.Now()
		d.products[productID] = next
		return nil
	})
}

// ============================================
// Order items
// ============================================

type memItems memRepos

func (r memItems) CreateBatch(_ context.Context, items []*order.OrderItem) error {
	return r.run(func(d *memData) error {
		for _, item := range items {
			if _, exists := d.items[item.ID]; exists {
				return fmt.Errorf("order item %s already exists", item.ID)
			}
		}
		for _, item := range items {
			d.items[item.ID] = cloneItem(item)
		}
		return nil
	})
}

func (r memItems) FindByIDs(_ context.Context, ids []string) ([]*order.OrderItem, error) {
	var out []*order.OrderItem
	err := r.run(func(d *memData) error {
		out = make([]*order.OrderItem, 0, len(ids))
		for _, id := range ids {
			item, ok := d.items[id]
			if !ok {
				return fmt.Errorf("item %s: %w", id, order.ErrItemNotFound)
			}
			out = append(out, cloneItem(item))
		}
		return nil
	})
	return out, err
}

func (r memItems) BindToOrder(_ context.Context, itemIDs []string, orderID string) error {
	return r.run(func(d *memData) error {
		for _, id := range itemIDs {
			item, ok := d.items[id]
			if !ok {
				return fmt.Errorf("item %s: %w", id, order.ErrItemNotFound)
			}
			if item.Bound() {
				return fmt.Errorf("item %s: %w", id, order.ErrItemAlreadyBound)
			}
		}
		for _, id := range itemIDs {
			d.items[id].OrderID = orderID
		}
		return nil
	})
}

// ============================================
// Orders
// ============================================

type memOrders memRepos

func (r memOrders) Create(_ context.Context, o *order.Order) error {
	return r.run(func(d *memData) error {
		for _, existing := range d.orders {
			switch {
			case existing.ID == o.ID:
				return fmt.Errorf("order %s already exists", o.ID)
			case existing.OrderID == o.OrderID:
				return fmt.Errorf("order %s: %w", o.OrderID, order.ErrOrderIDTaken)
			case existing.PaymentID == o.PaymentID:
				return fmt.Errorf("payment %s: %w", o.PaymentID, order.ErrDuplicatePayment)
			}
		}
		d.orders[o.ID] = cloneOrder(o)
		return nil
	})
}

func (r memOrders) find(match func(o *order.Order) bool) (*order.Order, error) {
	var out *order.Order
	err := r.run(func(d *memData) error {
		for _, o := range d.orders {
			if match(o) {
				out = cloneOrder(o)
				return nil
			}
		}
		return order.ErrOrderNotFound
	})
	return out, err
}

func (r memOrders) FindByID(_ context.Context, id string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.ID == id })
}

func (r memOrders) FindByOrderID(_ context.Context, orderID, customerID string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.OrderID == orderID && o.CustomerID == customerID })
}

func (r memOrders) FindAnyByOrderID(_ context.Context, orderID string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.OrderID == orderID })
}

func (r memOrders) FindByPaymentID(_ context.Context, paymentID string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.PaymentID == paymentID })
}

func (r memOrders) ListByCustomer(_ context.Context, customerID string) ([]*order.Order, error) {
	out := make([]*order.Order, 0)
	err := r.run(func(d *memData) error {
		for _, o := range d.orders {
			if o.CustomerID == customerID {
				out = append(out, cloneOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (r memOrders) UpdateStatus(_ context.Context, id string, from, to order.Status, now time.Time) error {
	return r.run(func(d *memData) error {
		o, ok := d.orders[id]
		if !ok {
			return order.ErrOrderNotFound
		}
		if o.Status != from {
			return statusConflict(id, o.Status, to)
		}
		o.Status = to
		o.UpdatedAt = now
		return nil
	})
}

func (r memOrders) SetRefundID(_ context.Context, id, refundID string, now time.Time) error {
	return r.run(func(d *memData) error {
		o, ok := d.orders[id]
		if !ok {
			return order.ErrOrderNotFound
		}
		o.RefundID = refundID
		o.UpdatedAt = now
		return nil
	})
}

// statusConflict reports a guarded status update that found the order in another state.
func statusConflict(id string, current, target order.Status) error {
	if current == order.StatusCancelled {
		return fmt.Errorf("order %s: %w", id, order.ErrOrderCancelled)
	}
	return fmt.Errorf("%w: order %s is %s, cannot move to %s", order.ErrInvalidStatus, id, current, target)
}

// ============================================
// Carts
// ============================================

type memCarts memRepos

func (r memCarts) Add(_ context.Context, e *cart.Entry) error {
	return r.run(func(d *memData) error {
		for _, existing := range d.carts[e.UserID] {
			if existing.SameLine(e) {
				existing.Quantity += e.Quantity
				return nil
			}
		}
		cp := *e
		d.carts[e.UserID] = append(d.carts[e.UserID], &cp)
		return nil
	})
}

func (r memCarts) Remove(_ context.Context, userID, productID string) error {
	return r.run(func(d *memData) error {
		entries := d.carts[userID]
		kept := entries[:0:0]
		for _, e := range entries {
			if e.ProductID != productID {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(entries) {
			return cart.ErrEntryNotFound
		}
		d.carts[userID] = kept
		return nil
	})
}

func (r memCarts) List(_ context.Context, userID string) ([]*cart.Entry, error) {
	out := make([]*cart.Entry, 0)
	err := r.run(func(d *memData) error {
		for _, e := range d.carts[userID] {
			cp := *e
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r memCarts) Clear(_ context.Context, userID string) error {
	return r.run(func(d *memData) error {
		delete(d.carts, userID)
		return nil
	})
}

// ============================================
// Refunds
// ============================================

type memRefunds memRepos

func (r memRefunds) Create(_ context.Context, rec *refund.Record) error {
	return r.run(func(d *memData) error {
		for _, existing := range d.refunds {
			if existing.ID == rec.ID || existing.OrderID == rec.OrderID {
				return fmt.Errorf("refund record for order %s already exists", rec.OrderID)
			}
		}
		cp := *rec
		d.refunds[rec.ID] = &cp
		return nil
	})
}

func (r memRefunds) Update(_ context.Context, rec *refund.Record) error {
	return r.run(func(d *memData) error {
		if _, ok := d.refunds[rec.ID]; !ok {
			return refund.ErrRecordNotFound
		}
		cp := *rec
		d.refunds[rec.ID] = &cp
		return nil
	})
}

func (r memRefunds) FindByOrder(_ context.Context, orderID string) (*refund.Record, error) {
	var out *refund.Record
	err := r.run(func(d *memData) error {
		for _, rec := range d.refunds {
			if rec.OrderID == orderID {
				cp := *rec
				out = &cp
				return nil
			}
		}
		return refund.ErrRecordNotFound
	})
	return out, err
}

func (r memRefunds) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*refund.Record, error) {
	out := make([]*refund.Record, 0)
	err := r.run(func(d *memData) error {
		for _, rec := range d.refunds {
			if rec.Pending() && rec.CreatedAt.Before(olderThan) {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ============================================
// Order items
// ============================================

type pgItems pgRepos

type itemRow struct {
	ID              string          `db:"id"`
	CustomerID      string          `db:"customer_id"`
	ProductID       string          `db:"product_id"`
	ProductName     string          `db:"product_name"`
	Size            string          `db:"size"`
	Quantity        int             `db:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	PaymentIntentID string          `db:"payment_intent_id"`
	OrderID         sql.NullString  `db:"order_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (row itemRow) toDomain() *order.OrderItem {
	return &order.OrderItem{
		ID:              row.ID,
		CustomerID:      row.CustomerID,
		ProductID:       row.ProductID,
		ProductName:     row.ProductName,
		Size:            row.Size,
		Quantity:        row.Quantity,
		UnitPrice:       row.UnitPrice,
		TotalPrice:      row.TotalPrice,
		PaymentIntentID: row.PaymentIntentID,
		OrderID:         row.OrderID.String,
		CreatedAt:       row.CreatedAt,
	}
}

func (r pgItems) CreateBatch(ctx context.Context, items []*order.OrderItem) error {
	return pgRepos(r).atomic(ctx, func(q sqlx.ExtContext) error {
		for _, item := range items {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_items (id, customer_id, product_id, product_name, size, quantity,
					unit_price, total_price, payment_intent_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				item.ID, item.CustomerID, item.ProductID, item.ProductName, item.Size, item.Quantity,
				item.UnitPrice, item.TotalPrice, item.PaymentIntentID, item.CreatedAt); err != nil {
				return errors.Wrapf(err, "insert order item %s", item.ID)
			}
		}
		return nil
	})
}

func (r pgItems) FindByIDs(ctx context.Context, ids []string) ([]*order.OrderItem, error) {
	var rows []itemRow
	if err := sqlx.SelectContext(ctx, r.q, &rows,
		`SELECT id, customer_id, product_id, product_name, size, quantity, unit_price, total_price,
			payment_intent_id, order_id, created_at
		FROM order_items WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "select order items")
	}

	byID := make(map[string]itemRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*order.OrderItem, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("item %s: %w", id, order.ErrItemNotFound)
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r pgItems) BindToOrder(ctx context.Context, itemIDs []string, orderID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE order_items SET order_id = $2 WHERE id = ANY($1) AND order_id IS NULL`,
		pq.Array(itemIDs), orderID)
	if err != nil {
		return errors.Wrap(err, "bind order items")
	}
	if n, _ := res.RowsAffected(); int(n) != len(itemIDs) {
		return fmt.Errorf("bound %d of %d items: %w", n, len(itemIDs), order.ErrItemAlreadyBound)
	}
	return nil
}

// ============================================
// Orders
// ============================================

type pgOrders pgRepos

type orderRow struct {
	ID             string          `db:"id"`
	OrderID        string          `db:"order_id"`
	CustomerID     string          `db:"customer_id"`
	OrderItemIDs   pq.StringArray  `db:"order_item_ids"`
	AddressID      string          `db:"address_id"`
	Status         string          `db:"status"`
	PaymentID      string          `db:"payment_id"`
	GatewayOrderID string          `db:"gateway_order_id"`
	PaymentMethod  string          `db:"payment_method"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	Currency       string          `db:"currency"`
	RefundID       sql.NullString  `db:"refund_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const selectOrders = `
	SELECT id, order_id, customer_id, order_item_ids, address_id, status, payment_id, gateway_order_id,
		payment_method, total_amount, currency, refund_id, created_at, updated_at
	FROM orders`

func (row orderRow) toDomain() *order.Order {
	return &order.Order{
		ID:             row.ID,
		OrderID:        row.OrderID,
		CustomerID:     row.CustomerID,
		OrderItems:     []string(row.OrderItemIDs),
		AddressID:      row.AddressID,
		Status:         order.Status(row.Status),
		PaymentID:      row.PaymentID,
		GatewayOrderID: row.GatewayOrderID,
		PaymentMethod:  row.PaymentMethod,
		TotalAmount:    row.TotalAmount,
		Currency:       row.Currency,
		RefundID:       row.RefundID.String,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func (r pgOrders) Create(ctx context.Context, o *order.Order) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (id, order_id, customer_id, order_item_ids, address_id, status, payment_id,
			gateway_order_id, payment_method, total_amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.OrderID, o.CustomerID, pq.Array(o.OrderItems), o.AddressID, string(o.Status), o.PaymentID,
		o.GatewayOrderID, o.PaymentMethod, o.TotalAmount, o.Currency, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err, "orders_payment_id_key") {
		return fmt.Errorf("payment %s: %w", o.PaymentID, order.ErrDuplicatePayment)
	}
	if isUniqueViolation(err, "orders_order_id_key") {
		return fmt.Errorf("order %s: %w", o.OrderID, order.ErrOrderIDTaken)
	}
	if err != nil {
		return errors.Wrapf(err, "insert order %s", o.OrderID)
	}
	return nil
}

func (r pgOrders) getOne(ctx context.Context, where string, args ...any) (*order.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row, selectOrders+" WHERE "+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return row.toDomain(), nil
}

func (r pgOrders) FindByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r pgOrders) FindByOrderID(ctx context.Context, orderID, customerID string) (*order.Order, error) {
	return r.getOne(ctx, "order_id = $1 AND customer_id = $2", orderID, customerID)
}

func (r pgOrders) FindAnyByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.getOne(ctx, "order_id = $1", orderID)
}

func (r pgOrders) FindByPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	return r.getOne(ctx, "payment_id = $1", paymentID)
}

func (r pgOrders) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.q, &rows,
		selectOrders+` WHERE customer_id = $1 ORDER BY created_at DESC, order_id DESC`, customerID); err != nil {
		return nil, errors.Wrapf(err, "list orders of %s", customerID)
	}
	out := make([]*order.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r pgOrders) UpdateStatus(ctx context.Context, id string, from, to order.Status, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), now)
	if err != nil {
		return errors.Wrapf(err, "update status of order %s", id)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var current string
	err = sqlx.GetContext(ctx, r.q, &current, `SELECT status FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return order.ErrOrderNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "read status of order %s", id)
	}
	return statusConflict(id, order.Status(current), to)
}

func (r pgOrders) SetRefundID(ctx context.Context, id, refundID string, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET refund_id = $2, updated_at = $3 WHERE id = $1`, id, refundID, now)
	if err != nil {
		return errors.Wrapf(err, "set refund id of order %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ============================================
// Carts
// ============================================

type pgCarts pgRepos

type cartRow struct {
	UserID    string    `db:"user_id"`
	ProductID string    `db:"product_id"`
	Size      string    `db:"size"`
	Quantity  int       `db:"quantity"`
	AddedAt   time.Time `db:"added_at"`
}

func (r pgCarts) Add(ctx context.Context, e *cart.Entry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO cart_entries (user_id, product_id, size, quantity, added_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id, size) DO UPDATE SET quantity = cart_entries.quantity + EXCLUDED.quantity`,
		e.UserID, e.ProductID, e.Size, e.Quantity, e.AddedAt)
	return errors.Wrapf(err, "add cart entry for %s", e.UserID)
}

func (r pgCarts) Remove(ctx context.Context, userID, productID string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM cart_entries WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return errors.Wrapf(err, "remove cart entry for %s", userID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cart.ErrEntryNotFound
	}
	return nil
}

func (r pgCarts) List(ctx context.Context, userID string) ([]*cart.Entry, error) {
	var rows []cartRow
	if err := sqlx.SelectContext(ctx, r.q, &rows,
		`SELECT user_id, product_id, size, quantity, added_at FROM cart_entries
		WHERE user_id = $1 ORDER BY added_at, product_id, size`, userID); err != nil {
		return nil, errors.Wrapf(err, "list cart of %s", userID)
	}
	out := make([]*cart.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, &cart.Entry{
			UserID:    row.UserID,
			ProductID: row.ProductID,
			Size:      row.Size,
			Quantity:  row.Quantity,
			AddedAt:   row.AddedAt,
		})
	}
	return out, nil
}

func (r pgCarts) Clear(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM cart_entries WHERE user_id = $1`, userID)
	return errors.Wrapf(err, "clear cart of %s", userID)
}

// ============================================
// Refunds
// ============================================

type pgRefunds pgRepos

type refundRow struct {
	ID          string    `db:"id"`
	OrderID     string    `db:"order_id"`
	PaymentID   string    `db:"payment_id"`
	AmountMinor int64     `db:"amount_minor"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	RefundID    string    `db:"refund_id"`
	Attempts    int       `db:"attempts"`
	LastError   string    `db:"last_error"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row refundRow) toDomain() *refund.Record {
	return &refund.Record{
		ID:          row.ID,
		OrderID:     row.OrderID,
		PaymentID:   row.PaymentID,
		AmountMinor: row.AmountMinor,
		Currency:    row.Currency,
		Status:      refund.Status(row.Status),
		RefundID:    row.RefundID,
		Attempts:    row.Attempts,
		LastError:   row.LastError,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

const selectRefunds = `
	SELECT id, order_id, payment_id, amount_minor, currency, status, refund_id, attempts, last_error,
		created_at, updated_at
	FROM refunds`

func (r pgRefunds) Create(ctx context.Context, rec *refund.Record) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refunds (id, order_id, payment_id, amount_minor, currency, status, refund_id,
			attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.OrderID, rec.PaymentID, rec.AmountMinor, rec.Currency, string(rec.Status), rec.RefundID,
		rec.Attempts, rec.LastError, rec.CreatedAt, rec.UpdatedAt)
	return errors.Wrapf(err, "insert refund record for order %s", rec.OrderID)
}

func (r pgRefunds) Update(ctx context.Context, rec *refund.Record) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refunds SET status = $2, refund_id = $3, attempts = $4, last_error = $5, updated_at = $6
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.RefundID, rec.Attempts, rec.LastError, rec.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "update refund record %s", rec.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return refund.ErrRecordNotFound
	}
	return nil
}

func (r pgRefunds) FindByOrder(ctx context.Context, orderID string) (*refund.Record, error) {
	var row refundRow
	err := sqlx.GetContext(ctx, r.q, &row, selectRefunds+` WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refund.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select refund record for order %s", orderID)
	}
	return row.toDomain(), nil
}

func (r pgRefunds) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*refund.Record, error) {
	var rows []refundRow
	if err := sqlx.SelectContext(ctx, r.q, &rows,
		selectRefunds+` WHERE status = 'pending' AND created_at < $1 ORDER BY created_at LIMIT $2`,
		olderThan, limit); err != nil {
		return nil, errors.Wrap(err, "list pending refunds")
	}
	out := make([]*refund.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

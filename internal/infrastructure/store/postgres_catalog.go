package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type pgProducts pgRepos

type productRow struct {
	ID                string              `db:"id"`
	Name              string              `db:"name"`
	Price             decimal.Decimal     `db:"price"`
	Stock             int                 `db:"stock"`
	DiscountID        sql.NullString      `db:"discount_id"`
	DiscountPercent   decimal.NullDecimal `db:"discount_percent"`
	DiscountActive    sql.NullBool        `db:"discount_active"`
	DiscountExpiresAt sql.NullTime        `db:"discount_expires_at"`
	CreatedAt         time.Time           `db:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at"`
}

type sizeRow struct {
	ProductID string `db:"product_id"`
	Size      string `db:"size"`
	Stock     int    `db:"stock"`
}

const selectProducts = `
	SELECT p.id, p.name, p.price, p.stock, p.discount_id,
		d.percent AS discount_percent, d.active AS discount_active, d.expires_at AS discount_expires_at,
		p.created_at, p.updated_at
	FROM products p
	LEFT JOIN discounts d ON d.id = p.discount_id`

func (row productRow) toDomain() *product.Product {
	p := &product.Product{
		ID:        row.ID,
		Name:      row.Name,
		Price:     row.Price,
		Stock:     row.Stock,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.DiscountID.Valid {
		d := &product.Discount{
			ID:      row.DiscountID.String,
			Percent: row.DiscountPercent.Decimal,
			Active:  row.DiscountActive.Bool,
		}
		if row.DiscountExpiresAt.Valid {
			exp := row.DiscountExpiresAt.Time
			d.ExpiresAt = &exp
		}
		p.Discount = d
	}
	return p
}

func (r pgProducts) FindByID(ctx context.Context, id string) (*product.Product, error) {
	found, err := r.FindByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	p, ok := found[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (r pgProducts) FindByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []productRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, selectProducts+` WHERE p.id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	for _, row := range rows {
		out[row.ID] = row.toDomain()
	}

	var sizes []sizeRow
	if err := sqlx.SelectContext(ctx, r.q, &sizes,
		`SELECT product_id, size, stock FROM product_sizes WHERE product_id = ANY($1) ORDER BY product_id, size`,
		pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "select product sizes")
	}
	for _, s := range sizes {
		if p, ok := out[s.ProductID]; ok {
			p.Sizes = append(p.Sizes, product.Size{Size: s.Size, Stock: s.Stock})
		}
	}
	return out, nil
}

// lockProduct takes the row lock and reports whether the product tracks sizes.
func lockProduct(ctx context.Context, q sqlx.ExtContext, productID string) (bool, error) {
	var stock int
	err := sqlx.GetContext(ctx, q, &stock, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("product %s: %w", productID, product.ErrProductNotFound)
	}
	if err != nil {
		return false, errors.Wrapf(err, "lock product %s", productID)
	}

	var sized bool
	if err := sqlx.GetContext(ctx, q, &sized,
		`SELECT EXISTS (SELECT 1 FROM product_sizes WHERE product_id = $1)`, productID); err != nil {
		return false, errors.Wrapf(err, "check sizes of %s", productID)
	}
	return sized, nil
}

func (r pgProducts) DecreaseStock(ctx context.Context, productID, size string, quantity int) error {
	if quantity <= 0 {
		return product.ErrInvalidQuantity
	}
	return pgRepos(r).atomic(ctx, func(q sqlx.ExtContext) error {
		sized, err := lockProduct(ctx, q, productID)
		if err != nil {
			return err
		}

		if sized {
			res, err := q.ExecContext(ctx,
				`UPDATE product_sizes SET stock = stock - $3 WHERE product_id = $1 AND size = $2 AND stock >= $3`,
				productID, size, quantity)
			if err != nil {
				return errors.Wrapf(err, "decrement size %s of %s", size, productID)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return classifySizeMiss(ctx, q, productID, size, quantity)
			}
		}

		res, err := q.ExecContext(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
			productID, quantity)
		if err != nil {
			return errors.Wrapf(err, "decrement stock of %s", productID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("product %s below %d: %w", productID, quantity, product.ErrInsufficientStock)
		}
		return nil
	})
}

func classifySizeMiss(ctx context.Context, q sqlx.ExtContext, productID, size string, quantity int) error {
	var stock int
	err := sqlx.GetContext(ctx, q, &stock,
		`SELECT stock FROM product_sizes WHERE product_id = $1 AND size = $2`, productID, size)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %s size %q: %w", productID, size, product.ErrSizeNotFound)
	}
	if err != nil {
		return errors.Wrapf(err, "read size %s of %s", size, productID)
	}
	return fmt.Errorf("product %s size %q has %d, need %d: %w",
		productID, size, stock, quantity, product.ErrInsufficientStock)
}

func (r pgProducts) IncreaseStock(ctx context.Context, productID, size string, quantity int) error {
	if quantity <= 0 {
		return product.ErrInvalidQuantity
	}
	return pgRepos(r).atomic(ctx, func(q sqlx.ExtContext) error {
		sized, err := lockProduct(ctx, q, productID)
		if err != nil {
			return err
		}

		if sized && size != "" {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO product_sizes (product_id, size, stock) VALUES ($1, $2, $3)
				ON CONFLICT (product_id, size) DO UPDATE SET stock = product_sizes.stock + EXCLUDED.stock`,
				productID, size, quantity); err != nil {
				return errors.Wrapf(err, "restock size %s of %s", size, productID)
			}
		}

		if _, err := q.ExecContext(ctx,
			`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`,
			productID, quantity); err != nil {
			return errors.Wrapf(err, "restock %s", productID)
		}
		return nil
	})
}

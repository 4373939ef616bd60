package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL. Stock rows are locked with
// SELECT ... FOR UPDATE and decremented with guarded conditional updates.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgreSQL-based store
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// pgRepos binds the repositories to q. db is set only outside a
// transaction, where multi-statement writes open their own.
type pgRepos struct {
	q  sqlx.ExtContext
	db *sqlx.DB
}

func (r pgRepos) Products() ProductRepository     { return pgProducts(r) }
func (r pgRepos) OrderItems() OrderItemRepository { return pgItems(r) }
func (r pgRepos) Orders() OrderRepository         { return pgOrders(r) }
func (r pgRepos) Carts() CartRepository           { return pgCarts(r) }
func (r pgRepos) Refunds() RefundRepository       { return pgRefunds(r) }

// atomic runs fn in a transaction unless r is already bound to one.
func (r pgRepos) atomic(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	if r.db == nil {
		return fn(r.q)
	}
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error { return fn(tx) })
}

func (s *PostgresStore) repos() pgRepos { return pgRepos{q: s.db, db: s.db} }

func (s *PostgresStore) Products() ProductRepository     { return s.repos().Products() }
func (s *PostgresStore) OrderItems() OrderItemRepository { return s.repos().OrderItems() }
func (s *PostgresStore) Orders() OrderRepository         { return s.repos().Orders() }
func (s *PostgresStore) Carts() CartRepository           { return s.repos().Carts() }
func (s *PostgresStore) Refunds() RefundRepository       { return s.repos().Refunds() }

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	return runTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(pgRepos{q: tx})
	})
}

func runTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (s *PostgresStore) Seed(ctx context.Context, products []*product.Product) error {
	return runTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, p := range products {
			if err := seedProduct(ctx, tx, p); err != nil {
				return errors.Wrapf(err, "seed product %s", p.ID)
			}
		}
		return nil
	})
}

func seedProduct(ctx context.Context, tx *sqlx.Tx, p *product.Product) error {
	var discountID sql.NullString
	if d := p.Discount; d != nil {
		discountID = sql.NullString{String: d.ID, Valid: true}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO discounts (id, percent, active, expires_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET percent = EXCLUDED.percent, active = EXCLUDED.active, expires_at = EXCLUDED.expires_at`,
			d.ID, d.Percent, d.Active, d.ExpiresAt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, discount_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			stock = EXCLUDED.stock, discount_id = EXCLUDED.discount_id, updated_at = NOW()`,
		p.ID, p.Name, p.Price, p.Stock, discountID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, p.ID); err != nil {
		return err
	}
	for _, sz := range p.Sizes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO product_sizes (product_id, size, stock) VALUES ($1, $2, $3)`,
			p.ID, sz.Size, sz.Stock); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

package product

import (
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = apperr.New(apperr.ErrNotFound, "product not found")
	ErrSizeNotFound      = apperr.New(apperr.ErrNotFound, "size not found")
	ErrInsufficientStock = apperr.New(apperr.ErrInsufficientStock, "insufficient stock")
	ErrInvalidQuantity   = apperr.New(apperr.ErrValidation, "quantity must be positive")
)

var hundred = decimal.NewFromInt(100)

// Size is the stock held for one size label of a product.
type Size struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Discount struct {
	ID        string          `json:"id"`
	Percent   decimal.Decimal `json:"percent"`
	Active    bool            `json:"active"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Applies reports whether the discount is active and unexpired at now.
func (d *Discount) Applies(now time.Time) bool {
	if d == nil || !d.Active {
		return false
	}
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return false
	}
	return d.Percent.IsPositive() && d.Percent.LessThanOrEqual(hundred)
}

// DiscountedPrice returns price*(100-percent)/100 rounded to 2 places.
func (d *Discount) DiscountedPrice(price decimal.Decimal) decimal.Decimal {
	return price.Mul(hundred.Sub(d.Percent)).Div(hundred).Round(2)
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Sizes     []Size          `json:"sizes,omitempty"`
	Discount  *Discount       `json:"discount,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UnitPrice is the price a customer pays per unit at now.
func (p *Product) UnitPrice(now time.Time) decimal.Decimal {
	if p.Discount.Applies(now) {
		return p.Discount.DiscountedPrice(p.Price)
	}
	return p.Price
}

func (p *Product) HasSizes() bool {
	return len(p.Sizes) > 0
}

// SizeIndex returns the position of size in Sizes, or -1.
func (p *Product) SizeIndex(size string) int {
	for i, s := range p.Sizes {
		if s.Size == size {
			return i
		}
	}
	return -1
}

// SizeStock returns the stock of size, or false when the size is not tracked.
func (p *Product) SizeStock(size string) (int, bool) {
	if i := p.SizeIndex(size); i >= 0 {
		return p.Sizes[i].Stock, true
	}
	return 0, false
}

// Decrease removes quantity units of size. Sized products decrement both the
// size entry and the aggregate; size-less products only the aggregate.
// Nothing changes when an error is returned.
func (p *Product) Decrease(size string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	idx := -1
	if p.HasSizes() {
		idx = p.SizeIndex(size)
		if idx < 0 {
			return fmt.Errorf("product %s size %q: %w", p.ID, size, ErrSizeNotFound)
		}
		if p.Sizes[idx].Stock < quantity {
			return fmt.Errorf("product %s size %q has %d, need %d: %w",
				p.ID, size, p.Sizes[idx].Stock, quantity, ErrInsufficientStock)
		}
	}
	if p.Stock < quantity {
		return fmt.Errorf("product %s has %d, need %d: %w", p.ID, p.Stock, quantity, ErrInsufficientStock)
	}

	if idx >= 0 {
		p.Sizes[idx].Stock -= quantity
	}
	p.Stock -= quantity
	return nil
}

// Increase returns quantity units of size to stock. A sized product gains the
// size entry if it is missing.
func (p *Product) Increase(size string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	if p.HasSizes() && size != "" {
		if idx := p.SizeIndex(size); idx >= 0 {
			p.Sizes[idx].Stock += quantity
		} else {
			p.Sizes = append(p.Sizes, Size{Size: size, Stock: quantity})
		}
	}
	p.Stock += quantity
	return nil
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	c := *p
	if p.Sizes != nil {
		c.Sizes = make([]Size, len(p.Sizes))
		copy(c.Sizes, p.Sizes)
	}
	if p.Discount != nil {
		d := *p.Discount
		if p.Discount.ExpiresAt != nil {
			exp := *p.Discount.ExpiresAt
			d.ExpiresAt = &exp
		}
		c.Discount = &d
	}
	return &c
}

// Validate checks a catalog entry before it is stored.
func (p *Product) Validate() error {
	if p.ID == "" {
		return apperr.New(apperr.ErrValidation, "product id is required")
	}
	if p.Name == "" {
		return apperr.New(apperr.ErrValidation, "product name is required")
	}
	if p.Price.IsNegative() {
		return apperr.New(apperr.ErrValidation, "price must not be negative")
	}
	if p.Stock < 0 {
		return apperr.New(apperr.ErrValidation, "stock must not be negative")
	}
	seen := make(map[string]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		if s.Size == "" || s.Stock < 0 {
			return fmt.Errorf("%w: invalid size entry %q", apperr.ErrValidation, s.Size)
		}
		if seen[s.Size] {
			return fmt.Errorf("%w: duplicate size %q", apperr.ErrValidation, s.Size)
		}
		seen[s.Size] = true
	}
	if p.Discount != nil && (p.Discount.Percent.IsNegative() || p.Discount.Percent.GreaterThan(hundred)) {
		return apperr.New(apperr.ErrValidation, "discount percent must be between 0 and 100")
	}
	return nil
}

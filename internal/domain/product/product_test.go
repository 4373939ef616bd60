package product

import (
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSizedProduct() *Product {
	return &Product{
		ID:    "prod-1",
		Name:  "T-Shirt",
		Price: decimal.NewFromInt(100),
		Stock: 8,
		Sizes: []Size{{Size: "M", Stock: 5}, {Size: "L", Stock: 3}},
	}
}

// ============================================
// Pricing Tests
// ============================================

func TestProduct_UnitPrice_NoDiscount(t *testing.T) {
	p := newSizedProduct()

	assert.True(t, decimal.NewFromInt(100).Equal(p.UnitPrice(time.Now())))
}

func TestProduct_UnitPrice_ActiveDiscount(t *testing.T) {
	p := newSizedProduct()
	p.Price = decimal.RequireFromString("199.99")
	p.Discount = &Discount{ID: "d-1", Percent: decimal.NewFromInt(15), Active: true}

	// 199.99 * 85 / 100 = 169.9915
	assert.Equal(t, "169.99", p.UnitPrice(time.Now()).StringFixed(2))
}

func TestProduct_UnitPrice_InactiveDiscount(t *testing.T) {
	p := newSizedProduct()
	p.Discount = &Discount{ID: "d-1", Percent: decimal.NewFromInt(50), Active: false}

	assert.True(t, p.Price.Equal(p.UnitPrice(time.Now())))
}

func TestProduct_UnitPrice_ExpiredDiscount(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	p := newSizedProduct()
	p.Discount = &Discount{ID: "d-1", Percent: decimal.NewFromInt(50), Active: true, ExpiresAt: &expired}

	assert.True(t, p.Price.Equal(p.UnitPrice(now)))
}

func TestProduct_UnitPrice_FutureExpiry(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	p := newSizedProduct()
	p.Discount = &Discount{ID: "d-1", Percent: decimal.NewFromInt(50), Active: true, ExpiresAt: &later}

	assert.Equal(t, "50.00", p.UnitPrice(now).StringFixed(2))
}

// ============================================
// Decrease Tests
// ============================================

func TestProduct_Decrease_Sized(t *testing.T) {
	p := newSizedProduct()

	require.NoError(t, p.Decrease("M", 2))

	stock, ok := p.SizeStock("M")
	assert.True(t, ok)
	assert.Equal(t, 3, stock)
	assert.Equal(t, 6, p.Stock)
}

func TestProduct_Decrease_ToZero(t *testing.T) {
	p := newSizedProduct()

	require.NoError(t, p.Decrease("L", 3))

	stock, _ := p.SizeStock("L")
	assert.Equal(t, 0, stock)
	assert.Equal(t, 5, p.Stock)
}

func TestProduct_Decrease_InsufficientSize(t *testing.T) {
	p := newSizedProduct()

	err := p.Decrease("L", 4)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	stock, _ := p.SizeStock("L")
	assert.Equal(t, 3, stock)
	assert.Equal(t, 8, p.Stock)
}

func TestProduct_Decrease_UnknownSize(t *testing.T) {
	p := newSizedProduct()

	err := p.Decrease("XS", 1)

	assert.ErrorIs(t, err, ErrSizeNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 8, p.Stock)
}

func TestProduct_Decrease_Sizeless(t *testing.T) {
	p := &Product{ID: "prod-2", Price: decimal.NewFromInt(10), Stock: 2}

	require.NoError(t, p.Decrease("", 2))
	assert.Equal(t, 0, p.Stock)

	err := p.Decrease("", 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 0, p.Stock)
}

func TestProduct_Decrease_InvalidQuantity(t *testing.T) {
	p := newSizedProduct()

	for _, q := range []int{0, -1} {
		err := p.Decrease("M", q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
	assert.Equal(t, 8, p.Stock)
}

// ============================================
// Increase Tests
// ============================================

func TestProduct_Increase_ExistingSize(t *testing.T) {
	p := newSizedProduct()

	require.NoError(t, p.Increase("M", 2))

	stock, _ := p.SizeStock("M")
	assert.Equal(t, 7, stock)
	assert.Equal(t, 10, p.Stock)
}

func TestProduct_Increase_CreatesMissingSize(t *testing.T) {
	p := newSizedProduct()

	require.NoError(t, p.Increase("XL", 1))

	stock, ok := p.SizeStock("XL")
	assert.True(t, ok)
	assert.Equal(t, 1, stock)
	assert.Equal(t, 9, p.Stock)
}

func TestProduct_Increase_Sizeless(t *testing.T) {
	p := &Product{ID: "prod-2", Stock: 0}

	require.NoError(t, p.Increase("", 3))

	assert.Equal(t, 3, p.Stock)
	assert.Empty(t, p.Sizes)
}

func TestProduct_DecreaseThenIncrease_RoundTrip(t *testing.T) {
	p := newSizedProduct()

	require.NoError(t, p.Decrease("M", 2))
	require.NoError(t, p.Increase("M", 2))

	stock, _ := p.SizeStock("M")
	assert.Equal(t, 5, stock)
	assert.Equal(t, 8, p.Stock)
}

func TestProduct_Clone_IsDeep(t *testing.T) {
	p := newSizedProduct()
	p.Discount = &Discount{ID: "d-1", Percent: decimal.NewFromInt(10), Active: true}

	c := p.Clone()
	c.Sizes[0].Stock = 0
	c.Discount.Active = false

	assert.Equal(t, 5, p.Sizes[0].Stock)
	assert.True(t, p.Discount.Active)
}

// ============================================
// Validation Tests
// ============================================

func TestProduct_Validate(t *testing.T) {
	require.NoError(t, newSizedProduct().Validate())

	tests := []struct {
		name   string
		mutate func(p *Product)
	}{
		{"missing id", func(p *Product) { p.ID = "" }},
		{"missing name", func(p *Product) { p.Name = "" }},
		{"negative price", func(p *Product) { p.Price = decimal.NewFromInt(-1) }},
		{"negative stock", func(p *Product) { p.Stock = -1 }},
		{"blank size", func(p *Product) { p.Sizes[0].Size = "" }},
		{"negative size stock", func(p *Product) { p.Sizes[1].Stock = -2 }},
		{"duplicate size", func(p *Product) { p.Sizes[1].Size = "M" }},
		{"discount over 100", func(p *Product) {
			p.Discount = &Discount{ID: "d-1", Percent: decimal.NewFromInt(120), Active: true}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSizedProduct()
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

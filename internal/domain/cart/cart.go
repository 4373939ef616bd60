package cart

import (
	"time"

	"github.com/example/ec-checkout/internal/apperr"
)

var (
	ErrInvalidQuantity = apperr.New(apperr.ErrValidation, "quantity must be positive")
	ErrInvalidProduct  = apperr.New(apperr.ErrValidation, "product_id is required")
	ErrEntryNotFound   = apperr.New(apperr.ErrNotFound, "cart entry not found")
)

// Entry is one product line in a customer's cart. Entries are keyed by
// (UserID, ProductID, Size).
type Entry struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Size      string    `json:"size,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// NewEntry validates and builds an entry. A zero quantity defaults to 1.
func NewEntry(userID, productID, size string, quantity int, now time.Time) (*Entry, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Entry{
		UserID:    userID,
		ProductID: productID,
		Size:      size,
		Quantity:  quantity,
		AddedAt:   now,
	}, nil
}

// SameLine reports whether e and other describe the same product and size.
func (e *Entry) SameLine(other *Entry) bool {
	return e.UserID == other.UserID && e.ProductID == other.ProductID && e.Size == other.Size
}

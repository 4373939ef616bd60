package order

import (
	"fmt"
	"slices"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/shopspring/decimal"
)

type Status string

const (
	// StatusPending is a legacy default; new orders start in StatusProcessing.
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrOrderNotFound      = apperr.New(apperr.ErrNotFound, "order not found")
	ErrEmptyOrder         = apperr.New(apperr.ErrValidation, "order must have at least one item")
	ErrInvalidStatus      = apperr.New(apperr.ErrInvalidState, "invalid order status transition")
	ErrOrderCancelled     = apperr.New(apperr.ErrInvalidState, "order is already cancelled")
	ErrOrderDelivered     = apperr.New(apperr.ErrInvalidState, "delivered order cannot be cancelled")
	ErrItemNotFound       = apperr.New(apperr.ErrNotFound, "order item not found")
	ErrItemAlreadyBound   = apperr.New(apperr.ErrInvalidState, "order item already belongs to an order")
	ErrItemIntentMismatch = apperr.New(apperr.ErrAuthenticity, "order item was staged under a different payment")
	ErrDuplicatePayment   = apperr.New(apperr.ErrInvalidState, "payment already used by another order")
	// ErrOrderIDTaken means a generated human-facing id collided; callers
	// retry with a fresh one.
	ErrOrderIDTaken = apperr.New(apperr.ErrInternal, "order id already taken")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, s)
	}
	return st, nil
}

func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

type Order struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	OrderItems     []string        `json:"order_items"`
	AddressID      string          `json:"address_id"`
	Status         Status          `json:"status"`
	PaymentID      string          `json:"payment_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	PaymentMethod  string          `json:"payment_method"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	RefundID       string          `json:"refund_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	return slices.Contains(allowed, target)
}

// TransitionTo moves the order to target or returns why it cannot.
func (o *Order) TransitionTo(target Status, now time.Time) error {
	if !o.CanTransitionTo(target) {
		return o.transitionError(target)
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusDelivered && target == StatusCancelled:
		return ErrOrderDelivered
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// OrderItem is a priced line staged before payment. Only OrderID changes
// after staging, once, when the order is confirmed.
type OrderItem struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Size            string          `json:"size,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	PaymentIntentID string          `json:"payment_intent_id"`
	OrderID         string          `json:"order_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (i *OrderItem) Bound() bool {
	return i.OrderID != ""
}

// CheckClaim verifies that customerID may place the item under gatewayOrderID.
func (i *OrderItem) CheckClaim(customerID, gatewayOrderID string) error {
	switch {
	case i.CustomerID != customerID:
		return fmt.Errorf("item %s: %w", i.ID, ErrItemNotFound)
	case i.Bound():
		return fmt.Errorf("item %s: %w", i.ID, ErrItemAlreadyBound)
	case i.PaymentIntentID != gatewayOrderID:
		return fmt.Errorf("item %s: %w", i.ID, ErrItemIntentMismatch)
	}
	return nil
}

// Total sums TotalPrice over items.
func Total(items []*OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

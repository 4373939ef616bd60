package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderConfirmed     = "OrderConfirmed"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventRefundIssued       = "RefundIssued"
)

// Event is the envelope published for every checkout event.
type Event struct {
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewEvent wraps data in an envelope keyed by the order's storage id.
func NewEvent(eventType, aggregateID string, data any, now time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New().String(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Data:        raw,
		CreatedAt:   now,
	}, nil
}

type ConfirmedItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderConfirmed struct {
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	PaymentID     string          `json:"payment_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Items         []ConfirmedItem `json:"items"`
	ConfirmedAt   time.Time       `json:"confirmed_at"`
}

type OrderCancelled struct {
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	RefundID      string          `json:"refund_id,omitempty"`
	RefundPending bool            `json:"refund_pending"`
	CancelledAt   time.Time       `json:"cancelled_at"`
}

type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	ChangedAt  time.Time `json:"changed_at"`
}

type RefundIssued struct {
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	RefundID    string    `json:"refund_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	IssuedAt    time.Time `json:"issued_at"`
}

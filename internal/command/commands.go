package command

import (
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/shopspring/decimal"
)

// Staging Commands
type StageItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

type StageOrderItems struct {
	CustomerID string      `json:"-"`
	Items      []StageItem `json:"items"`
}

// StagedOrder is the result of staging: persisted items and the payment
// intent the customer pays against.
type StagedOrder struct {
	Items       []*order.OrderItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Intent      payment.Intent     `json:"intent"`
}

// Order Commands
type ConfirmOrder struct {
	CustomerID     string   `json:"-"`
	CustomerEmail  string   `json:"-"`
	OrderItems     []string `json:"order_items"`
	AddressID      string   `json:"address"`
	GatewayOrderID string   `json:"razorpay_order_id"`
	PaymentID      string   `json:"razorpay_payment_id"`
	Signature      string   `json:"razorpay_signature"`
}

type CancelOrder struct {
	CustomerID    string `json:"-"`
	CustomerEmail string `json:"-"`
	OrderID       string `json:"-"`
	Reason        string `json:"reason,omitempty"`
}

type UpdateOrderStatus struct {
	OrderID string       `json:"-"`
	Status  order.Status `json:"status"`
}

// Cart Commands
type AddToCart struct {
	UserID    string `json:"-"`
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type RemoveFromCart struct {
	UserID    string `json:"-"`
	ProductID string `json:"-"`
}

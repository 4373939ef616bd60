package query

import (
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/refund"
)

// OrderDetail is an order with its priced lines.
type OrderDetail struct {
	*order.Order
	Items  []*order.OrderItem `json:"items"`
	Refund *RefundView        `json:"refund,omitempty"`
}

// RefundView is the customer-facing state of a cancelled order's refund.
type RefundView struct {
	Status      refund.Status `json:"status"`
	RefundID    string        `json:"refund_id,omitempty"`
	AmountMinor int64         `json:"amount_minor"`
	Currency    string        `json:"currency"`
}

func newRefundView(rec *refund.Record) *RefundView {
	return &RefundView{
		Status:      rec.Status,
		RefundID:    rec.RefundID,
		AmountMinor: rec.AmountMinor,
		Currency:    rec.Currency,
	}
}

type CartView struct {
	UserID string        `json:"user_id"`
	Items  []*cart.Entry `json:"items"`
}

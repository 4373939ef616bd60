// Package refund models the compensation log written when an order is
// cancelled. A record is created pending in the cancellation transaction and
// completed once the gateway accepts the refund.
package refund

import (
	"time"

	"github.com/example/ec-checkout/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

var ErrRecordNotFound = apperr.New(apperr.ErrNotFound, "refund record not found")

type Record struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Status      Status    `json:"status"`
	RefundID    string    `json:"refund_id,omitempty"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Complete marks the record refunded under refundID.
func (r *Record) Complete(refundID string, now time.Time) {
	r.Status = StatusCompleted
	r.RefundID = refundID
	r.Attempts++
	r.LastError = ""
	r.UpdatedAt = now
}

// Fail records an unsuccessful attempt; the record stays pending.
func (r *Record) Fail(err error, now time.Time) {
	r.Attempts++
	r.LastError = err.Error()
	r.UpdatedAt = now
}

func (r *Record) Pending() bool {
	return r.Status == StatusPending
}

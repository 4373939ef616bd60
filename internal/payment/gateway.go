// Package payment talks to the payment provider: opening intents, reading
// captured payments, issuing refunds and checking callback signatures.
package payment

import (
	"context"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

var (
	ErrInvalidSignature   = apperr.New(apperr.ErrAuthenticity, "payment signature mismatch")
	ErrPaymentNotCaptured = apperr.New(apperr.ErrAuthenticity, "payment is not captured")
	ErrPaymentMismatch    = apperr.New(apperr.ErrAuthenticity, "payment belongs to a different gateway order")
	ErrAmountMismatch     = apperr.New(apperr.ErrAuthenticity, "captured amount does not match the order total")
	ErrUnavailable        = apperr.New(apperr.ErrGateway, "payment gateway unavailable")
)

// Intent is a provider-side order opened before the customer pays.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Email    string `json:"email,omitempty"`
}

// Settled reports whether the provider holds the customer's money.
func (p Payment) Settled() bool {
	return p.Status == StatusCaptured || p.Status == StatusAuthorized
}

type Refund struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
	Receipt   string    `json:"receipt,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"-"`
}

// Gateway is the payment provider. Every method fails with an error of kind
// apperr.ErrGateway when the provider cannot be reached or rejects the call.
// Refund called again with a receipt that was already refunded returns the
// existing refund.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (Intent, error)
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	Refund(ctx context.Context, paymentID string, amountMinor int64, receipt string) (Refund, error)
}

// MinorUnits converts amount to the currency's smallest unit, rounding half away from zero.
func MinorUnits(amount decimal.Decimal, multiplier int64) int64 {
	return amount.Mul(decimal.NewFromInt(multiplier)).Round(0).IntPart()
}

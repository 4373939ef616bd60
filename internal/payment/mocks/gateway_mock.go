package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/ec-checkout/internal/payment"
)

// MockGateway is a mock implementation of payment.Gateway for testing
type MockGateway struct {
	mu       sync.Mutex
	payments map[string]payment.Payment
	refunds  map[string]payment.Refund // receipt -> refund
	seq      int

	// For tracking calls in tests
	CreateIntentCalls []CreateIntentCall
	FetchPaymentCalls []string
	RefundCalls       []RefundCall

	// Error injection
	CreateIntentErr error
	FetchPaymentErr error
	RefundErr       error
}

// CreateIntentCall records parameters passed to CreateIntent
type CreateIntentCall struct {
	AmountMinor int64
	Currency    string
	Receipt     string
}

// RefundCall records parameters passed to Refund
type RefundCall struct {
	PaymentID   string
	AmountMinor int64
	Receipt     string
}

// NewMockGateway creates a new MockGateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		payments:          make(map[string]payment.Payment),
		refunds:           make(map[string]payment.Refund),
		CreateIntentCalls: make([]CreateIntentCall, 0),
		FetchPaymentCalls: make([]string, 0),
		RefundCalls:       make([]RefundCall, 0),
	}
}

// SetPayment registers a payment returned by FetchPayment
func (m *MockGateway) SetPayment(p payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
}

func (m *MockGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateIntentCalls = append(m.CreateIntentCalls, CreateIntentCall{
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
	})
	if m.CreateIntentErr != nil {
		return payment.Intent{}, m.CreateIntentErr
	}

	m.seq++
	return payment.Intent{
		ID:       fmt.Sprintf("order_mock%d", m.seq),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   payment.StatusCreated,
	}, nil
}

func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchPaymentCalls = append(m.FetchPaymentCalls, paymentID)
	if m.FetchPaymentErr != nil {
		return payment.Payment{}, m.FetchPaymentErr
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return payment.Payment{}, fmt.Errorf("%w: unknown payment %s", payment.ErrUnavailable, paymentID)
	}
	return p, nil
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amountMinor int64, receipt string) (payment.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefundCalls = append(m.RefundCalls, RefundCall{
		PaymentID:   paymentID,
		AmountMinor: amountMinor,
		Receipt:     receipt,
	})
	if m.RefundErr != nil {
		return payment.Refund{}, m.RefundErr
	}
	if r, ok := m.refunds[receipt]; ok && receipt != "" {
		return r, nil
	}

	m.seq++
	r := payment.Refund{
		ID:        fmt.Sprintf("rfnd_mock%d", m.seq),
		PaymentID: paymentID,
		Amount:    amountMinor,
		Receipt:   receipt,
		Status:    "processed",
	}
	m.refunds[receipt] = r
	return r, nil
}

// Refunds returns a copy of the recorded refund calls
func (m *MockGateway) Refunds() []RefundCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RefundCall, len(m.RefundCalls))
	copy(out, m.RefundCalls)
	return out
}

// IssuedRefunds returns the distinct refunds the provider holds
func (m *MockGateway) IssuedRefunds() []payment.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]payment.Refund, 0, len(m.refunds))
	for _, r := range m.refunds {
		out = append(out, r)
	}
	return out
}

package payment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Op names a Sandbox operation for failure injection.
type Op string

const (
	OpCreateIntent Op = "create_intent"
	OpFetchPayment Op = "fetch_payment"
	OpRefund       Op = "refund"
)

// Sandbox is an in-process Gateway for local runs and tests. Payments are
// registered with Capture, which also returns the callback signature a
// real provider would send.
type Sandbox struct {
	mu       sync.Mutex
	verifier *Verifier
	seq      int
	intents  map[string]Intent
	payments map[string]Payment
	refunds  map[string]Refund // receipt -> refund
	failures map[Op]error
}

func NewSandbox(secret string) *Sandbox {
	return &Sandbox{
		verifier: NewVerifier(secret),
		intents:  make(map[string]Intent),
		payments: make(map[string]Payment),
		refunds:  make(map[string]Refund),
		failures: make(map[Op]error),
	}
}

// FailWith makes op return err until cleared with FailWith(op, nil).
func (s *Sandbox) FailWith(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Sandbox) failure(op Op) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%w: sandbox %s: %v", ErrUnavailable, op, err)
	}
	return nil
}

func (s *Sandbox) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_sandbox%06d", prefix, s.seq)
}

func (s *Sandbox) CreateIntent(_ context.Context, amountMinor int64, currency, receipt string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpCreateIntent); err != nil {
		return Intent{}, err
	}
	if amountMinor <= 0 {
		return Intent{}, fmt.Errorf("%w: amount must be positive", ErrUnavailable)
	}
	intent := Intent{
		ID:       s.nextID("order"),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   StatusCreated,
	}
	s.intents[intent.ID] = intent
	return intent, nil
}

// Capture settles the full amount of intentID and returns the payment with
// its callback signature.
func (s *Sandbox) Capture(intentID, method string) (Payment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[intentID]
	if !ok {
		return Payment{}, "", fmt.Errorf("sandbox: unknown intent %s", intentID)
	}
	p := Payment{
		ID:       s.nextID("pay"),
		OrderID:  intent.ID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		Status:   StatusCaptured,
		Method:   method,
	}
	s.payments[p.ID] = p
	return p, s.verifier.Sign(intent.ID, p.ID), nil
}

// PutPayment registers p as returned by FetchPayment.
func (s *Sandbox) PutPayment(p Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *Sandbox) FetchPayment(_ context.Context, paymentID string) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpFetchPayment); err != nil {
		return Payment{}, err
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return Payment{}, fmt.Errorf("%w: payment %s does not exist", ErrUnavailable, paymentID)
	}
	return p, nil
}

// Refund is idempotent per receipt.
func (s *Sandbox) Refund(_ context.Context, paymentID string, amountMinor int64, receipt string) (Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpRefund); err != nil {
		return Refund{}, err
	}
	if r, ok := s.refunds[receipt]; ok && receipt != "" {
		return r, nil
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return Refund{}, fmt.Errorf("%w: payment %s does not exist", ErrUnavailable, paymentID)
	}
	if amountMinor > p.Amount {
		return Refund{}, fmt.Errorf("%w: refund exceeds captured amount", ErrUnavailable)
	}
	r := Refund{
		ID:        s.nextID("rfnd"),
		PaymentID: paymentID,
		Amount:    amountMinor,
		Currency:  p.Currency,
		Receipt:   receipt,
		Status:    "processed",
		CreatedAt: time.Now(),
	}
	p.Status = StatusRefunded
	s.payments[paymentID] = p
	s.refunds[receipt] = r
	return r, nil
}

// Refunds returns every refund issued so far.
func (s *Sandbox) Refunds() []Refund {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Refund, 0, len(s.refunds))
	for _, r := range s.refunds {
		out = append(out, r)
	}
	return out
}

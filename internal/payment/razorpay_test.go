package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRazorpay(t *testing.T, handler http.HandlerFunc) *RazorpayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRazorpayClient(srv.URL+"/", "rzp_test_key", "rzp_test_secret", 2*time.Second)
}

// ============================================
// CreateIntent Tests
// ============================================

func TestRazorpay_CreateIntent_Success(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(20000), body["amount"])
		assert.Equal(t, "INR", body["currency"])
		assert.Equal(t, "rcpt-1", body["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":20000,"currency":"INR","receipt":"rcpt-1","status":"created"}`))
	})

	intent, err := client.CreateIntent(context.Background(), 20000, "INR", "rcpt-1")

	require.NoError(t, err)
	assert.Equal(t, "order_abc", intent.ID)
	assert.Equal(t, int64(20000), intent.Amount)
	assert.Equal(t, "rcpt-1", intent.Receipt)
}

func TestRazorpay_CreateIntent_ProviderError(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	})

	_, err := client.CreateIntent(context.Background(), 10, "INR", "rcpt-1")

	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "The amount must be atleast INR 1.00")
}

func TestRazorpay_TransportFailure(t *testing.T) {
	client := NewRazorpayClient("http://127.0.0.1:1", "k", "s", 200*time.Millisecond)

	_, err := client.FetchPayment(context.Background(), "pay_1")

	assert.ErrorIs(t, err, apperr.ErrGateway)
}

// ============================================
// FetchPayment / Refund Tests
// ============================================

func TestRazorpay_FetchPayment(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/pay_123", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_123","order_id":"order_abc","amount":20000,"currency":"INR","status":"captured","method":"upi","email":"a@example.com"}`))
	})

	p, err := client.FetchPayment(context.Background(), "pay_123")

	require.NoError(t, err)
	assert.Equal(t, "order_abc", p.OrderID)
	assert.Equal(t, "upi", p.Method)
	assert.True(t, p.Settled())
}

func TestRazorpay_FetchPayment_NotFound(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchPayment(context.Background(), "pay_missing")

	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "404")
}

func TestRazorpay_Refund(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_123/refund", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(20000), body["amount"])
		assert.Equal(t, "refund-rec-1", body["receipt"])
		_, _ = w.Write([]byte(`{"id":"rfnd_1","amount":20000,"status":"processed"}`))
	})

	r, err := client.Refund(context.Background(), "pay_123", 20000, "refund-rec-1")

	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", r.ID)
	assert.Equal(t, "pay_123", r.PaymentID)
}

func TestRazorpay_Refund_AdoptsEarlierRefundWithReceipt(t *testing.T) {
	var posts, lists int
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payments/pay_123/refund":
			posts++
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The payment has been fully refunded already"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payments/pay_123/refunds":
			lists++
			_, _ = w.Write([]byte(`{"entity":"collection","count":2,"items":[
				{"id":"rfnd_other","payment_id":"pay_123","amount":100,"receipt":"refund-rec-0","status":"processed"},
				{"id":"rfnd_1","payment_id":"pay_123","amount":20000,"receipt":"refund-rec-1","status":"processed"}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	r, err := client.Refund(context.Background(), "pay_123", 20000, "refund-rec-1")

	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", r.ID)
	assert.Equal(t, "refund-rec-1", r.Receipt)
	assert.Equal(t, 1, posts)
	assert.Equal(t, 1, lists)
}

func TestRazorpay_Refund_FailsWhenNoRefundMatchesReceipt(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"entity":"collection","count":0,"items":[]}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Refund(context.Background(), "pay_123", 20000, "refund-rec-1")

	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "502")
}

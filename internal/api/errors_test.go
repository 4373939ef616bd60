package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/stretchr/testify/assert"
)

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", order.ErrEmptyOrder, http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("order 1: %w", order.ErrOrderNotFound), http.StatusNotFound, "not_found"},
		{"stock", product.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
		{"state", order.ErrOrderDelivered, http.StatusConflict, "invalid_state"},
		{"authenticity", payment.ErrInvalidSignature, http.StatusBadRequest, "authenticity_error"},
		{"gateway", payment.ErrUnavailable, http.StatusBadGateway, "gateway_error"},
		{"unclassified", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
		{"internal", apperr.ErrInternal, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			status, body := errorBody(logging.Discard(), req, tt.err)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestErrorBody_HidesInternalCause(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, body := errorBody(logging.Discard(), req, errors.New("pq: password authentication failed"))

	assert.Equal(t, "internal error", body.Error)
}

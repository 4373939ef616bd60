package api

import (
	"fmt"
	"net/http"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/payment"
)

// SandboxHandlers stands in for the provider's checkout page when the API
// runs against the in-process sandbox gateway.
type SandboxHandlers struct {
	*Handlers
	sandbox *payment.Sandbox
}

type sandboxCaptureRequest struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	Method         string `json:"method"`
}

// sandboxCaptureResponse carries the fields a provider callback posts back.
type sandboxCaptureResponse struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

// CapturePayment pays the full amount of a staged intent.
func (h *SandboxHandlers) CapturePayment(w http.ResponseWriter, r *http.Request) {
	var req sandboxCaptureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.GatewayOrderID == "" {
		h.respondError(w, r, apperr.New(apperr.ErrValidation, "razorpay_order_id is required"))
		return
	}
	if req.Method == "" {
		req.Method = "card"
	}

	p, signature, err := h.sandbox.Capture(req.GatewayOrderID, req.Method)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", apperr.ErrNotFound, err))
		return
	}
	respondJSON(w, http.StatusCreated, sandboxCaptureResponse{
		GatewayOrderID: p.OrderID,
		PaymentID:      p.ID,
		Signature:      signature,
	})
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/command"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/query"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	logger       logrus.FieldLogger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, logger logrus.FieldLogger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		logger:       logger,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Product Handlers

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.queryHandler.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// Cart Handlers

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if err := decodeJSON(w, r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.UserID = middleware.GetUserID(r.Context())

	entry, err := h.cmdHandler.AddToCart(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveFromCart{
		UserID:    middleware.GetUserID(r.Context()),
		ProductID: mux.Vars(r)["productId"],
	}
	if err := h.cmdHandler.RemoveFromCart(r.Context(), cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.queryHandler.GetCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// Order Handlers

func (h *Handlers) StageOrderItems(w http.ResponseWriter, r *http.Request) {
	var cmd command.StageOrderItems
	if err := decodeJSON(w, r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.CustomerID = middleware.GetUserID(r.Context())

	staged, err := h.cmdHandler.StageOrderItems(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, staged)
}

func (h *Handlers) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.ConfirmOrder
	if err := decodeJSON(w, r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.CustomerID = middleware.GetUserID(r.Context())
	cmd.CustomerEmail = middleware.GetUserEmail(r.Context())

	o, err := h.cmdHandler.ConfirmOrder(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrders(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.queryHandler.GetOrder(r.Context(), mux.Vars(r)["orderId"], middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CancelOrder
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &cmd); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	cmd.OrderID = mux.Vars(r)["orderId"]
	cmd.CustomerID = middleware.GetUserID(r.Context())
	cmd.CustomerEmail = middleware.GetUserEmail(r.Context())

	o, err := h.cmdHandler.CancelOrder(r.Context(), cmd)
	switch {
	case err != nil && o != nil:
		// Cancelled, but the refund is still owed.
		status, body := errorBody(h.logger, r, err)
		respondJSON(w, status, struct {
			errorResponse
			Order *order.Order `json:"order"`
		}{body, o})
	case err != nil:
		h.respondError(w, r, err)
	default:
		respondJSON(w, http.StatusOK, o)
	}
}

// Admin Handlers

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), command.UpdateOrderStatus{
		OrderID: mux.Vars(r)["orderId"],
		Status:  status,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", apperr.ErrValidation, err)
	}
	return nil
}

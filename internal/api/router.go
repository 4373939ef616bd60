package api

import (
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/command"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/example/ec-checkout/internal/query"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Commands *command.Handler
	Queries  *query.Handler
	Tokens   middleware.TokenValidator
	Metrics  *metrics.AppMetrics
	Logger   logrus.FieldLogger
	// Sandbox mounts the local payment capture route when set.
	Sandbox *payment.Sandbox
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	logger := logging.Component(cfg.Logger, "api")
	handlers := NewHandlers(cfg.Commands, cfg.Queries, logger)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger, cfg.Metrics))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "not_found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "method_not_allowed"})
	})

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Catalog (public)
	v1.HandleFunc("/products/{id}", handlers.GetProduct).Methods(http.MethodGet)

	// Customer
	authed := v1.NewRoute().Subrouter()
	authed.Use(middleware.AuthMiddleware(cfg.Tokens))

	authed.HandleFunc("/cart", handlers.GetCart).Methods(http.MethodGet)
	authed.HandleFunc("/cart/items", handlers.AddToCart).Methods(http.MethodPost)
	authed.HandleFunc("/cart/items/{productId}", handlers.RemoveFromCart).Methods(http.MethodDelete)

	authed.HandleFunc("/orders/items", handlers.StageOrderItems).Methods(http.MethodPost)
	authed.HandleFunc("/orders", handlers.ConfirmOrder).Methods(http.MethodPost)
	authed.HandleFunc("/orders", handlers.ListOrders).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{orderId}", handlers.GetOrder).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{orderId}/cancel", handlers.CancelOrder).Methods(http.MethodPost)

	if cfg.Sandbox != nil {
		sandbox := &SandboxHandlers{Handlers: handlers, sandbox: cfg.Sandbox}
		authed.HandleFunc("/sandbox/payments", sandbox.CapturePayment).Methods(http.MethodPost)
	}

	// Admin
	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole(auth.RoleAdmin))
	admin.HandleFunc("/orders/{orderId}/status", handlers.UpdateOrderStatus).Methods(http.MethodPut)

	return r
}

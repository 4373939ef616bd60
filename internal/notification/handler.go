// Package notification turns checkout events into customer emails.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Mailer is satisfied by *email.Service.
type Mailer interface {
	SendOrderConfirmation(to string, data email.OrderConfirmation) error
	SendOrderCancellation(to string, data email.OrderCancellation) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	logger *logrus.Entry
}

func NewHandler(mailer Mailer, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		mailer: mailer,
		logger: logging.Component(logger, "notifier"),
	}
}

// HandleEvent processes one checkout event from Kafka. Events other than
// confirmations and cancellations are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.WithError(err).Error("failed to unmarshal event")
		return err
	}

	switch event.EventType {
	case order.EventOrderConfirmed:
		return h.handleOrderConfirmed(event)
	case order.EventOrderCancelled:
		return h.handleOrderCancelled(event)
	}
	return nil
}

func (h *Handler) handleOrderConfirmed(event order.Event) error {
	var e order.OrderConfirmed
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("decode %s: %w", event.EventType, err)
	}
	log := h.logger.WithFields(logrus.Fields{"order_id": e.OrderID, "customer_id": e.CustomerID})
	if e.CustomerEmail == "" {
		log.Warn("order confirmed without customer email, skipping")
		return nil
	}

	lines := make([]email.Line, 0, len(e.Items))
	for _, item := range e.Items {
		lines = append(lines, email.Line{
			Name:      item.ProductName,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2),
		})
	}

	err := h.mailer.SendOrderConfirmation(e.CustomerEmail, email.OrderConfirmation{
		OrderID:  e.OrderID,
		Currency: e.Currency,
		Total:    e.TotalAmount.StringFixed(2),
		Lines:    lines,
	})
	if err != nil {
		log.WithError(err).Error("failed to send confirmation email")
		return err
	}
	log.Info("order confirmation email sent")
	return nil
}

func (h *Handler) handleOrderCancelled(event order.Event) error {
	var e order.OrderCancelled
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("decode %s: %w", event.EventType, err)
	}
	log := h.logger.WithFields(logrus.Fields{"order_id": e.OrderID, "customer_id": e.CustomerID})
	if e.CustomerEmail == "" {
		log.Warn("order cancelled without customer email, skipping")
		return nil
	}

	err := h.mailer.SendOrderCancellation(e.CustomerEmail, email.OrderCancellation{
		OrderID:       e.OrderID,
		Currency:      e.Currency,
		Total:         e.TotalAmount.StringFixed(2),
		RefundID:      e.RefundID,
		RefundPending: e.RefundPending,
	})
	if err != nil {
		log.WithError(err).Error("failed to send cancellation email")
		return err
	}
	log.Info("order cancellation email sent")
	return nil
}

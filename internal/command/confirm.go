package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const maxOrderIDAttempts = 3

// ConfirmOrder turns staged items into an order once the payment callback
// is proven authentic. Stock for every line is decremented in the same
// transaction that creates the order; if any line is short nothing is
// written. A repeated callback for an already confirmed payment returns the
// existing order.
func (h *Handler) ConfirmOrder(ctx context.Context, cmd ConfirmOrder) (*order.Order, error) {
	if len(cmd.OrderItems) == 0 {
		return nil, order.ErrEmptyOrder
	}
	if hasDuplicates(cmd.OrderItems) {
		return nil, fmt.Errorf("%w: order items repeat", apperr.ErrValidation)
	}
	if cmd.AddressID == "" {
		return nil, ErrAddressRequired
	}

	log := h.logger.WithFields(logrus.Fields{
		"customer_id":      cmd.CustomerID,
		"gateway_order_id": cmd.GatewayOrderID,
		"payment_id":       cmd.PaymentID,
	})

	if err := h.verifier.Verify(cmd.GatewayOrderID, cmd.PaymentID, cmd.Signature); err != nil {
		h.authenticityFailure(ctx, log, "signature", err)
		return nil, err
	}

	if existing, err := h.confirmedOrder(ctx, cmd); existing != nil || err != nil {
		return existing, err
	}

	p, err := h.gateway.FetchPayment(ctx, cmd.PaymentID)
	if err != nil {
		log.WithError(err).Error("failed to fetch payment")
		return nil, gatewayError(err)
	}
	if !p.Settled() {
		h.authenticityFailure(ctx, log, "not_captured", payment.ErrPaymentNotCaptured)
		return nil, fmt.Errorf("%w: status %s", payment.ErrPaymentNotCaptured, p.Status)
	}
	if p.OrderID != cmd.GatewayOrderID {
		h.authenticityFailure(ctx, log, "order_mismatch", payment.ErrPaymentMismatch)
		return nil, payment.ErrPaymentMismatch
	}
	if p.Currency != "" && !strings.EqualFold(p.Currency, h.currency) {
		h.authenticityFailure(ctx, log, "currency_mismatch", payment.ErrAmountMismatch)
		return nil, fmt.Errorf("%w: currency %s", payment.ErrAmountMismatch, p.Currency)
	}

	now := h.now()
	o := &order.Order{
		ID:             h.newID(),
		OrderID:        h.newOrderID(now),
		CustomerID:     cmd.CustomerID,
		OrderItems:     slices.Clone(cmd.OrderItems),
		AddressID:      cmd.AddressID,
		Status:         order.StatusProcessing,
		PaymentID:      cmd.PaymentID,
		GatewayOrderID: cmd.GatewayOrderID,
		PaymentMethod:  p.Method,
		Currency:       h.currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var items []*order.OrderItem
	for attempt := 1; ; attempt++ {
		items, err = h.placeOrder(ctx, cmd, o, p)
		if !errors.Is(err, order.ErrOrderIDTaken) || attempt == maxOrderIDAttempts {
			break
		}
		log.WithField("order_id", o.OrderID).Warn("order id collision, retrying with a fresh id")
		o.OrderID = h.newOrderID(h.now())
	}
	if err != nil {
		switch {
		case errors.Is(err, order.ErrDuplicatePayment):
			// A concurrent callback for the same payment won the race.
			if existing, ferr := h.confirmedOrder(ctx, cmd); existing != nil {
				return existing, nil
			} else if ferr != nil {
				return nil, ferr
			}
		case errors.Is(err, product.ErrInsufficientStock):
			metrics.Inc(ctx, h.metrics.StockConflicts)
			log.WithError(err).Warn("stock conflict on confirmation")
		case errors.Is(err, apperr.ErrAuthenticity):
			h.authenticityFailure(ctx, log, "claim", err)
		}
		return nil, err
	}

	keys := append(productKeys(items), cache.OrdersKey(cmd.CustomerID), cache.CartKey(cmd.CustomerID))
	h.invalidate(ctx, keys...)

	email := cmd.CustomerEmail
	if email == "" {
		email = p.Email
	}
	h.publish(ctx, order.EventOrderConfirmed, o.ID, order.OrderConfirmed{
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		CustomerEmail: email,
		PaymentID:     o.PaymentID,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		Items:         confirmedItems(items),
		ConfirmedAt:   now,
	})

	metrics.Inc(ctx, h.metrics.OrdersConfirmed, attribute.String("method", p.Method))
	h.metrics.RevenueMinor.Add(ctx, p.Amount)
	log.WithFields(logrus.Fields{
		"order_id": o.OrderID,
		"total":    o.TotalAmount.String(),
	}).Info("order confirmed")

	return o, nil
}

// placeOrder claims the items, takes their stock and writes o in one
// transaction.
func (h *Handler) placeOrder(ctx context.Context, cmd ConfirmOrder, o *order.Order, p payment.Payment) ([]*order.OrderItem, error) {
	var items []*order.OrderItem
	err := h.store.WithinTx(ctx, func(tx store.Repositories) error {
		var err error
		items, err = tx.OrderItems().FindByIDs(ctx, cmd.OrderItems)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := item.CheckClaim(cmd.CustomerID, cmd.GatewayOrderID); err != nil {
				return err
			}
		}

		o.TotalAmount = order.Total(items)
		if want := payment.MinorUnits(o.TotalAmount, h.multiplier); want != p.Amount {
			return fmt.Errorf("%w: captured %d, order total %d", payment.ErrAmountMismatch, p.Amount, want)
		}

		for _, item := range lockOrder(items) {
			if err := tx.Products().DecreaseStock(ctx, item.ProductID, item.Size, item.Quantity); err != nil {
				return fmt.Errorf("item %s: %w", item.ID, err)
			}
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if err := tx.OrderItems().BindToOrder(ctx, cmd.OrderItems, o.ID); err != nil {
			return err
		}
		return tx.Carts().Clear(ctx, cmd.CustomerID)
	})
	return items, err
}

// confirmedOrder returns the order already created for the payment, if any.
func (h *Handler) confirmedOrder(ctx context.Context, cmd ConfirmOrder) (*order.Order, error) {
	existing, err := h.store.Orders().FindByPaymentID(ctx, cmd.PaymentID)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	case existing.CustomerID != cmd.CustomerID || existing.GatewayOrderID != cmd.GatewayOrderID:
		return nil, order.ErrDuplicatePayment
	}
	return existing, nil
}

func (h *Handler) authenticityFailure(ctx context.Context, log *logrus.Entry, reason string, err error) {
	metrics.Inc(ctx, h.metrics.AuthenticityFailures, attribute.String("reason", reason))
	log.WithError(err).WithField("reason", reason).Warn("payment callback rejected")
}

// lockOrder returns items sorted by product and size so concurrent
// confirmations take row locks in the same order.
func lockOrder(items []*order.OrderItem) []*order.OrderItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b *order.OrderItem) int {
		if c := strings.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return strings.Compare(a.Size, b.Size)
	})
	return sorted
}

func confirmedItems(items []*order.OrderItem) []order.ConfirmedItem {
	out := make([]order.ConfirmedItem, 0, len(items))
	for _, item := range items {
		out = append(out, order.ConfirmedItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return out
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// CancelOrder cancels a customer's order, returns its units to stock and
// refunds the captured amount. The status change, the restock and a pending
// refund record commit together; the provider refund runs after commit.
//
// If the provider refund fails the order stays cancelled, the record stays
// pending for the reconciler, and the returned order comes with a gateway
// error.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	o, err := h.store.Orders().FindByOrderID(ctx, cmd.OrderID, cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	from := o.Status
	if err := o.TransitionTo(order.StatusCancelled, now); err != nil {
		return nil, err
	}

	rec := &refund.Record{
		ID:          h.newID(),
		OrderID:     o.ID,
		PaymentID:   o.PaymentID,
		AmountMinor: payment.MinorUnits(o.TotalAmount, h.multiplier),
		Currency:    o.Currency,
		Status:      refund.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var items []*order.OrderItem
	err = h.store.WithinTx(ctx, func(tx store.Repositories) error {
		if err := tx.Orders().UpdateStatus(ctx, o.ID, from, order.StatusCancelled, now); err != nil {
			return err
		}
		var err error
		items, err = tx.OrderItems().FindByIDs(ctx, o.OrderItems)
		if err != nil {
			return err
		}
		var errs []error
		for _, item := range lockOrder(items) {
			if err := tx.Products().IncreaseStock(ctx, item.ProductID, item.Size, item.Quantity); err != nil {
				errs = append(errs, fmt.Errorf("restock item %s: %w", item.ID, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
		return tx.Refunds().Create(ctx, rec)
	})
	if err != nil {
		h.logger.WithError(err).WithField("order_id", o.OrderID).Error("failed to cancel order")
		return nil, err
	}

	log := h.logger.WithFields(logrus.Fields{"order_id": o.OrderID, "customer_id": o.CustomerID})
	metrics.Inc(ctx, h.metrics.OrdersCancelled, attribute.String("from", string(from)))
	log.WithField("reason", cmd.Reason).Info("order cancelled")

	refundErr := h.issueRefund(ctx, o, rec)
	if refundErr == nil {
		o.RefundID = rec.RefundID
	}

	keys := append(productKeys(items), cache.OrderKey(o.OrderID), cache.OrdersKey(o.CustomerID), cache.CartKey(o.CustomerID))
	h.invalidate(ctx, keys...)
	h.publish(ctx, order.EventOrderCancelled, o.ID, order.OrderCancelled{
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		CustomerEmail: cmd.CustomerEmail,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		RefundID:      o.RefundID,
		RefundPending: refundErr != nil,
		CancelledAt:   now,
	})

	return o, refundErr
}

// SettleRefund retries a pending refund record against the provider. The
// record's id is the provider receipt; the gateway resolves a retry after
// an unrecorded success to the refund already issued under that receipt.
func (h *Handler) SettleRefund(ctx context.Context, rec *refund.Record) error {
	if !rec.Pending() {
		return nil
	}
	o, err := h.store.Orders().FindByID(ctx, rec.OrderID)
	if err != nil {
		return err
	}
	if err := h.issueRefund(ctx, o, rec); err != nil {
		return err
	}
	h.invalidate(ctx, cache.OrderKey(o.OrderID), cache.OrdersKey(o.CustomerID))
	return nil
}

// issueRefund calls the provider for rec and records the outcome. On
// success the order carries the provider refund id.
func (h *Handler) issueRefund(ctx context.Context, o *order.Order, rec *refund.Record) error {
	log := h.logger.WithFields(logrus.Fields{
		"order_id":   o.OrderID,
		"payment_id": rec.PaymentID,
		"refund":     rec.ID,
	})

	r, err := h.gateway.Refund(ctx, rec.PaymentID, rec.AmountMinor, rec.ID)
	if err != nil {
		now := h.now()
		rec.Fail(err, now)
		if uerr := h.store.Refunds().Update(ctx, rec); uerr != nil {
			log.WithError(uerr).Error("failed to record refund attempt")
		}
		metrics.Inc(ctx, h.metrics.RefundFailures)
		log.WithError(err).WithField("attempts", rec.Attempts).Warn("refund failed, left pending")
		return gatewayError(err)
	}

	now := h.now()
	rec.Complete(r.ID, now)
	err = h.store.WithinTx(ctx, func(tx store.Repositories) error {
		if err := tx.Refunds().Update(ctx, rec); err != nil {
			return err
		}
		return tx.Orders().SetRefundID(ctx, o.ID, r.ID, now)
	})
	if err != nil {
		// The provider holds the refund; the next reconcile pass finds it
		// by receipt and records it.
		log.WithError(err).WithField("refund_id", r.ID).Error("failed to record completed refund")
		return err
	}
	o.RefundID = r.ID

	metrics.Inc(ctx, h.metrics.RefundsIssued)
	h.publish(ctx, order.EventRefundIssued, o.ID, order.RefundIssued{
		OrderID:     o.OrderID,
		PaymentID:   rec.PaymentID,
		RefundID:    r.ID,
		AmountMinor: rec.AmountMinor,
		Currency:    rec.Currency,
		IssuedAt:    now,
	})
	log.WithField("refund_id", r.ID).Info("refund issued")
	return nil
}

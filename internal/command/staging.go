package command

import (
	"context"
	"fmt"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// StageOrderItems prices the requested lines at today's catalog price,
// opens a payment intent for the total and persists the lines under it.
// Stock is not checked or reserved here.
func (h *Handler) StageOrderItems(ctx context.Context, cmd StageOrderItems) (*StagedOrder, error) {
	if len(cmd.Items) == 0 {
		return nil, order.ErrEmptyOrder
	}

	ids := make([]string, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, product.ErrInvalidQuantity)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := h.store.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := h.now()
	items := make([]*order.OrderItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, product.ErrProductNotFound)
		}
		size := it.Size
		if p.HasSizes() {
			if p.SizeIndex(size) < 0 {
				return nil, fmt.Errorf("product %s size %q: %w", p.ID, size, product.ErrSizeNotFound)
			}
		} else {
			size = ""
		}

		unit := p.UnitPrice(now)
		items = append(items, &order.OrderItem{
			ID:          h.newID(),
			CustomerID:  cmd.CustomerID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        size,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
			TotalPrice:  unit.Mul(decimalInt(it.Quantity)),
			CreatedAt:   now,
		})
	}

	total := order.Total(items)
	intent, err := h.gateway.CreateIntent(ctx, payment.MinorUnits(total, h.multiplier), h.currency, h.newID())
	if err != nil {
		h.logger.WithError(err).WithField("customer_id", cmd.CustomerID).Error("failed to open payment intent")
		return nil, gatewayError(err)
	}
	for _, item := range items {
		item.PaymentIntentID = intent.ID
	}

	if err := h.store.OrderItems().CreateBatch(ctx, items); err != nil {
		return nil, err
	}

	metrics.Inc(ctx, h.metrics.OrdersStaged, attribute.Int("items", len(items)))
	h.logger.WithFields(logrus.Fields{
		"customer_id": cmd.CustomerID,
		"intent_id":   intent.ID,
		"items":       len(items),
		"total":       total.String(),
	}).Info("order items staged")

	return &StagedOrder{Items: items, TotalAmount: total, Intent: intent}, nil
}

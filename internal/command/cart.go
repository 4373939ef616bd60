package command

import (
	"context"
	"fmt"

	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/product"
)

func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Entry, error) {
	if cmd.ProductID == "" {
		return nil, cart.ErrInvalidProduct
	}
	p, err := h.store.Products().FindByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	size := cmd.Size
	if !p.HasSizes() {
		size = ""
	} else if p.SizeIndex(size) < 0 {
		return nil, fmt.Errorf("product %s size %q: %w", p.ID, size, product.ErrSizeNotFound)
	}

	entry, err := cart.NewEntry(cmd.UserID, p.ID, size, cmd.Quantity, h.now())
	if err != nil {
		return nil, err
	}
	if err := h.store.Carts().Add(ctx, entry); err != nil {
		return nil, err
	}

	h.invalidate(ctx, cache.CartKey(cmd.UserID))
	return entry, nil
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) error {
	if err := h.store.Carts().Remove(ctx, cmd.UserID, cmd.ProductID); err != nil {
		return err
	}
	h.invalidate(ctx, cache.CartKey(cmd.UserID))
	return nil
}

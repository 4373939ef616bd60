package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_CaptureAndVerify(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(testSecret)

	intent, err := sb.CreateIntent(ctx, 20000, "INR", "rcpt")
	require.NoError(t, err)

	p, sig, err := sb.Capture(intent.ID, "card")
	require.NoError(t, err)
	assert.NoError(t, NewVerifier(testSecret).Verify(intent.ID, p.ID, sig))

	fetched, err := sb.FetchPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, fetched.OrderID)
	assert.Equal(t, int64(20000), fetched.Amount)
	assert.Equal(t, StatusCaptured, fetched.Status)
}

func TestSandbox_RefundIdempotentPerReceipt(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(testSecret)
	intent, _ := sb.CreateIntent(ctx, 5000, "INR", "rcpt")
	p, _, _ := sb.Capture(intent.ID, "card")

	r1, err := sb.Refund(ctx, p.ID, 5000, "rf-1")
	require.NoError(t, err)
	r2, err := sb.Refund(ctx, p.ID, 5000, "rf-1")
	require.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID)
	assert.Len(t, sb.Refunds(), 1)
}

func TestSandbox_RefundExceedsCapture(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(testSecret)
	intent, _ := sb.CreateIntent(ctx, 5000, "INR", "rcpt")
	p, _, _ := sb.Capture(intent.ID, "card")

	_, err := sb.Refund(ctx, p.ID, 6000, "rf-1")

	assert.ErrorIs(t, err, apperr.ErrGateway)
}

func TestSandbox_FailWith(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(testSecret)

	sb.FailWith(OpCreateIntent, errors.New("down"))
	_, err := sb.CreateIntent(ctx, 100, "INR", "r")
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))

	sb.FailWith(OpCreateIntent, nil)
	_, err = sb.CreateIntent(ctx, 100, "INR", "r")
	assert.NoError(t, err)
}

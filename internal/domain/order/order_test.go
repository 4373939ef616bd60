package order

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// State Machine Tests
// ============================================

func TestOrder_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			o := &Order{Status: tt.from}
			assert.Equal(t, tt.expected, o.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_TransitionTo_Success(t *testing.T) {
	now := time.Now()
	o := &Order{Status: StatusProcessing}

	require.NoError(t, o.TransitionTo(StatusShipped, now))

	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestOrder_TransitionTo_AlreadyCancelled(t *testing.T) {
	o := &Order{Status: StatusCancelled}

	err := o.TransitionTo(StatusCancelled, time.Now())

	assert.ErrorIs(t, err, ErrOrderCancelled)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestOrder_TransitionTo_DeliveredCannotCancel(t *testing.T) {
	o := &Order{Status: StatusDelivered}

	err := o.TransitionTo(StatusCancelled, time.Now())

	assert.ErrorIs(t, err, ErrOrderDelivered)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestOrder_TransitionTo_SkipShipping(t *testing.T) {
	o := &Order{Status: StatusProcessing}

	err := o.TransitionTo(StatusDelivered, time.Now())

	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("lost")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// ============================================
// Order Item Tests
// ============================================

func TestOrderItem_CheckClaim(t *testing.T) {
	base := OrderItem{ID: "item-1", CustomerID: "user-1", PaymentIntentID: "order_gw_1"}

	ok := base
	assert.NoError(t, ok.CheckClaim("user-1", "order_gw_1"))

	assert.ErrorIs(t, base.CheckClaim("user-2", "order_gw_1"), ErrItemNotFound)

	bound := base
	bound.OrderID = "ord-1"
	assert.ErrorIs(t, bound.CheckClaim("user-1", "order_gw_1"), ErrItemAlreadyBound)

	err := base.CheckClaim("user-1", "order_gw_2")
	assert.ErrorIs(t, err, ErrItemIntentMismatch)
	assert.Equal(t, apperr.KindAuthenticity, apperr.KindOf(err))
}

func TestTotal(t *testing.T) {
	items := []*OrderItem{
		{TotalPrice: decimal.RequireFromString("200.00")},
		{TotalPrice: decimal.RequireFromString("49.50")},
	}

	assert.Equal(t, "249.50", Total(items).StringFixed(2))
	assert.True(t, Total(nil).IsZero())
}

// ============================================
// ID and Event Tests
// ============================================

func TestGenerateOrderID_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	id := GenerateOrderID(now)

	assert.Regexp(t, regexp.MustCompile(`^1700000000123\d{4}$`), id)
}

func TestNewEvent_WrapsPayload(t *testing.T) {
	now := time.Now().UTC()
	payload := OrderStatusChanged{OrderID: "o-1", From: StatusProcessing, To: StatusShipped, ChangedAt: now}

	evt, err := NewEvent(EventOrderStatusChanged, "o-1", payload, now)

	require.NoError(t, err)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, EventOrderStatusChanged, evt.EventType)
	assert.Equal(t, "o-1", evt.AggregateID)

	var decoded OrderStatusChanged
	require.NoError(t, json.Unmarshal(evt.Data, &decoded))
	assert.Equal(t, StatusShipped, decoded.To)
}

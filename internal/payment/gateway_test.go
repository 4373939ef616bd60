package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		expected int64
	}{
		{"200", 20000},
		{"169.99", 16999},
		{"0.005", 1},
		{"10.994", 1099},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.expected, MinorUnits(decimal.RequireFromString(tt.amount), 100))
		})
	}
}

func TestPayment_Settled(t *testing.T) {
	assert.True(t, Payment{Status: StatusCaptured}.Settled())
	assert.True(t, Payment{Status: StatusAuthorized}.Settled())
	assert.False(t, Payment{Status: StatusFailed}.Settled())
	assert.False(t, Payment{Status: StatusCreated}.Settled())
}

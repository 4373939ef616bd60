package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/stretchr/testify/assert"
)

const testSecret = "sandbox-secret"

func TestVerifier_Sign_MatchesHMAC(t *testing.T) {
	v := NewVerifier(testSecret)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("order_1|pay_1"))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, v.Sign("order_1", "pay_1"))
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testSecret)
	good := v.Sign("order_1", "pay_1")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		wantErr   bool
	}{
		{"valid", "order_1", "pay_1", good, false},
		{"swapped ids", "pay_1", "order_1", good, true},
		{"other payment", "order_1", "pay_2", good, true},
		{"tampered", "order_1", "pay_1", good[:len(good)-1] + "0", true},
		{"empty signature", "order_1", "pay_1", "", true},
		{"missing payment", "order_1", "", good, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.orderID, tt.paymentID, tt.signature)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSignature)
			assert.Equal(t, apperr.KindAuthenticity, apperr.KindOf(err))
		})
	}
}

func TestVerifier_DifferentSecret(t *testing.T) {
	sig := NewVerifier("other").Sign("order_1", "pay_1")

	assert.Error(t, NewVerifier(testSecret).Verify("order_1", "pay_1", sig))
}

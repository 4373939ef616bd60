package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Verifier checks the HMAC-SHA256 signature the provider attaches to a
// checkout callback. The signed message is "gatewayOrderID|paymentID".
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex signature for the pair.
func (v *Verifier) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(gatewayOrderID, paymentID, signature string) error {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return fmt.Errorf("%w: missing signature field", ErrInvalidSignature)
	}
	expected := v.Sign(gatewayOrderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// HMACVerifier authenticates gateway confirmations. The gateway signs
// orderRef + "|" + transactionRef with HMAC-SHA256 under a shared secret
// and sends the lowercase hex digest.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for secret
func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("payment: signature secret is required")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

// Sign computes the signature of a confirmation
func (v *HMACVerifier) Sign(orderRef, transactionRef string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderRef + "|" + transactionRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected one in constant time.
// Hex case is ignored.
func (v *HMACVerifier) Verify(orderRef, transactionRef, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderRef + "|" + transactionRef))
	return hmac.Equal(got, mac.Sum(nil))
}

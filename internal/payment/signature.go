package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the gateway's payment signature: HMAC-SHA256 over
// "<orderID>|<paymentID>" keyed with the server-held secret.
func Sign(orderID, paymentID, keySecret string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it to the
// one the client supplied, in constant time. Any mismatch means the payment
// callback was tampered with or failed.
func VerifySignature(orderID, paymentID, signature, keySecret string) bool {
	expected := Sign(orderID, paymentID, keySecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

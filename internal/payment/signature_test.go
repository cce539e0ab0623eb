package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureAcceptsOwnSignature(t *testing.T) {
	sig := Sign("order_123", "pay_456", "key-secret")
	assert.True(t, VerifySignature("order_123", "pay_456", sig, "key-secret"))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	sig := Sign("order_123", "pay_456", "key-secret")

	assert.False(t, VerifySignature("order_999", "pay_456", sig, "key-secret"))
	assert.False(t, VerifySignature("order_123", "pay_999", sig, "key-secret"))
	assert.False(t, VerifySignature("order_123", "pay_456", sig, "other-secret"))
	assert.False(t, VerifySignature("order_123", "pay_456", sig+"00", "key-secret"))
	assert.False(t, VerifySignature("order_123", "pay_456", "", "key-secret"))
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	IntentCreated  = "created"
	IntentVerified = "verified"
	IntentConsumed = "consumed"
)

// PaymentIntent tracks one checkout attempt against the gateway. Receipt is
// the client-supplied idempotency key (unique index); GatewayOrderID is the
// paymentReference handed back to the client.
type PaymentIntent struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	Receipt        string             `bson:"receipt" json:"receipt"`
	GatewayOrderID string             `bson:"gatewayOrderId" json:"gatewayOrderId"`
	PaymentID      string             `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Amount         float64            `bson:"amount" json:"amount"`
	Currency       string             `bson:"currency" json:"currency"`
	CouponCode     string             `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	CouponDiscount float64            `bson:"couponDiscount,omitempty" json:"couponDiscount,omitempty"`
	Status         string             `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

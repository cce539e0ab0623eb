package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coupon applies a percentage discount to a checkout until it expires.
type Coupon struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Expiry    time.Time          `bson:"expiry" json:"expiry"`
	Discount  float64            `bson:"discount" json:"discount"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Address is a single saved delivery address.
type Address struct {
	ID        string `bson:"id" json:"id"`
	Title     string `bson:"title" json:"title"`
	Detail    string `bson:"detail" json:"detail"`
	Note      string `bson:"note,omitempty" json:"note,omitempty"`
	IsDefault bool   `bson:"isDefault" json:"isDefault"`
}

// User is the account document. RefreshTokenHash is set only while a session
// is active; ResetTokenHash and ResetTokenExpiry are always written and
// cleared together.
type User struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FirstName        string               `bson:"firstName" json:"firstName"`
	LastName         string               `bson:"lastName" json:"lastName"`
	Email            string               `bson:"email" json:"email"`
	Phone            string               `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash     string               `bson:"passwordHash" json:"-"`
	Role             string               `bson:"role" json:"role"`
	IsBlocked        bool                 `bson:"isBlocked" json:"isBlocked"`
	RefreshTokenHash string               `bson:"refreshTokenHash,omitempty" json:"-"`
	ResetTokenHash   string               `bson:"resetTokenHash,omitempty" json:"-"`
	ResetTokenExpiry *time.Time           `bson:"resetTokenExpiry,omitempty" json:"-"`
	Addresses        []Address            `bson:"addresses" json:"addresses"`
	Wishlist         []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	CreatedAt        time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt" json:"updatedAt"`
}

package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	_, err := db.Collection("users").Indexes().CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureUserIndexes: email index error:", err)
		return err
	}
	return nil
}

// EnsureCartIndexes creates the unique (userId, productId, color) index that
// backs the upsert-and-increment cart write. Two concurrent adds of the same
// tuple collapse into one row instead of duplicating.
func EnsureCartIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tupleIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "productId", Value: 1},
			{Key: "color", Value: 1},
		},
		Options: options.Index().
			SetName("cart_tuple_unique").
			SetUnique(true),
	}

	_, err := db.Collection("cart_items").Indexes().CreateOne(ctx, tupleIndex)
	if err != nil {
		log.Println("EnsureCartIndexes: tuple index error:", err)
		return err
	}
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("userId_index"),
	}

	createdAtIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("createdAt_index"),
	}

	_, err := db.Collection("orders").Indexes().CreateMany(ctx, []mongo.IndexModel{userIDIndex, createdAtIndex})
	if err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	return nil
}

// EnsurePaymentIndexes makes checkout idempotent: one intent per receipt.
func EnsurePaymentIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receiptIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "receipt", Value: 1}},
		Options: options.Index().
			SetName("receipt_unique").
			SetUnique(true),
	}

	_, err := db.Collection("payment_intents").Indexes().CreateOne(ctx, receiptIndex)
	if err != nil {
		log.Println("EnsurePaymentIndexes: receipt index error:", err)
		return err
	}
	return nil
}

func EnsureCouponIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	nameIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetName("name_unique").
			SetUnique(true),
	}

	_, err := db.Collection("coupons").Indexes().CreateOne(ctx, nameIndex)
	if err != nil {
		log.Println("EnsureCouponIndexes: name index error:", err)
		return err
	}
	return nil
}

package handlers

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shopapi/internal/models"
)

func TestCartTupleFilter(t *testing.T) {
	userID := primitive.NewObjectID()
	productID := primitive.NewObjectID()

	filter := cartTupleFilter(userID, productID, "red")

	if filter["userId"] != userID {
		t.Errorf("expected userId %v, got %v", userID, filter["userId"])
	}
	if filter["productId"] != productID {
		t.Errorf("expected productId %v, got %v", productID, filter["productId"])
	}
	if filter["color"] != "red" {
		t.Errorf("expected color red, got %v", filter["color"])
	}
}

func TestCartUpsertUpdate(t *testing.T) {
	now := time.Now()
	update := cartUpsertUpdate(3, 19.99, now)

	inc, ok := update["$inc"].(bson.M)
	if !ok {
		t.Fatal("expected $inc document")
	}
	if inc["quantity"] != 3 {
		t.Errorf("expected quantity increment 3, got %v", inc["quantity"])
	}

	onInsert, ok := update["$setOnInsert"].(bson.M)
	if !ok {
		t.Fatal("expected $setOnInsert document")
	}
	if onInsert["price"] != 19.99 {
		t.Errorf("expected insert price 19.99, got %v", onInsert["price"])
	}
	if onInsert["addedAt"] != now {
		t.Errorf("expected addedAt %v, got %v", now, onInsert["addedAt"])
	}

	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatal("expected $set document")
	}
	if set["updatedAt"] != now {
		t.Errorf("expected updatedAt %v, got %v", now, set["updatedAt"])
	}
	// Price must never appear in $set; a later add keeps the captured price.
	if _, exists := set["price"]; exists {
		t.Error("price must only be set on insert")
	}
}

func TestCartTotal(t *testing.T) {
	items := []models.CartItem{
		{Price: 50, Quantity: 2},
		{Price: 30, Quantity: 1},
	}

	if got := cartTotal(items); got != 130 {
		t.Errorf("expected total 130, got %v", got)
	}
}

func TestCartTotalEmpty(t *testing.T) {
	if got := cartTotal(nil); got != 0 {
		t.Errorf("expected total 0 for empty cart, got %v", got)
	}
}

// upsertCartItem retries once on a duplicate key so a lost first-insert race
// still lands the increment; any other store error comes straight back.
func TestUpsertCartItemPropagatesStoreError(t *testing.T) {
	db := unreachableDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	filter := cartTupleFilter(primitive.NewObjectID(), primitive.NewObjectID(), "red")
	update := cartUpsertUpdate(1, 9.99, time.Now())

	err := upsertCartItem(ctx, db, filter, update)
	if err == nil {
		t.Fatal("expected a store error")
	}
	if mongo.IsDuplicateKeyError(err) {
		t.Errorf("server selection failure misclassified as duplicate key: %v", err)
	}
}

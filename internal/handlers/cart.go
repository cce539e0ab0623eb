package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopapi/internal/models"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// AddToCart upserts one (user, product, color) row. The single
// FindOneAndUpdate with $inc means two concurrent adds of the same tuple end
// up as one row with the summed quantity; $setOnInsert pins the unit price to
// the catalog price at the moment the row was created.
func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be greater than zero"})
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isActive":  bson.M{"$ne": false},
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			log.Println("[CART] [ERROR] product lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		now := time.Now()
		filter := cartTupleFilter(userID, productID, strings.TrimSpace(req.Color))
		update := cartUpsertUpdate(req.Quantity, product.Price, now)

		if err := upsertCartItem(ctx, db, filter, update); err != nil {
			log.Println("[CART] [ERROR] cart upsert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		items, err := loadCart(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[CART] [INFO] item added for user:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"items": items, "total": cartTotal(items)})
	}
}

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		items, err := loadCart(ctx, db, userID)
		if err != nil {
			log.Println("[CART] [ERROR] cart load failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "total": cartTotal(items)})
	}
}

// UpdateCartItemQuantity overwrites the quantity in place; a value of zero or
// below removes the row instead.
func UpdateCartItemQuantity(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /update-product-cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		itemID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("cartItemId")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cartItemId"})
			return
		}

		newQuantity, err := strconv.Atoi(strings.TrimSpace(c.Param("newQuantity")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid newQuantity"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		// Scoping by userId keeps users out of each other's carts.
		filter := bson.M{"_id": itemID, "userId": userID}

		if newQuantity <= 0 {
			res, err := db.Collection("cart_items").DeleteOne(ctx, filter)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if res.DeletedCount == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
				return
			}
		} else {
			res, err := db.Collection("cart_items").UpdateOne(ctx, filter, bson.M{
				"$set": bson.M{"quantity": newQuantity, "updatedAt": time.Now()},
			})
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if res.MatchedCount == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
				return
			}
		}

		items, err := loadCart(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "total": cartTotal(items)})
	}
}

func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /delete-product-cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		itemID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("cartItemId")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cartItemId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("cart_items").DeleteOne(ctx, bson.M{"_id": itemID, "userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
			return
		}

		items, err := loadCart(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "total": cartTotal(items)})
	}
}

// EmptyCart removes every row for the caller. Idempotent.
func EmptyCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /empty-cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("cart_items").DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[CART] [INFO] cart emptied for user:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "cart emptied"})
	}
}

/* =========================
   CART HELPERS
========================= */

func cartTupleFilter(userID, productID primitive.ObjectID, color string) bson.M {
	return bson.M{
		"userId":    userID,
		"productId": productID,
		"color":     color,
	}
}

func cartUpsertUpdate(quantity int, unitPrice float64, now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{"quantity": quantity},
		"$set": bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"price":   unitPrice,
			"addedAt": now,
		},
	}
}

// upsertCartItem applies the cart upsert. Two first-time adds of the same
// tuple can race the unique index; the loser's insert fails with a duplicate
// key, and the retry matches the winner's row and applies the increment.
func upsertCartItem(ctx context.Context, db *mongo.Database, filter, update bson.M) error {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := db.Collection("cart_items").FindOneAndUpdate(ctx, filter, update, opts).Err()
	if mongo.IsDuplicateKeyError(err) {
		err = db.Collection("cart_items").FindOneAndUpdate(ctx, filter, update, opts).Err()
	}
	return err
}

func loadCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) ([]models.CartItem, error) {
	cursor, err := db.Collection("cart_items").Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "addedAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.CartItem, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func cartTotal(items []models.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

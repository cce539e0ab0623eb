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

type updateOrderRequest struct {
	Status string `json:"status" binding:"required"`
}

func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /getmyorders"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orders, err := findOrders(ctx, db, bson.M{"userId": userID})
		if err != nil {
			log.Println("[ORDER] [ERROR] my orders fetch failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

// GetAllOrders is admin-only; supports optional status and created-at range
// filters (from/to as RFC 3339 dates).
func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /getallorders"
		defer handlePanic(c, route)

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if !models.ValidOrderStatus(status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter["status"] = status
		}

		created := bson.M{}
		if from := strings.TrimSpace(c.Query("from")); from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
				return
			}
			created["$gte"] = t
		}
		if to := strings.TrimSpace(c.Query("to")); to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
				return
			}
			created["$lt"] = t
		}
		if len(created) > 0 {
			filter["createdAt"] = created
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orders, err := findOrders(ctx, db, filter)
		if err != nil {
			log.Println("[ORDER] [ERROR] all orders fetch failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /getOrder"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

// UpdateOrderStatus applies one legal status transition. Cancelling an order
// puts the decremented stock back in the same transaction.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /updateOrder"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req updateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		newStatus := strings.TrimSpace(req.Status)
		if !models.ValidOrderStatus(newStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var order models.Order
		var invalidFrom string
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			if err := db.Collection("orders").FindOne(sessCtx, bson.M{"_id": orderID}).Decode(&order); err != nil {
				return nil, err
			}

			if !models.CanTransitionOrder(order.Status, newStatus) {
				invalidFrom = order.Status
				return nil, nil
			}

			// The status guard in the filter keeps a concurrent transition
			// from being applied twice.
			res, err := db.Collection("orders").UpdateOne(sessCtx,
				bson.M{"_id": orderID, "status": order.Status},
				bson.M{"$set": bson.M{"status": newStatus, "updatedAt": time.Now()}},
			)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				invalidFrom = order.Status
				return nil, nil
			}

			if newStatus == models.OrderCancelled {
				for _, item := range order.Items {
					_, err := db.Collection("products").UpdateOne(sessCtx,
						bson.M{"_id": item.ProductID},
						bson.M{"$inc": bson.M{"stock": item.Quantity}},
					)
					if err != nil {
						return nil, err
					}
				}
			}

			order.Status = newStatus
			return nil, nil
		})
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			log.Println("[ORDER] [ERROR] status update failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if invalidFrom != "" {
			c.JSON(http.StatusConflict, gin.H{
				"error": "invalid status transition",
				"from":  invalidFrom,
				"to":    newStatus,
			})
			return
		}

		log.Println("[ORDER] [INFO] order", orderID.Hex(), "moved to", newStatus)
		c.JSON(http.StatusOK, order)
	}
}

// MonthWiseOrderIncome sums non-cancelled order totals per creation month for
// one year.
func MonthWiseOrderIncome(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /getMonthWiseOrderIncome"
		defer handlePanic(c, route)

		year, ok := yearParam(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{
				"createdAt": bson.M{"$gte": start, "$lt": start.AddDate(1, 0, 0)},
				"status":    bson.M{"$ne": models.OrderCancelled},
			}}},
			{{Key: "$group", Value: bson.M{
				"_id":   bson.M{"$month": "$createdAt"},
				"total": bson.M{"$sum": "$total"},
			}}},
		}

		cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
		if err != nil {
			log.Println("[ORDER] [ERROR] monthly income aggregation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		var rows []struct {
			Month int32   `bson:"_id"`
			Total float64 `bson:"total"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		income := make([]gin.H, 12)
		for i := range income {
			income[i] = gin.H{"month": i + 1, "total": 0.0}
		}
		for _, row := range rows {
			if row.Month >= 1 && row.Month <= 12 {
				income[row.Month-1]["total"] = row.Total
			}
		}

		c.JSON(http.StatusOK, gin.H{"year": year, "income": income})
	}
}

// YearlyOrders counts non-cancelled orders created in one year.
func YearlyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /getyearlyorders"
		defer handlePanic(c, route)

		year, ok := yearParam(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		count, err := db.Collection("orders").CountDocuments(ctx, bson.M{
			"createdAt": bson.M{"$gte": start, "$lt": start.AddDate(1, 0, 0)},
			"status":    bson.M{"$ne": models.OrderCancelled},
		})
		if err != nil {
			log.Println("[ORDER] [ERROR] yearly count failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"year": year, "totalOrders": count})
	}
}

func yearParam(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("year"))
	if raw == "" {
		return time.Now().UTC().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 9999 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return 0, false
	}
	return year, true
}

func findOrders(ctx context.Context, db *mongo.Database, filter bson.M) ([]models.Order, error) {
	cursor, err := db.Collection("orders").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

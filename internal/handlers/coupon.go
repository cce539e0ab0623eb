package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shopapi/internal/models"
)

type createCouponRequest struct {
	Name     string    `json:"name" binding:"required"`
	Expiry   time.Time `json:"expiry" binding:"required"`
	Discount float64   `json:"discount" binding:"required,gt=0,lte=100"`
}

type updateCouponRequest struct {
	Expiry   *time.Time `json:"expiry"`
	Discount *float64   `json:"discount"`
}

// Coupon names are stored uppercase so lookups at checkout are
// case-insensitive.
func CreateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /coupon"
		defer handlePanic(c, route)

		var req createCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		coupon := models.Coupon{
			ID:        primitive.NewObjectID(),
			Name:      strings.ToUpper(strings.TrimSpace(req.Name)),
			Expiry:    req.Expiry,
			Discount:  req.Discount,
			CreatedAt: time.Now(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("coupons").InsertOne(ctx, coupon); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "coupon already exists"})
				return
			}
			log.Println("[COUPON] [ERROR] insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[COUPON] [INFO] coupon created:", coupon.Name)
		c.JSON(http.StatusCreated, coupon)
	}
}

func GetAllCoupons(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /coupons"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("coupons").Find(ctx, bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		coupons := make([]models.Coupon, 0)
		if err := cursor.All(ctx, &coupons); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, coupons)
	}
}

func UpdateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /coupon"
		defer handlePanic(c, route)

		couponID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req updateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{}
		if req.Expiry != nil {
			set["expiry"] = *req.Expiry
		}
		if req.Discount != nil {
			if *req.Discount <= 0 || *req.Discount > 100 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "discount must be between 0 and 100"})
				return
			}
			set["discount"] = *req.Discount
		}
		if len(set) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("coupons").UpdateByID(ctx, couponID, bson.M{"$set": set})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "coupon updated"})
	}
}

func DeleteCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /coupon"
		defer handlePanic(c, route)

		couponID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("coupons").DeleteOne(ctx, bson.M{"_id": couponID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
			return
		}

		log.Println("[COUPON] [INFO] coupon deleted:", couponID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "coupon deleted"})
	}
}

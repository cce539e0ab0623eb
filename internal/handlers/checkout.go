package handlers

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shopapi/internal/models"
	"shopapi/internal/notify"
	"shopapi/internal/payment"
)

type checkoutRequest struct {
	CouponCode string `json:"couponCode"`
	Receipt    string `json:"receipt"`
}

type paymentVerificationRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type createOrderRequest struct {
	PaymentReference string `json:"paymentReference" binding:"required"`
}

// Checkout prices the live cart, applies an optional coupon and registers a
// payment intent with the gateway. The receipt is the idempotency key: a
// repeated call with the same receipt returns the stored intent without
// touching the gateway again.
func Checkout(db *mongo.Database, gateway *payment.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /order/checkout"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		receipt := strings.TrimSpace(req.Receipt)
		if receipt == "" {
			receipt = uuid.NewString()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var existing models.PaymentIntent
		err := db.Collection("payment_intents").FindOne(ctx, bson.M{
			"receipt": receipt,
			"userId":  userID,
		}).Decode(&existing)
		if err == nil {
			respondWithIntent(c, existing)
			return
		}
		if err != mongo.ErrNoDocuments {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		items, err := loadCart(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if len(items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
			return
		}

		shortage, err := revalidateStock(ctx, db, items)
		if err != nil {
			log.Println("[CHECKOUT] [ERROR] stock revalidation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if shortage != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "product out of stock",
				"productId": shortage.ProductID.Hex(),
				"available": shortage.Available,
				"requested": shortage.Requested,
			})
			return
		}

		total := cartTotal(items)

		var couponCode string
		var discount float64
		if code := strings.ToUpper(strings.TrimSpace(req.CouponCode)); code != "" {
			var coupon models.Coupon
			err := db.Collection("coupons").FindOne(ctx, bson.M{"name": code}).Decode(&coupon)
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "invalid coupon"})
				return
			}
			discount, err = couponDiscount(total, coupon, time.Now())
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "invalid coupon"})
				return
			}
			couponCode = coupon.Name
		}

		amount := roundMoney(total - discount)

		intent, err := gateway.CreateIntent(ctx, toSubunits(amount), "INR", receipt)
		if err != nil {
			log.Println("[CHECKOUT] [ERROR] gateway intent failed:", err)
			respondWithError(c, http.StatusBadGateway, route, "payment gateway unavailable")
			return
		}

		now := time.Now()
		doc := models.PaymentIntent{
			UserID:         userID,
			Receipt:        receipt,
			GatewayOrderID: intent.ID,
			Amount:         amount,
			Currency:       intent.Currency,
			CouponCode:     couponCode,
			CouponDiscount: discount,
			Status:         models.IntentCreated,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if _, err := db.Collection("payment_intents").InsertOne(ctx, doc); err != nil {
			// The receipt index is global. A duplicate either means a
			// concurrent checkout by the same user won the insert, or the
			// receipt belongs to someone else entirely.
			if mongo.IsDuplicateKeyError(err) {
				lookupErr := db.Collection("payment_intents").FindOne(ctx, bson.M{
					"receipt": receipt,
					"userId":  userID,
				}).Decode(&existing)
				respondReceiptRecovery(c, existing, lookupErr)
				return
			}
			log.Println("[CHECKOUT] [ERROR] intent persist failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[CHECKOUT] [INFO] intent created for user:", userID.Hex())
		respondWithIntent(c, doc)
	}
}

// PaymentVerification checks the gateway callback signature. A mismatch never
// advances the intent.
func PaymentVerification(db *mongo.Database, keySecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /order/paymentVerification"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req paymentVerificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if !payment.VerifySignature(req.OrderID, req.PaymentID, req.Signature, keySecret) {
			log.Println("[CHECKOUT] [ERROR] payment signature mismatch for user:", userID.Hex())
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment verification failed"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("payment_intents").UpdateOne(ctx,
			bson.M{
				"gatewayOrderId": req.OrderID,
				"userId":         userID,
				"status":         bson.M{"$in": []string{models.IntentCreated, models.IntentVerified}},
			},
			bson.M{"$set": bson.M{
				"status":    models.IntentVerified,
				"paymentId": req.PaymentID,
				"updatedAt": time.Now(),
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment intent not found"})
			return
		}

		log.Println("[CHECKOUT] [INFO] payment verified:", req.OrderID)
		c.JSON(http.StatusOK, gin.H{"message": "payment verified"})
	}
}

// CreateOrderFromCart turns a verified payment intent plus the live cart into
// an order. Stock decrement, order insert, cart clear and intent consumption
// all happen in one transaction, so either the whole placement commits or
// nothing does.
func CreateOrderFromCart(db *mongo.Database, publisher *notify.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/create-order"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var intent models.PaymentIntent
		err := db.Collection("payment_intents").FindOne(ctx, bson.M{
			"gatewayOrderId": strings.TrimSpace(req.PaymentReference),
			"userId":         userID,
		}).Decode(&intent)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment intent not found"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if intent.Status != models.IntentVerified {
			c.JSON(http.StatusConflict, gin.H{"error": "payment not verified"})
			return
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var order models.Order
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			items, err := loadCart(sessCtx, db, userID)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return nil, errEmptyCart
			}

			// The intent priced a specific cart; refuse to place an order
			// for a cart that changed since checkout.
			recomputed := roundMoney(cartTotal(items) - intent.CouponDiscount)
			if recomputed != intent.Amount {
				return nil, amountMismatchError{Expected: intent.Amount, Got: recomputed}
			}

			snapshot := make([]models.OrderItem, 0, len(items))
			for _, item := range items {
				var product models.Product
				err := db.Collection("products").FindOne(sessCtx, bson.M{
					"_id":       item.ProductID,
					"isDeleted": bson.M{"$ne": true},
				}).Decode(&product)
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: item.ProductID}
				}
				if err != nil {
					return nil, err
				}

				// Conditional decrement: only when enough stock remains.
				// A lost race aborts the whole transaction.
				res, err := db.Collection("products").UpdateOne(sessCtx,
					bson.M{
						"_id":       item.ProductID,
						"isDeleted": bson.M{"$ne": true},
						"stock":     bson.M{"$gte": item.Quantity},
					},
					bson.M{"$inc": bson.M{"stock": -item.Quantity}},
				)
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, outOfStockError{
						ProductID: item.ProductID,
						Available: product.Stock,
						Requested: item.Quantity,
					}
				}

				snapshot = append(snapshot, models.OrderItem{
					ProductID: item.ProductID,
					Title:     product.Title,
					Color:     item.Color,
					Price:     item.Price,
					Quantity:  item.Quantity,
				})
			}

			// Consume the intent conditionally so two concurrent placements
			// against the same payment cannot both create an order.
			res, err := db.Collection("payment_intents").UpdateOne(sessCtx,
				bson.M{"_id": intent.ID, "status": models.IntentVerified},
				bson.M{"$set": bson.M{
					"status":    models.IntentConsumed,
					"updatedAt": time.Now(),
				}},
			)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, errIntentConsumed
			}

			now := time.Now()
			order = models.Order{
				UserID:         userID,
				Items:          snapshot,
				Total:          intent.Amount,
				CouponCode:     intent.CouponCode,
				CouponDiscount: intent.CouponDiscount,
				PaymentRef:     intent.GatewayOrderID,
				PaymentID:      intent.PaymentID,
				Status:         models.OrderPending,
				CreatedAt:      now,
				UpdatedAt:      now,
			}

			insertRes, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := insertRes.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}

			if _, err := db.Collection("cart_items").DeleteMany(sessCtx, bson.M{"userId": userID}); err != nil {
				return nil, err
			}

			return nil, nil
		})
		if err != nil {
			respondOrderCreationError(c, route, err)
			return
		}

		if err := publisher.OrderCreated(order.ID.Hex(), userID.Hex(), order.Total); err != nil {
			log.Println("[ORDER] [ERROR] order event publish failed:", err)
		}

		log.Println("[ORDER] [INFO] order created:", order.ID.Hex())
		c.JSON(http.StatusCreated, order)
	}
}

func respondOrderCreationError(c *gin.Context, route string, err error) {
	var stockErr outOfStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "product out of stock",
			"productId": stockErr.ProductID.Hex(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}
	var notFoundErr productNotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "product no longer available",
			"productId": notFoundErr.ProductID.Hex(),
		})
		return
	}
	var mismatchErr amountMismatchError
	if errors.As(err, &mismatchErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "cart changed since checkout",
			"expected": mismatchErr.Expected,
			"actual":   mismatchErr.Got,
		})
		return
	}
	if errors.Is(err, errEmptyCart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		return
	}
	if errors.Is(err, errIntentConsumed) {
		c.JSON(http.StatusConflict, gin.H{"error": "payment already used"})
		return
	}
	respondWithError(c, http.StatusInternalServerError, route, "db error")
}

// respondReceiptRecovery resolves a duplicate-receipt insert from the
// caller's follow-up lookup: their own intent comes back as the idempotent
// response, no document means the receipt is owned by a different user.
func respondReceiptRecovery(c *gin.Context, intent models.PaymentIntent, lookupErr error) {
	switch {
	case lookupErr == nil:
		respondWithIntent(c, intent)
	case lookupErr == mongo.ErrNoDocuments:
		c.JSON(http.StatusConflict, gin.H{"error": "receipt already in use"})
	default:
		respondWithError(c, http.StatusInternalServerError, "POST /order/checkout", "db error")
	}
}

func respondWithIntent(c *gin.Context, intent models.PaymentIntent) {
	c.JSON(http.StatusOK, gin.H{
		"paymentReference": intent.GatewayOrderID,
		"amount":           intent.Amount,
		"currency":         intent.Currency,
		"receipt":          intent.Receipt,
		"couponCode":       intent.CouponCode,
		"couponDiscount":   intent.CouponDiscount,
		"status":           intent.Status,
	})
}

/* =========================
   PRICING & STOCK
========================= */

type stockShortage struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

// revalidateStock reports the first cart line the catalog can no longer
// satisfy. A vanished product is a shortage; a store error is returned as-is
// so the caller does not mistake an outage for empty shelves.
func revalidateStock(ctx context.Context, db *mongo.Database, items []models.CartItem) (*stockShortage, error) {
	for _, item := range items {
		var product models.Product
		err := db.Collection("products").FindOne(ctx, bson.M{
			"_id":       item.ProductID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			return &stockShortage{ProductID: item.ProductID, Available: 0, Requested: item.Quantity}, nil
		}
		if err != nil {
			return nil, err
		}
		if product.Stock < item.Quantity {
			return &stockShortage{ProductID: item.ProductID, Available: product.Stock, Requested: item.Quantity}, nil
		}
	}
	return nil, nil
}

var errInvalidCoupon = errors.New("invalid coupon")

// couponDiscount returns the absolute discount a coupon grants on a total, or
// an error when the coupon is expired or malformed.
func couponDiscount(total float64, coupon models.Coupon, now time.Time) (float64, error) {
	if coupon.Discount <= 0 || coupon.Discount > 100 {
		return 0, errInvalidCoupon
	}
	if now.After(coupon.Expiry) {
		return 0, errInvalidCoupon
	}
	return roundMoney(total * coupon.Discount / 100), nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func toSubunits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

/* =========================
   TYPED FAILURES
========================= */

var (
	errEmptyCart      = errors.New("cart is empty")
	errIntentConsumed = errors.New("payment intent already consumed")
)

type outOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

type amountMismatchError struct {
	Expected float64
	Got      float64
}

func (e amountMismatchError) Error() string {
	return "cart total does not match payment intent"
}

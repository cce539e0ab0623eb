package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopapi/internal/models"
)

// unreachableDatabase returns a handle whose operations fail with a server
// selection error almost immediately.
func unreachableDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	client, err := mongo.Connect(context.Background(),
		options.Client().
			ApplyURI("mongodb://127.0.0.1:1").
			SetServerSelectionTimeout(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("test")
}

func TestCouponDiscount(t *testing.T) {
	now := time.Now()
	coupon := models.Coupon{
		Name:     "SAVE10",
		Discount: 10,
		Expiry:   now.Add(24 * time.Hour),
	}

	discount, err := couponDiscount(130, coupon, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 13 {
		t.Errorf("expected discount 13, got %v", discount)
	}
}

func TestCouponDiscountRounds(t *testing.T) {
	now := time.Now()
	coupon := models.Coupon{
		Name:     "THIRD",
		Discount: 33.33,
		Expiry:   now.Add(time.Hour),
	}

	discount, err := couponDiscount(99.99, coupon, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 33.33 {
		t.Errorf("expected discount 33.33, got %v", discount)
	}
}

func TestCouponDiscountExpired(t *testing.T) {
	now := time.Now()
	coupon := models.Coupon{
		Name:     "OLD",
		Discount: 10,
		Expiry:   now.Add(-time.Minute),
	}

	if _, err := couponDiscount(100, coupon, now); err == nil {
		t.Error("expected error for expired coupon")
	}
}

func TestCouponDiscountOutOfRange(t *testing.T) {
	now := time.Now()
	expiry := now.Add(time.Hour)

	for _, pct := range []float64{0, -5, 101} {
		coupon := models.Coupon{Name: "BAD", Discount: pct, Expiry: expiry}
		if _, err := couponDiscount(100, coupon, now); err == nil {
			t.Errorf("expected error for discount %v", pct)
		}
	}
}

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{10.005, 10.01},
		{10.004, 10.0},
		{0.1 + 0.2, 0.3},
		{100, 100},
	}
	for _, tc := range cases {
		if got := roundMoney(tc.in); got != tc.want {
			t.Errorf("roundMoney(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestToSubunits(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{117, 11700},
		{19.99, 1999},
		{0.3, 30},
	}
	for _, tc := range cases {
		if got := toSubunits(tc.amount); got != tc.want {
			t.Errorf("toSubunits(%v) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

// An unreachable store during stock revalidation must surface as an error,
// never as a shortage, so the handler answers 500 instead of out-of-stock.
func TestRevalidateStockPropagatesStoreError(t *testing.T) {
	db := unreachableDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	items := []models.CartItem{{ProductID: primitive.NewObjectID(), Quantity: 2}}
	shortage, err := revalidateStock(ctx, db, items)
	if err == nil {
		t.Fatal("expected a store error")
	}
	if shortage != nil {
		t.Errorf("store error must not be reported as a shortage, got %+v", shortage)
	}
}

func receiptRecoveryStatus(t *testing.T, intent models.PaymentIntent, lookupErr error) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondReceiptRecovery(c, intent, lookupErr)
	return w.Code
}

func TestReceiptRecoveryReturnsOwnIntent(t *testing.T) {
	intent := models.PaymentIntent{
		Receipt:        "r-1",
		GatewayOrderID: "order_123",
		Amount:         117,
		Status:         models.IntentCreated,
	}
	if code := receiptRecoveryStatus(t, intent, nil); code != http.StatusOK {
		t.Errorf("expected 200 for the caller's own intent, got %d", code)
	}
}

func TestReceiptRecoveryRejectsForeignReceipt(t *testing.T) {
	code := receiptRecoveryStatus(t, models.PaymentIntent{}, mongo.ErrNoDocuments)
	if code != http.StatusConflict {
		t.Errorf("expected 409 when the receipt belongs to another user, got %d", code)
	}
}

func TestReceiptRecoveryStoreErrorIsInternal(t *testing.T) {
	code := receiptRecoveryStatus(t, models.PaymentIntent{}, errors.New("connection reset"))
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a store error, got %d", code)
	}
}

// The amount charged is the rounded discounted total; recomputing it from the
// same cart and coupon must reproduce the intent amount exactly.
func TestDiscountedTotalStable(t *testing.T) {
	now := time.Now()
	items := []models.CartItem{
		{Price: 50, Quantity: 2},
		{Price: 30, Quantity: 1},
	}
	coupon := models.Coupon{Name: "SAVE10", Discount: 10, Expiry: now.Add(time.Hour)}

	total := cartTotal(items)
	discount, err := couponDiscount(total, coupon, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amount := roundMoney(total - discount)
	if amount != 117 {
		t.Errorf("expected amount 117, got %v", amount)
	}

	recomputed := roundMoney(cartTotal(items) - discount)
	if recomputed != amount {
		t.Errorf("recomputed amount %v does not match intent amount %v", recomputed, amount)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shopapi/internal/auth"
)

const testSecret = "middleware-test-secret"

func newGuardedRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireAuth(testSecret, roles...), func(c *gin.Context) {
		userID := c.MustGet("userId").(primitive.ObjectID)
		c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": c.GetString("role")})
	})
	return r
}

func doRequest(t *testing.T, r *gin.Engine, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthMissingToken(t *testing.T) {
	w := doRequest(t, newGuardedRouter(), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	for _, header := range []string{"garbage", "Basic abc", "Bearer"} {
		w := doRequest(t, newGuardedRouter(), header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	token, err := auth.NewAccessToken(testSecret, primitive.NewObjectID(), "user", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, newGuardedRouter(), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	token, err := auth.NewAccessToken(testSecret, primitive.NewObjectID(), "user", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, newGuardedRouter(), "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestRequireAuthRoleForbidden(t *testing.T) {
	token, err := auth.NewAccessToken(testSecret, primitive.NewObjectID(), "user", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, newGuardedRouter("admin"), "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestAdminAuthAllowsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminAuth(testSecret), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, err := auth.NewAccessToken(testSecret, primitive.NewObjectID(), "admin", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}

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
	"golang.org/x/crypto/bcrypt"

	"shopapi/internal/auth"
	"shopapi/internal/models"
	"shopapi/internal/notify"
)

const refreshCookieName = "refreshToken"

type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

func Register(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		count, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			log.Println("[AUTH] [ERROR] register db error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			log.Println("[AUTH] [ERROR] register email exists:", email)
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		now := time.Now()
		user := models.User{
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Email:        email,
			Phone:        strings.TrimSpace(req.Phone),
			PasswordHash: string(hash),
			Role:         models.RoleUser,
			Addresses:    []models.Address{},
			Wishlist:     []primitive.ObjectID{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		res, err := db.Collection("users").InsertOne(ctx, user)
		if err != nil {
			// The unique email index closes the check-then-insert race.
			if mongo.IsDuplicateKeyError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			log.Println("[AUTH] [ERROR] register insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		id, _ := res.InsertedID.(primitive.ObjectID)
		log.Println("[AUTH] [INFO] user registered:", email)
		c.JSON(http.StatusCreated, gin.H{
			"id":        id.Hex(),
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"email":     user.Email,
		})
	}
}

func Login(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return loginWithRole(db, jwtSecret, accessTTL, refreshTTL, "")
}

// AdminLogin behaves like Login but only accepts accounts with role=admin.
func AdminLogin(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return loginWithRole(db, jwtSecret, accessTTL, refreshTTL, models.RoleAdmin)
}

func loginWithRole(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)
		filter := bson.M{"email": email}
		if requiredRole != "" {
			filter["role"] = requiredRole
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, filter).Decode(&user); err != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials:", email)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials:", email)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if user.IsBlocked {
			log.Println("[AUTH] [ERROR] login blocked user:", email)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account is blocked"})
			return
		}

		accessToken, err := auth.NewAccessToken(jwtSecret, user.ID, user.Role, accessTTL)
		if err != nil {
			log.Println("[AUTH] [ERROR] login token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		plainRefresh, refreshHash, err := auth.NewOpaqueToken()
		if err != nil {
			log.Println("[AUTH] [ERROR] login refresh generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		_, err = db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
			"$set": bson.M{
				"refreshTokenHash": refreshHash,
				"updatedAt":        time.Now(),
			},
		})
		if err != nil {
			log.Println("[AUTH] [ERROR] login refresh persist failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		setRefreshCookie(c, user.ID, plainRefresh, refreshTTL)

		log.Println("[AUTH] [INFO] login succeeded:", email)
		c.JSON(http.StatusOK, gin.H{
			"accessToken": accessToken,
			"expiresIn":   int64(accessTTL.Seconds()),
			"user": gin.H{
				"id":        user.ID.Hex(),
				"firstName": user.FirstName,
				"lastName":  user.LastName,
				"email":     user.Email,
				"role":      user.Role,
			},
		})
	}
}

// Refresh rotates the refresh token. The stored hash is swapped with a single
// conditional update keyed on the presented hash, so of two concurrent
// refresh attempts exactly one wins; the loser gets 401 and the stored hash
// is cleared to force a fresh login.
func Refresh(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /refresh"
		defer handlePanic(c, route)

		userID, presented, ok := readRefreshCookie(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			clearRefreshCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		if user.IsBlocked {
			clearRefreshCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account is blocked"})
			return
		}

		if !auth.TokenHashMatches(user.RefreshTokenHash, presented) {
			// Stale or stolen token. Kill the live session so a replayed
			// token cannot be used again either.
			_, _ = db.Collection("users").UpdateByID(ctx, userID, bson.M{
				"$unset": bson.M{"refreshTokenHash": ""},
			})
			clearRefreshCookie(c)
			log.Println("[AUTH] [ERROR] refresh token mismatch for user:", userID.Hex())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		plainRefresh, refreshHash, err := auth.NewOpaqueToken()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"_id": userID, "refreshTokenHash": auth.HashToken(presented)},
			bson.M{"$set": bson.M{
				"refreshTokenHash": refreshHash,
				"updatedAt":        time.Now(),
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			// Lost the race against a concurrent refresh.
			clearRefreshCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		accessToken, err := auth.NewAccessToken(jwtSecret, user.ID, user.Role, accessTTL)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		setRefreshCookie(c, userID, plainRefresh, refreshTTL)

		log.Println("[AUTH] [INFO] refresh token rotated for user:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{
			"accessToken": accessToken,
			"expiresIn":   int64(accessTTL.Seconds()),
		})
	}
}

// Logout clears the stored refresh hash and the cookie. Safe to call with no
// live session.
func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /logout"
		defer handlePanic(c, route)

		if userID, _, ok := readRefreshCookie(c); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()

			_, _ = db.Collection("users").UpdateByID(ctx, userID, bson.M{
				"$unset": bson.M{"refreshTokenHash": ""},
			})
		}

		clearRefreshCookie(c)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func UpdatePassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /password"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req UpdatePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
			log.Println("[AUTH] [ERROR] password change rejected for user:", userID.Hex())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		_, err = db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$set": bson.M{
				"passwordHash": string(hash),
				"updatedAt":    time.Now(),
			},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[AUTH] [INFO] password updated for user:", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}

// ForgotPasswordToken stores a hashed, expiring reset token against the user
// and hands the plaintext to the mail worker. The response also carries the
// token so clients without mail delivery configured can complete the flow.
func ForgotPasswordToken(db *mongo.Database, publisher *notify.Publisher, resetTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /forgot-password-token"
		defer handlePanic(c, route)

		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		plainToken, tokenHash, err := auth.NewOpaqueToken()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		expiry := time.Now().Add(resetTTL)
		_, err = db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
			"$set": bson.M{
				"resetTokenHash":   tokenHash,
				"resetTokenExpiry": expiry,
				"updatedAt":        time.Now(),
			},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := publisher.PasswordResetRequested(email, plainToken, expiry); err != nil {
			log.Println("[AUTH] [ERROR] reset mail publish failed:", err)
		}

		log.Println("[AUTH] [INFO] reset token issued for:", email)
		c.JSON(http.StatusOK, gin.H{"token": plainToken, "expiresAt": expiry})
	}
}

// ResetPassword consumes a reset token. The stored reset fields are cleared
// on every terminal outcome, so a token works at most once.
func ResetPassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /reset-password"
		defer handlePanic(c, route)

		presented := strings.TrimSpace(c.Param("token"))
		if presented == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
			return
		}

		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		tokenHash := auth.HashToken(presented)
		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"resetTokenHash": tokenHash}).Decode(&user); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid reset token"})
			return
		}

		if user.ResetTokenExpiry == nil || time.Now().After(*user.ResetTokenExpiry) {
			_, _ = db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
				"$unset": bson.M{"resetTokenHash": "", "resetTokenExpiry": ""},
			})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "reset token expired"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		// Clearing the reset fields in the same conditional update makes the
		// token single-use even under concurrent submissions.
		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"_id": user.ID, "resetTokenHash": tokenHash},
			bson.M{
				"$set": bson.M{
					"passwordHash": string(hash),
					"updatedAt":    time.Now(),
				},
				"$unset": bson.M{
					"resetTokenHash":   "",
					"resetTokenExpiry": "",
					"refreshTokenHash": "",
				},
			},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid reset token"})
			return
		}

		log.Println("[AUTH] [INFO] password reset for user:", user.ID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "password reset successful"})
	}
}

/* =========================
   REFRESH COOKIE
========================= */

// The cookie value is "<userId>.<token>" so a mismatching token can still be
// attributed to an account and its session revoked.
func setRefreshCookie(c *gin.Context, userID primitive.ObjectID, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, userID.Hex()+"."+token, int(ttl.Seconds()), "/", "", true, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", true, true)
}

func readRefreshCookie(c *gin.Context) (primitive.ObjectID, string, bool) {
	value, err := c.Cookie(refreshCookieName)
	if err != nil || value == "" {
		return primitive.NilObjectID, "", false
	}

	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 || parts[1] == "" {
		return primitive.NilObjectID, "", false
	}

	userID, err := primitive.ObjectIDFromHex(parts[0])
	if err != nil {
		return primitive.NilObjectID, "", false
	}

	return userID, parts[1], true
}

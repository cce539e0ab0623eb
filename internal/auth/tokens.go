package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified access token proves.
type Identity struct {
	UserID primitive.ObjectID
	Role   string
}

// NewAccessToken signs a short-lived HS256 bearer token carrying the user id
// and role.
func NewAccessToken(secret string, userID primitive.ObjectID, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.Hex(),
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken verifies signature and expiry and extracts the identity.
// Any failure is ErrInvalidToken; callers treat it as unauthenticated.
func ParseAccessToken(secret, raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(sub))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: userID, Role: role}, nil
}

// NewOpaqueToken generates a high-entropy random secret and its sha256 hash.
// The plaintext goes to the client; only the hash is ever persisted. Used for
// both refresh and password-reset tokens.
func NewOpaqueToken() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, HashToken(plaintext), nil
}

// HashToken maps an opaque token to its stored form.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenHashMatches compares a presented opaque token against a stored hash in
// constant time.
func TokenHashMatches(storedHash, presented string) bool {
	if storedHash == "" {
		return false
	}
	computed := HashToken(presented)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(computed)) == 1
}

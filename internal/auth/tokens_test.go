package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := primitive.NewObjectID()

	token, err := NewAccessToken("test-secret", userID, "admin", time.Minute)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	identity, err := ParseAccessToken("test-secret", token)
	assert.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "admin", identity.Role)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAccessToken("secret-a", primitive.NewObjectID(), "user", time.Minute)
	assert.NoError(t, err)

	_, err = ParseAccessToken("secret-b", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := NewAccessToken("test-secret", primitive.NewObjectID(), "user", -time.Minute)
	assert.NoError(t, err)

	_, err = ParseAccessToken("test-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	_, err := ParseAccessToken("test-secret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewOpaqueTokenNeverRepeats(t *testing.T) {
	first, firstHash, err := NewOpaqueToken()
	assert.NoError(t, err)
	second, secondHash, err := NewOpaqueToken()
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, firstHash, secondHash)
	assert.NotEqual(t, first, firstHash)
}

func TestTokenHashMatches(t *testing.T) {
	plain, hash, err := NewOpaqueToken()
	assert.NoError(t, err)

	assert.True(t, TokenHashMatches(hash, plain))
	assert.False(t, TokenHashMatches(hash, plain+"x"))
	assert.False(t, TokenHashMatches("", plain))
}

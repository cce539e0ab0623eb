package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopapi/internal/auth"
)

// RequireAuth validates the bearer access token and injects the caller's
// identity into the context. With roles given, a valid token whose role is
// not listed gets 403 instead of 401.
func RequireAuth(secret string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		identity, err := auth.ParseAccessToken(secret, parts[1])
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if len(roles) > 0 {
			match := false
			for _, role := range roles {
				if identity.Role == role {
					match = true
					break
				}
			}
			if !match {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set("userId", identity.UserID)
		c.Set("role", identity.Role)
		c.Next()
	}
}

// AdminAuth is RequireAuth restricted to the admin role.
func AdminAuth(secret string) gin.HandlerFunc {
	return RequireAuth(secret, "admin")
}

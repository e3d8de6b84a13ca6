package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
)

// ContextKeyIdentity is where the verified identity lives in
// gin.Context. Handlers read it through GetIdentity rather than
// c.Get, so the type assertion happens in one place.
const ContextKeyIdentity = "identity"

// Auth validates the Bearer token on every request it wraps and
// stores the resulting identity for the handlers downstream.
func Auth(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		identity, err := authenticator.VerifyAccess(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// RequireAdmin rejects non-admin identities. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok || !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			return
		}
		c.Next()
	}
}

// GetIdentity extracts the verified identity stored by Auth. The
// boolean is false on routes that skipped the middleware.
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := val.(models.Identity)
	if !ok {
		return models.Identity{}, false
	}
	return identity, true
}

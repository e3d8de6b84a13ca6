package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
)

func newProtectedRouter(t *testing.T) (*gin.Engine, *auth.Authenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authenticator := auth.New("access-secret", "refresh-secret")

	router := gin.New()
	protected := router.Group("/", Auth(authenticator))
	protected.GET("/me", func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID})
	})
	protected.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, authenticator
}

func get(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	router, authenticator := newProtectedRouter(t)
	token, err := authenticator.IssueAccess(models.Identity{UserID: uuid.New(), Role: models.SystemRoleEmployee})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", "Basic "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", "Bearer not-a-jwt").Code)
}

func TestAuthRejectsRefreshTokenOnAccessRoute(t *testing.T) {
	router, authenticator := newProtectedRouter(t)
	refresh, err := authenticator.IssueRefresh(uuid.New())
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", "Bearer "+refresh).Code)
}

func TestAuthAcceptsValidToken(t *testing.T) {
	router, authenticator := newProtectedRouter(t)
	userID := uuid.New()
	token, err := authenticator.IssueAccess(models.Identity{UserID: userID, Role: models.SystemRoleEmployee})
	require.NoError(t, err)

	w := get(router, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestRequireAdmin(t *testing.T) {
	router, authenticator := newProtectedRouter(t)

	employee, err := authenticator.IssueAccess(models.Identity{UserID: uuid.New(), Role: models.SystemRoleEmployee})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(router, "/admin", "Bearer "+employee).Code)

	admin, err := authenticator.IssueAccess(models.Identity{UserID: uuid.New(), Role: models.SystemRoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(router, "/admin", "Bearer "+admin).Code)
}

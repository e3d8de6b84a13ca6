package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/teamchat/internal/models"
)

func testAuthenticator() *Authenticator {
	return New("access-secret", "refresh-secret")
}

func TestIssueAndVerifyAccess(t *testing.T) {
	a := testAuthenticator()
	identity := models.Identity{
		UserID: uuid.New(),
		Role:   models.SystemRoleEmployee,
		Email:  "someone@example.com",
	}

	token, err := a.IssueAccess(identity)
	require.NoError(t, err)

	got, err := a.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestIssueAndVerifyRefresh(t *testing.T) {
	a := testAuthenticator()
	userID := uuid.New()

	token, err := a.IssueRefresh(userID)
	require.NoError(t, err)

	got, err := a.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	a := testAuthenticator()
	userID := uuid.New()

	access, err := a.IssueAccess(models.Identity{UserID: userID, Role: models.SystemRoleAdmin})
	require.NoError(t, err)
	refresh, err := a.IssueRefresh(userID)
	require.NoError(t, err)

	_, err = a.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessRejectsTamperedToken(t *testing.T) {
	a := testAuthenticator()
	other := New("other-secret", "refresh-secret")

	token, err := other.IssueAccess(models.Identity{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = a.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessRejectsGarbage(t *testing.T) {
	a := testAuthenticator()

	_, err := a.VerifyAccess("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessExpired(t *testing.T) {
	a := testAuthenticator()

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			Issuer:    issuer,
		},
	}
	token, err := a.sign(claims, a.accessSecret)
	require.NoError(t, err)

	_, err = a.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccessMissingSubject(t *testing.T) {
	a := testAuthenticator()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    issuer,
		},
	}
	token, err := a.sign(claims, a.accessSecret)
	require.NoError(t, err)

	_, err = a.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// Package auth issues and verifies the two token families: short-lived
// access tokens (every authenticated request and realtime handshake)
// and long-lived refresh tokens (minting new pairs only). Each family
// has its own HMAC secret, so one can never stand in for the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lalith-99/teamchat/internal/models"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour

	issuer = "teamchat"
)

var (
	// ErrInvalidToken covers bad signature, malformed payload, wrong
	// signing method, and a missing or unparseable subject claim.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the token verified fine but its
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload inside an access token. Refresh tokens carry
// only the registered claims (subject = user uuid).
type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	accessSecret  []byte
	refreshSecret []byte
}

func New(accessSecret, refreshSecret string) *Authenticator {
	return &Authenticator{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}
}

// IssueAccess creates a signed access token for an identity, valid for
// AccessTokenTTL.
func (a *Authenticator) IssueAccess(identity models.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  identity.Role,
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return a.sign(claims, a.accessSecret)
}

// IssueRefresh creates a signed refresh token for a user, valid for
// RefreshTokenTTL.
func (a *Authenticator) IssueRefresh(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return a.sign(claims, a.refreshSecret)
}

func (a *Authenticator) sign(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and extracts the identity.
func (a *Authenticator) VerifyAccess(tokenString string) (models.Identity, error) {
	claims, err := a.verify(tokenString, a.accessSecret)
	if err != nil {
		return models.Identity{}, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{
		UserID: userID,
		Role:   claims.Role,
		Email:  claims.Email,
	}, nil
}

// VerifyRefresh validates a refresh token and returns the user id it
// was issued for.
func (a *Authenticator) VerifyRefresh(tokenString string) (uuid.UUID, error) {
	claims, err := a.verify(tokenString, a.refreshSecret)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func (a *Authenticator) verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// Reject anything but HMAC before the signature check,
			// closing off algorithm-confusion tokens.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

// AuthHandler serves the public endpoints: register, login, and token
// refresh. Everything else sits behind the auth middleware.
type AuthHandler struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	authenticator *auth.Authenticator
	logger        *zap.Logger
}

func NewAuthHandler(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	authenticator *auth.Authenticator,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:         users,
		refreshTokens: refreshTokens,
		authenticator: authenticator,
		logger:        logger,
	}
}

type registerRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	DisplayName string  `json:"display_name" binding:"required"`
	Branch      *string `json:"branch"`
	Team        *string `json:"team"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type authResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// Register handles POST /v1/auth/register. New accounts always start
// as employees; admin promotion happens out of band.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("check existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	user, err := h.users.Create(c.Request.Context(),
		req.Email, req.DisplayName, string(hash), models.SystemRoleEmployee, req.Branch, req.Team)
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	resp, err := h.issueTokens(c, user)
	if err != nil {
		h.logger.Error("issue tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /v1/auth/login. Unknown email and wrong password
// return the same 401 so the endpoint cannot be used to probe for
// accounts.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	resp, err := h.issueTokens(c, user)
	if err != nil {
		h.logger.Error("issue tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /v1/auth/refresh. The presented token must both
// verify cryptographically and still exist unrevoked in storage;
// rotation revokes it so a token can never be replayed.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.authenticator.VerifyRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	stored, err := h.refreshTokens.FindActive(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Error("look up refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	if stored == nil || stored.UserID != userID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	accessToken, err := h.authenticator.IssueAccess(identityOf(user))
	if err != nil {
		h.logger.Error("issue access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	refreshToken, err := h.authenticator.IssueRefresh(user.UUID)
	if err != nil {
		h.logger.Error("issue refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}

	ip, userAgent := clientMeta(c)
	err = h.refreshTokens.Rotate(c.Request.Context(),
		req.RefreshToken, user.UUID, refreshToken, ip, userAgent, time.Now().Add(auth.RefreshTokenTTL))
	if err != nil {
		h.logger.Error("rotate refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (authResponse, error) {
	accessToken, err := h.authenticator.IssueAccess(identityOf(user))
	if err != nil {
		return authResponse{}, err
	}
	refreshToken, err := h.authenticator.IssueRefresh(user.UUID)
	if err != nil {
		return authResponse{}, err
	}

	ip, userAgent := clientMeta(c)
	err = h.refreshTokens.Create(c.Request.Context(),
		user.UUID, refreshToken, ip, userAgent, time.Now().Add(auth.RefreshTokenTTL))
	if err != nil {
		return authResponse{}, err
	}

	return authResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func identityOf(user *models.User) models.Identity {
	return models.Identity{UserID: user.UUID, Role: user.Role, Email: user.Email}
}

func clientMeta(c *gin.Context) (ip, userAgent *string) {
	if v := c.ClientIP(); v != "" {
		ip = &v
	}
	if v := c.Request.UserAgent(); v != "" {
		userAgent = &v
	}
	return ip, userAgent
}

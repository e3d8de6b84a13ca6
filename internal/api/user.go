package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/repository"
)

type UserHandler struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, roles repository.RoleRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, roles: roles, logger: logger}
}

// List handles GET /v1/users. Admin only, enforced by the route.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetRoles handles GET /v1/users/:userId/roles.
func (h *UserHandler) GetRoles(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list user roles"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	roles, err := h.roles.ListUserRoles(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list user roles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list user roles"})
		return
	}
	c.JSON(http.StatusOK, roles)
}

type updateUserRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids" binding:"required"`
}

// UpdateRoles handles PUT /v1/users/:userId/roles. Admin only; swaps
// the user's full assignment set.
func (h *UserHandler) UpdateRoles(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req updateUserRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user roles"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	missing, err := h.roles.MissingIDs(c.Request.Context(), req.RoleIDs)
	if err != nil {
		h.logger.Error("validate role ids", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user roles"})
		return
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "unknown role ids",
			"missing_role_ids": missing,
		})
		return
	}

	if err := h.roles.ReplaceUserRoles(c.Request.Context(), userID, req.RoleIDs); err != nil {
		h.logger.Error("replace user roles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user roles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role_ids": req.RoleIDs})
}

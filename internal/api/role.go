package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/repository"
)

type RoleHandler struct {
	roles  repository.RoleRepository
	logger *zap.Logger
}

func NewRoleHandler(roles repository.RoleRepository, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, logger: logger}
}

// List handles GET /v1/roles.
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list roles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list roles"})
		return
	}
	c.JSON(http.StatusOK, roles)
}

type createRoleRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /v1/roles. Admin only, enforced by the route.
func (h *RoleHandler) Create(c *gin.Context) {
	var req createRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	existing, err := h.roles.GetByName(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("check existing role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create role"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "role name already taken"})
		return
	}

	role, err := h.roles.Create(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("create role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create role"})
		return
	}
	c.JSON(http.StatusCreated, role)
}

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/policy"
	"github.com/lalith-99/teamchat/internal/repository"
)

type ChannelHandler struct {
	channels repository.ChannelRepository
	users    repository.UserRepository
	roles    repository.RoleRepository
	policy   *policy.Checker
	logger   *zap.Logger
}

func NewChannelHandler(
	channels repository.ChannelRepository,
	users repository.UserRepository,
	roles repository.RoleRepository,
	checker *policy.Checker,
	logger *zap.Logger,
) *ChannelHandler {
	return &ChannelHandler{
		channels: channels,
		users:    users,
		roles:    roles,
		policy:   checker,
		logger:   logger,
	}
}

type createChannelRequest struct {
	Name          string  `json:"name" binding:"required"`
	IconCodepoint *int64  `json:"icon_codepoint"`
	IconColor     *string `json:"icon_color"`
}

// Create handles POST /v1/channels.
func (h *ChannelHandler) Create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	existing, err := h.channels.GetByName(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("check existing channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create channel"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "channel name already taken"})
		return
	}

	// Colors arrive from clients both with and without the leading #;
	// store the bare hex value.
	iconColor := req.IconColor
	if iconColor != nil {
		trimmed := strings.TrimPrefix(strings.TrimSpace(*iconColor), "#")
		iconColor = &trimmed
	}

	// The creator column carries a foreign key, so only record the
	// creator when the user row actually exists.
	var ownerID *uuid.UUID
	identity, _ := middleware.GetIdentity(c)
	creator, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("look up creator", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create channel"})
		return
	}
	if creator != nil {
		ownerID = &creator.UUID
	}

	channel, err := h.channels.Create(c.Request.Context(), name, req.IconCodepoint, iconColor, ownerID)
	if err != nil {
		h.logger.Error("create channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create channel"})
		return
	}
	c.JSON(http.StatusCreated, channel)
}

// List handles GET /v1/channels. Admins see every active channel;
// everyone else sees owned or role-visible ones, each with its last
// message and the caller's unread count.
func (h *ChannelHandler) List(c *gin.Context) {
	identity, _ := middleware.GetIdentity(c)

	roleIDs, err := h.roles.ListUserRoleIDs(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("list user role ids", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channels"})
		return
	}

	channels, err := h.channels.ListForUser(c.Request.Context(), identity.UserID, roleIDs, identity.IsAdmin())
	if err != nil {
		h.logger.Error("list channels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channels"})
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetRoles handles GET /v1/channels/:channelId/roles. Returns the
// channel's visibility set and whether the caller can see it.
func (h *ChannelHandler) GetRoles(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	channel, ok := h.loadChannel(c, channelID)
	if !ok {
		return
	}

	roleIDs, err := h.channels.ListRoleVisibility(c.Request.Context(), channelID)
	if err != nil {
		h.logger.Error("list role visibility", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channel roles"})
		return
	}

	identity, _ := middleware.GetIdentity(c)
	decision, err := h.policy.CanAccessChannel(c.Request.Context(), identity, channel)
	if err != nil {
		h.logger.Error("evaluate channel access", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channel roles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role_ids":   roleIDs,
		"has_access": decision.Allowed,
	})
}

type updateChannelRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids" binding:"required"`
}

// UpdateRoles handles PUT /v1/channels/:channelId/roles. Only the
// channel owner or an admin may change who sees the channel.
func (h *ChannelHandler) UpdateRoles(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	var req updateChannelRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, ok := h.loadChannel(c, channelID)
	if !ok {
		return
	}
	if !h.requireOwnerOrAdmin(c, channel) {
		return
	}

	missing, err := h.roles.MissingIDs(c.Request.Context(), req.RoleIDs)
	if err != nil {
		h.logger.Error("validate role ids", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update channel roles"})
		return
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "unknown role ids",
			"missing_role_ids": missing,
		})
		return
	}

	if err := h.channels.ReplaceRoleVisibility(c.Request.Context(), channelID, req.RoleIDs); err != nil {
		h.logger.Error("replace role visibility", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update channel roles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role_ids": req.RoleIDs})
}

// Delete handles DELETE /v1/channels/:channelId. Channels are
// deactivated, never dropped: their history stays queryable if the
// channel is ever turned back on.
func (h *ChannelHandler) Delete(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	channel, ok := h.loadChannel(c, channelID)
	if !ok {
		return
	}
	if !h.requireOwnerOrAdmin(c, channel) {
		return
	}

	if err := h.channels.Deactivate(c.Request.Context(), channelID); err != nil {
		h.logger.Error("deactivate channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete channel"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChannelHandler) loadChannel(c *gin.Context, channelID int64) (*models.Channel, bool) {
	channel, err := h.channels.GetByID(c.Request.Context(), channelID)
	if err != nil {
		h.logger.Error("load channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load channel"})
		return nil, false
	}
	if channel == nil || !channel.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return nil, false
	}
	return channel, true
}

func (h *ChannelHandler) requireOwnerOrAdmin(c *gin.Context, channel *models.Channel) bool {
	identity, _ := middleware.GetIdentity(c)
	if policy.CanManage(identity, channel) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": policy.ReasonNoAccess})
	return false
}

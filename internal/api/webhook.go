package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/policy"
	"github.com/lalith-99/teamchat/internal/repository"
	"github.com/lalith-99/teamchat/internal/service"
)

// MessageIngestor is the slice of the message service the webhook
// endpoints use. Satisfied by *service.MessageService.
type MessageIngestor interface {
	IngestWebhook(ctx context.Context, channelID int64, secretToken string, input service.WebhookInput) (*service.MessageView, error)
	IngestNotification(ctx context.Context, identity models.Identity, channelID int64, input service.NotificationInput) (*service.MessageView, error)
}

type WebhookHandler struct {
	webhooks repository.WebhookRepository
	channels repository.ChannelRepository
	svc      MessageIngestor
	logger   *zap.Logger
}

func NewWebhookHandler(
	webhooks repository.WebhookRepository,
	channels repository.ChannelRepository,
	svc MessageIngestor,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		channels: channels,
		svc:      svc,
		logger:   logger,
	}
}

type createWebhookRequest struct {
	ChannelID int64  `json:"channel_id" binding:"required"`
	URL       string `json:"url"`
}

// Create handles POST /v1/webhooks. The generated secret is returned
// exactly once, here; it is never readable again.
func (h *WebhookHandler) Create(c *gin.Context) {
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, ok := h.manageableChannel(c, req.ChannelID)
	if !ok {
		return
	}

	// No delivery url means an inbound-only hook.
	url := strings.TrimSpace(req.URL)
	if url == "" {
		url = service.InternalWebhookURL
	}

	secret, err := newSecretToken()
	if err != nil {
		h.logger.Error("generate webhook secret", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}

	hook, err := h.webhooks.Create(c.Request.Context(), channel.ID, url, secret)
	if err != nil {
		h.logger.Error("create webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           hook.ID,
		"channel_id":   hook.ChannelID,
		"url":          hook.URL,
		"secret_token": secret,
		"created_at":   hook.CreatedAt,
	})
}

// List handles GET /v1/webhooks/:channelId.
func (h *WebhookHandler) List(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	if _, ok := h.manageableChannel(c, channelID); !ok {
		return
	}

	hooks, err := h.webhooks.ListByChannel(c.Request.Context(), channelID)
	if err != nil {
		h.logger.Error("list webhooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}
	c.JSON(http.StatusOK, hooks)
}

type incomingWebhookRequest struct {
	ChannelID   int64      `json:"channel_id" binding:"required"`
	Content     string     `json:"content"`
	ImageURL    *string    `json:"image_url"`
	SenderUUID  *uuid.UUID `json:"sender_uuid"`
	SecretToken string     `json:"secret_token"`
}

// Incoming handles POST /v1/webhooks/incoming, the unauthenticated
// ingestion endpoint. The secret travels in the X-Webhook-Secret
// header, with the body field as a fallback for callers that cannot
// set headers.
func (h *WebhookHandler) Incoming(c *gin.Context) {
	var req incomingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	secret := c.GetHeader("X-Webhook-Secret")
	if secret == "" {
		secret = req.SecretToken
	}

	view, err := h.svc.IngestWebhook(c.Request.Context(), req.ChannelID, secret, service.WebhookInput{
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		SenderUUID: req.SenderUUID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type notifyRequest struct {
	ChannelID int64  `json:"channel_id" binding:"required"`
	Title     string `json:"title"`
	Content   string `json:"content" binding:"required"`
}

// Notify handles POST /v1/webhooks/notify. Admin only, enforced by
// the route.
func (h *WebhookHandler) Notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, _ := middleware.GetIdentity(c)
	view, err := h.svc.IngestNotification(c.Request.Context(), identity, req.ChannelID, service.NotificationInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *WebhookHandler) manageableChannel(c *gin.Context, channelID int64) (*models.Channel, bool) {
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
	identity, _ := middleware.GetIdentity(c)
	if !policy.CanManage(identity, channel) {
		c.JSON(http.StatusForbidden, gin.H{"error": policy.ReasonNoAccess})
		return nil, false
	}
	return channel, true
}

func newSecretToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

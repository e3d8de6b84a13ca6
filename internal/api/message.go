package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/service"
)

// MessagePoster is the slice of the message service these handlers
// use. Satisfied by *service.MessageService.
type MessagePoster interface {
	Post(ctx context.Context, identity models.Identity, channelID int64, input service.PostInput) (*service.MessageView, error)
	Fetch(ctx context.Context, identity models.Identity, channelID int64) ([]service.MessageView, error)
	MarkRead(ctx context.Context, identity models.Identity, channelID int64, messageIDs []int64) ([]int64, error)
}

type MessageHandler struct {
	svc    MessagePoster
	logger *zap.Logger
}

func NewMessageHandler(svc MessagePoster, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type createMessageRequest struct {
	ChannelID int64   `json:"channel_id" binding:"required"`
	Content   string  `json:"content"`
	ImageURL  *string `json:"image_url"`
}

// Create handles POST /v1/messages.
func (h *MessageHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, _ := middleware.GetIdentity(c)
	view, err := h.svc.Post(c.Request.Context(), identity, req.ChannelID, service.PostInput{
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// List handles GET /v1/messages/:channelId. Returns the full history
// oldest-first and marks the channel read for the caller.
func (h *MessageHandler) List(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}

	identity, _ := middleware.GetIdentity(c)
	views, err := h.svc.Fetch(c.Request.Context(), identity, channelID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

type markReadRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

// MarkRead handles POST /v1/messages/:channelId/read. An empty body
// marks the whole channel.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	identity, _ := middleware.GetIdentity(c)
	read, err := h.svc.MarkRead(c.Request.Context(), identity, channelID, req.MessageIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_ids": read})
}

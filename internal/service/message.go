// Package service holds the message pipeline: access gating,
// persistence, read receipts, realtime broadcast, and outbound webhook
// dispatch, composed behind one type so every entry point (REST,
// inbound webhooks, notifications) shares the exact same path.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/policy"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/repository"
)

// dispatchTimeout bounds the background webhook fan-out that outlives
// the originating request.
const dispatchTimeout = 30 * time.Second

// MessageView is the wire shape of a message, shared by REST responses
// and realtime events.
type MessageView struct {
	ID         int64       `json:"id"`
	ChannelID  int64       `json:"channel_id"`
	Type       string      `json:"type"`
	Content    string      `json:"content"`
	ImageURL   *string     `json:"image_url,omitempty"`
	SenderUUID *uuid.UUID  `json:"sender_uuid"`
	SenderName string      `json:"sender_name"`
	CreatedAt  time.Time   `json:"created_at"`
	ReadBy     []uuid.UUID `json:"read_by"`
}

func viewOf(rec *models.MessageRecord) MessageView {
	readBy := rec.ReadBy
	if readBy == nil {
		readBy = []uuid.UUID{}
	}
	return MessageView{
		ID:         rec.ID,
		ChannelID:  rec.ChannelID,
		Type:       rec.Type,
		Content:    rec.Content,
		ImageURL:   rec.ImageURL,
		SenderUUID: rec.SenderID,
		SenderName: rec.SenderName,
		CreatedAt:  rec.CreatedAt,
		ReadBy:     readBy,
	}
}

type readEvent struct {
	MessageIDs []int64   `json:"messageIds"`
	UserID     uuid.UUID `json:"userId"`
}

// Broadcaster pushes envelopes to a channel's live connections.
// Satisfied by *realtime.Broadcaster.
type Broadcaster interface {
	ToChannel(ctx context.Context, channelID int64, envelope realtime.Envelope)
}

// MessageService runs every operation that produces or consumes
// messages.
type MessageService struct {
	channels    repository.ChannelRepository
	users       repository.UserRepository
	messages    repository.MessageRepository
	webhooks    repository.WebhookRepository
	policy      *policy.Checker
	broadcaster Broadcaster
	dispatcher  *Dispatcher

	// defaultSender is the terminal fallback of the webhook sender
	// resolution chain. Nil when not configured.
	defaultSender *uuid.UUID

	logger *zap.Logger
}

func NewMessageService(
	channels repository.ChannelRepository,
	users repository.UserRepository,
	messages repository.MessageRepository,
	webhooks repository.WebhookRepository,
	checker *policy.Checker,
	broadcaster Broadcaster,
	dispatcher *Dispatcher,
	defaultSender *uuid.UUID,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		channels:      channels,
		users:         users,
		messages:      messages,
		webhooks:      webhooks,
		policy:        checker,
		broadcaster:   broadcaster,
		dispatcher:    dispatcher,
		defaultSender: defaultSender,
		logger:        logger,
	}
}

// activeChannel loads a channel and hides inactive ones behind the
// same not-found as missing ones.
func (s *MessageService) activeChannel(ctx context.Context, channelID int64) (*models.Channel, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("load channel", err)
	}
	if channel == nil || !channel.IsActive {
		return nil, apperr.NotFound("channel not found")
	}
	return channel, nil
}

func (s *MessageService) gate(ctx context.Context, identity models.Identity, channel *models.Channel) error {
	decision, err := s.policy.CanAccessChannel(ctx, identity, channel)
	if err != nil {
		return apperr.Internal("evaluate channel access", err)
	}
	if !decision.Allowed {
		return apperr.AccessDenied(decision.Reason)
	}
	return nil
}

// PostInput is a user-authored message.
type PostInput struct {
	Content  string
	ImageURL *string
}

// Post validates, gates, persists, and broadcasts a message from an
// authenticated user, then kicks off outbound webhook delivery in the
// background.
func (s *MessageService) Post(ctx context.Context, identity models.Identity, channelID int64, input PostInput) (*MessageView, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" && input.ImageURL == nil {
		return nil, apperr.Validation("content or image_url is required")
	}

	channel, err := s.activeChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, identity, channel); err != nil {
		return nil, err
	}

	msgType := models.MessageTypeText
	if input.ImageURL != nil {
		msgType = models.MessageTypeImage
	}

	senderID := identity.UserID
	rec, err := s.messages.Create(ctx, repository.CreateMessageParams{
		ChannelID:      channelID,
		Type:           msgType,
		Content:        content,
		ImageURL:       input.ImageURL,
		SenderID:       &senderID,
		MarkSenderRead: true,
	})
	if err != nil {
		return nil, apperr.Internal("create message", err)
	}

	view := viewOf(rec)
	s.publish(ctx, channelID, view)
	return &view, nil
}

// Fetch returns a channel's full history in chronological order and
// then marks it read for the caller. Receipt failures degrade to a log
// line; the caller still gets the messages.
func (s *MessageService) Fetch(ctx context.Context, identity models.Identity, channelID int64) ([]MessageView, error) {
	channel, err := s.activeChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, identity, channel); err != nil {
		return nil, err
	}

	records, err := s.messages.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	views := make([]MessageView, 0, len(records))
	for i := range records {
		views = append(views, viewOf(&records[i]))
	}

	if _, err := s.markRead(ctx, channelID, identity.UserID, nil); err != nil {
		s.logger.Warn("mark channel read after fetch",
			zap.Int64("channel_id", channelID),
			zap.String("user_id", identity.UserID.String()),
			zap.Error(err),
		)
	}
	return views, nil
}

// MarkRead records receipts for specific messages (or the whole
// channel when messageIDs is empty) and returns the ids that were
// actually unread.
func (s *MessageService) MarkRead(ctx context.Context, identity models.Identity, channelID int64, messageIDs []int64) ([]int64, error) {
	channel, err := s.activeChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, identity, channel); err != nil {
		return nil, err
	}
	read, err := s.markRead(ctx, channelID, identity.UserID, messageIDs)
	if err != nil {
		return nil, apperr.Internal("mark messages read", err)
	}
	return read, nil
}

// markRead inserts receipts for the user's unread messages and
// broadcasts which ids flipped. The unread query already excludes the
// user's own messages, so a receipt is never recorded for them.
func (s *MessageService) markRead(ctx context.Context, channelID int64, userID uuid.UUID, onlyIDs []int64) ([]int64, error) {
	unread, err := s.messages.FindUnreadIDs(ctx, channelID, userID, onlyIDs)
	if err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return []int64{}, nil
	}
	if err := s.messages.InsertReadReceipts(ctx, unread, userID); err != nil {
		return nil, err
	}
	s.broadcaster.ToChannel(ctx, channelID, realtime.Envelope{
		Event: realtime.EventMessageRead,
		Data:  readEvent{MessageIDs: unread, UserID: userID},
	})
	return unread, nil
}

// WebhookInput is an inbound webhook post.
type WebhookInput struct {
	Content    string
	ImageURL   *string
	SenderUUID *uuid.UUID
}

// IngestWebhook authenticates an external system's post by secret
// token, resolves a sender identity for it, and runs it through the
// same persist-and-broadcast path as user messages.
func (s *MessageService) IngestWebhook(ctx context.Context, channelID int64, secretToken string, input WebhookInput) (*MessageView, error) {
	if secretToken == "" {
		return nil, apperr.Auth("missing secret token")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" && input.ImageURL == nil {
		return nil, apperr.Validation("content or image_url is required")
	}

	channel, err := s.activeChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	hook, err := s.webhooks.FindBySecret(ctx, channelID, secretToken)
	if err != nil {
		return nil, apperr.Internal("look up webhook", err)
	}
	if hook == nil {
		return nil, apperr.Auth("invalid secret token")
	}

	sender, err := s.resolveSender(ctx, input.SenderUUID, channel)
	if err != nil {
		return nil, err
	}

	msgType := models.MessageTypeWebhook
	if input.ImageURL != nil {
		msgType = models.MessageTypeImage
	}

	rec, err := s.messages.Create(ctx, repository.CreateMessageParams{
		ChannelID: channelID,
		Type:      msgType,
		Content:   content,
		ImageURL:  input.ImageURL,
		SenderID:  &sender,
	})
	if err != nil {
		return nil, apperr.Internal("create webhook message", err)
	}

	view := viewOf(rec)
	s.publish(ctx, channelID, view)
	return &view, nil
}

// resolveSender picks the user a webhook message is attributed to:
// the payload's sender if it names a real user, then the channel
// owner, then the configured default. No candidate means the post is
// rejected.
func (s *MessageService) resolveSender(ctx context.Context, requested *uuid.UUID, channel *models.Channel) (uuid.UUID, error) {
	candidates := make([]uuid.UUID, 0, 3)
	if requested != nil {
		candidates = append(candidates, *requested)
	}
	if channel.OwnerID != nil {
		candidates = append(candidates, *channel.OwnerID)
	}
	if s.defaultSender != nil {
		candidates = append(candidates, *s.defaultSender)
	}

	for _, id := range candidates {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return uuid.Nil, apperr.Internal("resolve webhook sender", err)
		}
		if user != nil {
			return user.UUID, nil
		}
	}
	return uuid.Nil, apperr.Validation("no resolvable sender for webhook message")
}

// NotificationInput is a system notification posted into a channel.
type NotificationInput struct {
	Title   string
	Content string
}

// IngestNotification posts a notification-typed message on behalf of
// the calling admin. The title, when present, replaces the sender's
// display name in the pushed view.
func (s *MessageService) IngestNotification(ctx context.Context, identity models.Identity, channelID int64, input NotificationInput) (*MessageView, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}

	channel, err := s.activeChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, identity, channel); err != nil {
		return nil, err
	}

	senderID := identity.UserID
	rec, err := s.messages.Create(ctx, repository.CreateMessageParams{
		ChannelID:      channelID,
		Type:           models.MessageTypeNotification,
		Content:        content,
		SenderID:       &senderID,
		MarkSenderRead: true,
	})
	if err != nil {
		return nil, apperr.Internal("create notification", err)
	}

	view := viewOf(rec)
	view.SenderName = "Notification"
	if title := strings.TrimSpace(input.Title); title != "" {
		view.SenderName = title
	}
	s.publish(ctx, channelID, view)
	return &view, nil
}

// publish broadcasts a new message to live connections and hands it to
// the outbound dispatcher. Dispatch runs detached from the request:
// slow or dead subscriber endpoints must not hold up the response.
func (s *MessageService) publish(ctx context.Context, channelID int64, view MessageView) {
	s.broadcaster.ToChannel(ctx, channelID, realtime.Envelope{
		Event: realtime.EventMessageNew,
		Data:  view,
	})
	if s.dispatcher == nil {
		return
	}
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		s.dispatcher.Dispatch(dispatchCtx, channelID, view)
	}()
}

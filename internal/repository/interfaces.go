package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lalith-99/teamchat/internal/models"
)

// Every method takes a context so request cancellation and deadlines
// reach the database. Lookups return nil, nil when the row is absent;
// callers decide whether that is a 404 or something else.

// UserRepository handles user rows.
type UserRepository interface {
	Create(ctx context.Context, email, displayName, passwordHash, role string, branch, team *string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// RoleRepository handles assignable roles and their user assignments.
type RoleRepository interface {
	Create(ctx context.Context, name string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)

	// MissingIDs returns the subset of ids with no matching role row.
	MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)

	ListUserRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error)
	ListUserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	// ReplaceUserRoles swaps a user's full assignment set in one
	// transaction.
	ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
}

// ChannelRepository handles channels and their role-visibility set.
type ChannelRepository interface {
	Create(ctx context.Context, name string, iconCodepoint *int64, iconColor *string, ownerID *uuid.UUID) (*models.Channel, error)
	GetByID(ctx context.Context, channelID int64) (*models.Channel, error)
	GetByName(ctx context.Context, name string) (*models.Channel, error)

	// ListForUser returns active channels visible to the user: all of
	// them for admins, owned-or-role-visible otherwise. Each summary
	// carries the latest message and the user's unread count.
	ListForUser(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID, isAdmin bool) ([]models.ChannelSummary, error)

	ListRoleVisibility(ctx context.Context, channelID int64) ([]uuid.UUID, error)
	ReplaceRoleVisibility(ctx context.Context, channelID int64, roleIDs []uuid.UUID) error

	// CountVisibilityMatches is the access-predicate hot path: how many
	// of roleIDs appear in the channel's visibility set.
	CountVisibilityMatches(ctx context.Context, channelID int64, roleIDs []uuid.UUID) (int, error)

	Deactivate(ctx context.Context, channelID int64) error
}

// CreateMessageParams are the fields for a new message row.
// MarkSenderRead additionally inserts the sender's own read receipt in
// the same transaction, so a poster never counts their own message as
// unread.
type CreateMessageParams struct {
	ChannelID      int64
	Type           string
	Content        string
	ImageURL       *string
	SenderID       *uuid.UUID
	MarkSenderRead bool
}

// MessageRepository handles messages and read receipts.
type MessageRepository interface {
	Create(ctx context.Context, params CreateMessageParams) (*models.MessageRecord, error)

	// ListByChannel returns every message in the channel in stable
	// chronological order (created_at ascending, id ascending).
	ListByChannel(ctx context.Context, channelID int64) ([]models.MessageRecord, error)

	// FindUnreadIDs returns ids of messages in the channel the user has
	// neither read nor authored, optionally restricted to onlyIDs.
	FindUnreadIDs(ctx context.Context, channelID int64, userID uuid.UUID, onlyIDs []int64) ([]int64, error)

	// InsertReadReceipts bulk-inserts receipts, skipping duplicates.
	// Calling it twice with the same ids is a no-op the second time.
	InsertReadReceipts(ctx context.Context, messageIDs []int64, userID uuid.UUID) error
}

// WebhookRepository handles webhook subscriptions.
type WebhookRepository interface {
	Create(ctx context.Context, channelID int64, url, secretToken string) (*models.Webhook, error)
	ListByChannel(ctx context.Context, channelID int64) ([]models.Webhook, error)

	// FindBySecret authenticates an inbound webhook post.
	FindBySecret(ctx context.Context, channelID int64, secretToken string) (*models.Webhook, error)
}

// RefreshTokenRepository persists long-lived credentials so they can
// be revoked and rotated.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, ip, userAgent *string, expiresAt time.Time) error
	FindActive(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error

	// Rotate revokes oldToken and stores newToken in one transaction.
	Rotate(ctx context.Context, oldToken string, userID uuid.UUID, newToken string, ip, userAgent *string, expiresAt time.Time) error
}

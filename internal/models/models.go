package models

import (
	"time"

	"github.com/google/uuid"
)

// System-wide user roles. Not to be confused with assignable roles
// (the Role entity below), which drive channel visibility.
const (
	SystemRoleAdmin    = "admin"
	SystemRoleEmployee = "employee"
)

// Message types as stored in the messages table.
const (
	MessageTypeText         = "text"
	MessageTypeImage        = "image"
	MessageTypeWebhook      = "webhook"
	MessageTypeNotification = "notification"
)

// Identity is who a request or connection belongs to. Produced once at
// token verification and immutable afterwards.
type Identity struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

func (i Identity) IsAdmin() bool {
	return i.Role == SystemRoleAdmin
}

// User is a person with a login. PasswordHash never leaves the server.
type User struct {
	UUID         uuid.UUID `json:"uuid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	Branch       *string   `json:"branch"`
	Team         *string   `json:"team"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is an assignable role. Users carry a set of roles, channels
// carry a visibility set of role ids; the intersection decides access.
type Role struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is a chat room. OwnerID is nullable: channels created
// without a creator have no owner, which matters for the webhook
// sender fallback chain.
type Channel struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	IconCodepoint *int64     `json:"icon_codepoint"`
	IconColor     *string    `json:"icon_color"`
	IsActive      bool       `json:"is_active"`
	OwnerID       *uuid.UUID `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ChannelSummary is a channel enriched for the channel-list view.
type ChannelSummary struct {
	Channel
	LastMessageContent *string    `json:"last_message_content"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	UnreadCount        int64      `json:"unread_count"`
}

// Message is a single chat message. Never mutated after creation.
type Message struct {
	ID        int64      `json:"id"`
	ChannelID int64      `json:"channel_id"`
	Type      string     `json:"type"`
	Content   string     `json:"content"`
	ImageURL  *string    `json:"image_url,omitempty"`
	SenderID  *uuid.UUID `json:"sender_uuid"`
	CreatedAt time.Time  `json:"created_at"`
}

// MessageRecord is a message joined with the data the wire shape
// needs: the sender's display name and who has read it.
type MessageRecord struct {
	Message
	SenderName string
	ReadBy     []uuid.UUID
}

// Webhook is an inbound/outbound subscription on a channel. URL may be
// the literal "internal" for inbound-only hooks; SecretToken
// authenticates inbound posts and signs outbound ones.
type Webhook struct {
	ID          int64     `json:"id"`
	ChannelID   int64     `json:"channel_id"`
	URL         string    `json:"url"`
	SecretToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshToken is a persisted long-lived credential. Rotation revokes
// the old row and inserts the new one atomically.
type RefreshToken struct {
	ID        int64
	UserID    uuid.UUID
	Token     string
	IPAddress *string
	UserAgent *string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Package policy holds the single channel-access predicate shared by
// every message-bearing path: reads, posts, mark-read, and webhook
// administration all call the same Checker so the rules cannot drift
// between endpoints.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lalith-99/teamchat/internal/models"
)

// ReasonNoAccess is the user-facing denial reason.
const ReasonNoAccess = "no access to this channel"

// RoleSource supplies a user's assigned role ids. Satisfied by
// repository.RoleRepository.
type RoleSource interface {
	ListUserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// VisibilitySource counts how many of the given role ids appear in a
// channel's visibility set. Satisfied by repository.ChannelRepository.
type VisibilitySource interface {
	CountVisibilityMatches(ctx context.Context, channelID int64, roleIDs []uuid.UUID) (int, error)
}

// Decision is the outcome of the predicate. Reason is set only when
// Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// CanManage reports whether the identity may administer a channel:
// its owner or any admin. The first two rules of CanAccessChannel,
// without the role-visibility fallback.
func CanManage(identity models.Identity, channel *models.Channel) bool {
	if identity.IsAdmin() {
		return true
	}
	return channel.OwnerID != nil && *channel.OwnerID == identity.UserID
}

type Checker struct {
	roles      RoleSource
	visibility VisibilitySource
}

func NewChecker(roles RoleSource, visibility VisibilitySource) *Checker {
	return &Checker{roles: roles, visibility: visibility}
}

// CanAccessChannel evaluates, in order: admin, owner, role-visibility
// intersection. The rule is monotonic in the user's role set: an extra
// role can only ever grow the visibility intersection.
func (c *Checker) CanAccessChannel(ctx context.Context, identity models.Identity, channel *models.Channel) (Decision, error) {
	if CanManage(identity, channel) {
		return allow(), nil
	}

	roleIDs, err := c.roles.ListUserRoleIDs(ctx, identity.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("list user role ids: %w", err)
	}
	if len(roleIDs) == 0 {
		return deny(ReasonNoAccess), nil
	}

	matches, err := c.visibility.CountVisibilityMatches(ctx, channel.ID, roleIDs)
	if err != nil {
		return Decision{}, fmt.Errorf("count visibility matches: %w", err)
	}
	if matches == 0 {
		return deny(ReasonNoAccess), nil
	}
	return allow(), nil
}

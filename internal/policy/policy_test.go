package policy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/teamchat/internal/models"
)

// fakeAccessData backs both sources: user → assigned roles, and
// channel → visibility set.
type fakeAccessData struct {
	userRoles  map[uuid.UUID][]uuid.UUID
	visibility map[int64][]uuid.UUID
}

func (f *fakeAccessData) ListUserRoleIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return f.userRoles[userID], nil
}

func (f *fakeAccessData) CountVisibilityMatches(_ context.Context, channelID int64, roleIDs []uuid.UUID) (int, error) {
	visible := make(map[uuid.UUID]bool)
	for _, id := range f.visibility[channelID] {
		visible[id] = true
	}
	count := 0
	for _, id := range roleIDs {
		if visible[id] {
			count++
		}
	}
	return count, nil
}

func TestCanAccessChannel(t *testing.T) {
	owner := uuid.New()
	member := uuid.New()
	stranger := uuid.New()
	matching := uuid.New()
	unrelated := uuid.New()

	data := &fakeAccessData{
		userRoles: map[uuid.UUID][]uuid.UUID{
			member:   {matching},
			stranger: {unrelated},
		},
		visibility: map[int64][]uuid.UUID{
			7: {matching},
		},
	}
	checker := NewChecker(data, data)
	channel := &models.Channel{ID: 7, OwnerID: &owner, IsActive: true}

	tests := []struct {
		name     string
		identity models.Identity
		allowed  bool
	}{
		{"admin always allowed", models.Identity{UserID: uuid.New(), Role: models.SystemRoleAdmin}, true},
		{"owner always allowed", models.Identity{UserID: owner, Role: models.SystemRoleEmployee}, true},
		{"matching role allowed", models.Identity{UserID: member, Role: models.SystemRoleEmployee}, true},
		{"non-matching role denied", models.Identity{UserID: stranger, Role: models.SystemRoleEmployee}, false},
		{"no roles denied", models.Identity{UserID: uuid.New(), Role: models.SystemRoleEmployee}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := checker.CanAccessChannel(context.Background(), tt.identity, channel)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, dec.Allowed)
			if !tt.allowed {
				assert.Equal(t, ReasonNoAccess, dec.Reason)
			}
		})
	}
}

// Granting an extra role never revokes access, and an empty visibility
// set admits nobody but the owner and admins.
func TestCanAccessChannelMonotonic(t *testing.T) {
	user := uuid.New()
	matching := uuid.New()
	extra := uuid.New()

	data := &fakeAccessData{
		userRoles:  map[uuid.UUID][]uuid.UUID{user: {matching}},
		visibility: map[int64][]uuid.UUID{7: {matching}},
	}
	checker := NewChecker(data, data)
	channel := &models.Channel{ID: 7, IsActive: true}
	identity := models.Identity{UserID: user, Role: models.SystemRoleEmployee}

	dec, err := checker.CanAccessChannel(context.Background(), identity, channel)
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	data.userRoles[user] = append(data.userRoles[user], extra)
	dec, err = checker.CanAccessChannel(context.Background(), identity, channel)
	require.NoError(t, err)
	assert.True(t, dec.Allowed, "adding a role must not revoke access")
}

func TestCanAccessChannelEmptyVisibilitySet(t *testing.T) {
	owner := uuid.New()
	user := uuid.New()

	data := &fakeAccessData{
		userRoles:  map[uuid.UUID][]uuid.UUID{user: {uuid.New(), uuid.New()}},
		visibility: map[int64][]uuid.UUID{},
	}
	checker := NewChecker(data, data)
	channel := &models.Channel{ID: 9, OwnerID: &owner, IsActive: true}

	dec, err := checker.CanAccessChannel(context.Background(),
		models.Identity{UserID: user, Role: models.SystemRoleEmployee}, channel)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	dec, err = checker.CanAccessChannel(context.Background(),
		models.Identity{UserID: owner, Role: models.SystemRoleEmployee}, channel)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/teamchat/internal/models"
)

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

const channelColumns = `id, name, icon_codepoint, icon_color, is_active, created_by, created_at, updated_at`

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var ch models.Channel
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.IconCodepoint,
		&ch.IconColor,
		&ch.IsActive,
		&ch.OwnerID,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) Create(ctx context.Context, name string, iconCodepoint *int64, iconColor *string, ownerID *uuid.UUID) (*models.Channel, error) {
	query := `
		INSERT INTO channels (name, icon_codepoint, icon_color, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, true, $4, now(), now())
		RETURNING ` + channelColumns

	channel, err := scanChannel(s.pool.QueryRow(ctx, query, name, iconCodepoint, iconColor, ownerID))
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return channel, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, channelID int64) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	channel, err := scanChannel(s.pool.QueryRow(ctx, query, channelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel by id: %w", err)
	}
	return channel, nil
}

func (s *ChannelStore) GetByName(ctx context.Context, name string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE lower(name) = lower($1) AND is_active`

	channel, err := scanChannel(s.pool.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel by name: %w", err)
	}
	return channel, nil
}

func (s *ChannelStore) ListForUser(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID, isAdmin bool) ([]models.ChannelSummary, error) {
	// One round trip per listing: the lateral join grabs each
	// channel's latest message, the correlated subquery counts what
	// the user has not read and did not write.
	query := `
		SELECT c.id, c.name, c.icon_codepoint, c.icon_color, c.is_active,
		       c.created_by, c.created_at, c.updated_at,
		       lm.content, lm.created_at,
		       (SELECT count(*)
		        FROM messages m
		        WHERE m.channel_id = c.id
		          AND m.sender_uuid IS DISTINCT FROM $1
		          AND NOT EXISTS (
		              SELECT 1 FROM message_reads mr
		              WHERE mr.message_id = m.id AND mr.user_uuid = $1)
		       ) AS unread_count
		FROM channels c
		LEFT JOIN LATERAL (
		    SELECT m.content, m.created_at
		    FROM messages m
		    WHERE m.channel_id = c.id
		    ORDER BY m.created_at DESC, m.id DESC
		    LIMIT 1
		) lm ON true
		WHERE c.is_active
		  AND ($3
		       OR c.created_by = $1
		       OR EXISTS (
		           SELECT 1 FROM channel_roles cr
		           WHERE cr.channel_id = c.id AND cr.role_id = ANY($2)))
		ORDER BY lm.created_at DESC NULLS LAST, c.name`

	rows, err := s.pool.Query(ctx, query, userID, roleIDs, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("list channels for user: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ChannelSummary, 0)
	for rows.Next() {
		var sum models.ChannelSummary
		err := rows.Scan(
			&sum.ID,
			&sum.Name,
			&sum.IconCodepoint,
			&sum.IconColor,
			&sum.IsActive,
			&sum.OwnerID,
			&sum.CreatedAt,
			&sum.UpdatedAt,
			&sum.LastMessageContent,
			&sum.LastMessageAt,
			&sum.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan channel summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel summaries: %w", err)
	}
	return summaries, nil
}

func (s *ChannelStore) ListRoleVisibility(ctx context.Context, channelID int64) ([]uuid.UUID, error) {
	query := `SELECT role_id FROM channel_roles WHERE channel_id = $1`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list role visibility: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan visibility role id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visibility role ids: %w", err)
	}
	return ids, nil
}

func (s *ChannelStore) ReplaceRoleVisibility(ctx context.Context, channelID int64, roleIDs []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace role visibility: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM channel_roles WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("clear role visibility: %w", err)
	}
	if len(roleIDs) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO channel_roles (channel_id, role_id)
			SELECT $1, unnest($2::uuid[])`,
			channelID, roleIDs)
		if err != nil {
			return fmt.Errorf("insert role visibility: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace role visibility: %w", err)
	}
	return nil
}

func (s *ChannelStore) CountVisibilityMatches(ctx context.Context, channelID int64, roleIDs []uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM channel_roles WHERE channel_id = $1 AND role_id = ANY($2)`

	var count int
	if err := s.pool.QueryRow(ctx, query, channelID, roleIDs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count visibility matches: %w", err)
	}
	return count, nil
}

func (s *ChannelStore) Deactivate(ctx context.Context, channelID int64) error {
	query := `UPDATE channels SET is_active = false, updated_at = now() WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, channelID); err != nil {
		return fmt.Errorf("deactivate channel: %w", err)
	}
	return nil
}

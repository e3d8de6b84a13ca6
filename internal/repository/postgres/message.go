package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, params repository.CreateMessageParams) (*models.MessageRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create message: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	insert := `
		INSERT INTO messages (channel_id, type, content, image_url, sender_uuid, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, channel_id, type, content, image_url, sender_uuid, created_at`

	var rec models.MessageRecord
	err = tx.QueryRow(ctx, insert,
		params.ChannelID, params.Type, params.Content, params.ImageURL, params.SenderID).Scan(
		&rec.ID,
		&rec.ChannelID,
		&rec.Type,
		&rec.Content,
		&rec.ImageURL,
		&rec.SenderID,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// The sender's own receipt rides in the same transaction, so a
	// freshly posted message can never flash as unread for its author.
	if params.MarkSenderRead && params.SenderID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO message_reads (message_id, user_uuid, read_at)
			VALUES ($1, $2, now())
			ON CONFLICT DO NOTHING`,
			rec.ID, *params.SenderID)
		if err != nil {
			return nil, fmt.Errorf("insert sender receipt: %w", err)
		}
		rec.ReadBy = []uuid.UUID{*params.SenderID}
	}

	if params.SenderID != nil {
		err = tx.QueryRow(ctx,
			`SELECT display_name FROM users WHERE uuid = $1`, *params.SenderID).Scan(&rec.SenderName)
		if err != nil {
			return nil, fmt.Errorf("load sender name: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create message: %w", err)
	}
	return &rec, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID int64) ([]models.MessageRecord, error) {
	query := `
		SELECT m.id, m.channel_id, m.type, m.content, m.image_url, m.sender_uuid, m.created_at,
		       COALESCE(u.display_name, '')
		FROM messages m
		LEFT JOIN users u ON u.uuid = m.sender_uuid
		WHERE m.channel_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	records := make([]models.MessageRecord, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var rec models.MessageRecord
		err := rows.Scan(
			&rec.ID,
			&rec.ChannelID,
			&rec.Type,
			&rec.Content,
			&rec.ImageURL,
			&rec.SenderID,
			&rec.CreatedAt,
			&rec.SenderName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.ReadBy = []uuid.UUID{}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	receipts, err := s.pool.Query(ctx, `
		SELECT mr.message_id, mr.user_uuid
		FROM message_reads mr
		JOIN messages m ON m.id = mr.message_id
		WHERE m.channel_id = $1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list read receipts: %w", err)
	}
	defer receipts.Close()

	for receipts.Next() {
		var messageID int64
		var userID uuid.UUID
		if err := receipts.Scan(&messageID, &userID); err != nil {
			return nil, fmt.Errorf("scan read receipt: %w", err)
		}
		if i, ok := index[messageID]; ok {
			records[i].ReadBy = append(records[i].ReadBy, userID)
		}
	}
	if err := receipts.Err(); err != nil {
		return nil, fmt.Errorf("iterate read receipts: %w", err)
	}
	return records, nil
}

func (s *MessageStore) FindUnreadIDs(ctx context.Context, channelID int64, userID uuid.UUID, onlyIDs []int64) ([]int64, error) {
	// Own messages never count as unread, whatever the receipts say.
	var query string
	var args []any

	if len(onlyIDs) > 0 {
		query = `
			SELECT m.id
			FROM messages m
			WHERE m.channel_id = $1
			  AND m.sender_uuid IS DISTINCT FROM $2
			  AND m.id = ANY($3)
			  AND NOT EXISTS (
			      SELECT 1 FROM message_reads mr
			      WHERE mr.message_id = m.id AND mr.user_uuid = $2)
			ORDER BY m.id`
		args = []any{channelID, userID, onlyIDs}
	} else {
		query = `
			SELECT m.id
			FROM messages m
			WHERE m.channel_id = $1
			  AND m.sender_uuid IS DISTINCT FROM $2
			  AND NOT EXISTS (
			      SELECT 1 FROM message_reads mr
			      WHERE mr.message_id = m.id AND mr.user_uuid = $2)
			ORDER BY m.id`
		args = []any{channelID, userID}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find unread ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unread id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread ids: %w", err)
	}
	return ids, nil
}

func (s *MessageStore) InsertReadReceipts(ctx context.Context, messageIDs []int64, userID uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO message_reads (message_id, user_uuid, read_at)
		SELECT unnest($1::bigint[]), $2, now()
		ON CONFLICT DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, messageIDs, userID); err != nil {
		return fmt.Errorf("insert read receipts: %w", err)
	}
	return nil
}

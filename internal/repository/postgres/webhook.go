package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/teamchat/internal/models"
)

type WebhookStore struct {
	pool *pgxpool.Pool
}

func NewWebhookStore(pool *pgxpool.Pool) *WebhookStore {
	return &WebhookStore{pool: pool}
}

func (s *WebhookStore) Create(ctx context.Context, channelID int64, url, secretToken string) (*models.Webhook, error) {
	query := `
		INSERT INTO webhooks (channel_id, url, secret_token, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, channel_id, url, secret_token, created_at`

	var hook models.Webhook
	err := s.pool.QueryRow(ctx, query, channelID, url, secretToken).Scan(
		&hook.ID,
		&hook.ChannelID,
		&hook.URL,
		&hook.SecretToken,
		&hook.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	return &hook, nil
}

func (s *WebhookStore) ListByChannel(ctx context.Context, channelID int64) ([]models.Webhook, error) {
	query := `
		SELECT id, channel_id, url, secret_token, created_at
		FROM webhooks
		WHERE channel_id = $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	hooks := make([]models.Webhook, 0)
	for rows.Next() {
		var hook models.Webhook
		err := rows.Scan(
			&hook.ID,
			&hook.ChannelID,
			&hook.URL,
			&hook.SecretToken,
			&hook.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, hook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return hooks, nil
}

func (s *WebhookStore) FindBySecret(ctx context.Context, channelID int64, secretToken string) (*models.Webhook, error) {
	query := `
		SELECT id, channel_id, url, secret_token, created_at
		FROM webhooks
		WHERE channel_id = $1 AND secret_token = $2`

	var hook models.Webhook
	err := s.pool.QueryRow(ctx, query, channelID, secretToken).Scan(
		&hook.ID,
		&hook.ChannelID,
		&hook.URL,
		&hook.SecretToken,
		&hook.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook by secret: %w", err)
	}
	return &hook, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/teamchat/internal/models"
)

type RefreshTokenStore struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenStore(pool *pgxpool.Pool) *RefreshTokenStore {
	return &RefreshTokenStore{pool: pool}
}

func (s *RefreshTokenStore) Create(ctx context.Context, userID uuid.UUID, token string, ip, userAgent *string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_uuid, token, ip_address, user_agent, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())`

	if _, err := s.pool.Exec(ctx, query, userID, token, ip, userAgent, expiresAt); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenStore) FindActive(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_uuid, token, ip_address, user_agent, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token = $1 AND NOT revoked AND expires_at > now()`

	var rt models.RefreshToken
	err := s.pool.QueryRow(ctx, query, token).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&rt.IPAddress,
		&rt.UserAgent,
		&rt.ExpiresAt,
		&rt.Revoked,
		&rt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active refresh token: %w", err)
	}
	return &rt, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET revoked = true WHERE token = $1`

	if _, err := s.pool.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Rotate revokes the old token and records its replacement in one
// transaction, so a crash can never leave both usable.
func (s *RefreshTokenStore) Rotate(ctx context.Context, oldToken string, userID uuid.UUID, newToken string, ip, userAgent *string, expiresAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate refresh token: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token = $1`, oldToken); err != nil {
		return fmt.Errorf("revoke old refresh token: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (user_uuid, token, ip_address, user_agent, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())`,
		userID, newToken, ip, userAgent, expiresAt)
	if err != nil {
		return fmt.Errorf("insert new refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate refresh token: %w", err)
	}
	return nil
}

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

type RoleStore struct {
	pool *pgxpool.Pool
}

func NewRoleStore(pool *pgxpool.Pool) *RoleStore {
	return &RoleStore{pool: pool}
}

func (s *RoleStore) Create(ctx context.Context, name string) (*models.Role, error) {
	query := `
		INSERT INTO roles (id, name, created_at)
		VALUES ($1, $2, now())
		RETURNING id, name, created_at`

	var role models.Role
	err := s.pool.QueryRow(ctx, query, uuid.New(), name).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return &role, nil
}

func (s *RoleStore) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT id, name, created_at FROM roles WHERE lower(name) = lower($1)`

	var role models.Role
	err := s.pool.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return &role, nil
}

func (s *RoleStore) List(ctx context.Context) ([]models.Role, error) {
	query := `SELECT id, name, created_at FROM roles ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func (s *RoleStore) MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// unnest the candidate set and anti-join against roles, so one
	// round trip validates the whole batch.
	query := `
		SELECT candidate.id
		FROM unnest($1::uuid[]) AS candidate(id)
		WHERE NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = candidate.id)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("find missing role ids: %w", err)
	}
	defer rows.Close()

	var missing []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan missing role id: %w", err)
		}
		missing = append(missing, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing role ids: %w", err)
	}
	return missing, nil
}

func (s *RoleStore) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	query := `
		SELECT r.id, r.name, r.created_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_uuid = $1
		ORDER BY r.name`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}
	return roles, nil
}

func (s *RoleStore) ListUserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT role_id FROM user_roles WHERE user_uuid = $1`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user role ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user role id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user role ids: %w", err)
	}
	return ids, nil
}

func (s *RoleStore) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace user roles: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_uuid = $1`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	if len(roleIDs) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO user_roles (user_uuid, role_id)
			SELECT $1, unnest($2::uuid[])`,
			userID, roleIDs)
		if err != nil {
			return fmt.Errorf("insert user roles: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace user roles: %w", err)
	}
	return nil
}

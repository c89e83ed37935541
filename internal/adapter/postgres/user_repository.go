package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/charades/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepository = (*UserRepo)(nil)

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const getUserSQL = `-- name: GetUser
SELECT id, name, created_at FROM users WHERE id = $1`

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, getUserSQL, userID).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

const upsertUserSQL = `-- name: UpsertUser
INSERT INTO users (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = COALESCE(EXCLUDED.name, users.name)
RETURNING id, name, created_at`

// Upsert creates the user or updates its name. A nil name keeps the stored one.
func (r *UserRepo) Upsert(ctx context.Context, userID string, name *string) (*domain.User, error) {
	var u domain.User
	if err := r.pool.QueryRow(ctx, upsertUserSQL, userID, name).Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &u, nil
}

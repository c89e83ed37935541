package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/charades/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

var _ domain.RoomRepository = (*RoomRepo)(nil)

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

const getRoomSQL = `-- name: GetRoom
SELECT id, public, admin_user_id, created_at FROM rooms WHERE id = $1`

func (r *RoomRepo) GetByID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx, getRoomSQL, roomID).Scan(&room.ID, &room.Public, &room.AdminUserID, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

const createRoomSQL = `-- name: CreateRoom
INSERT INTO rooms (id, public, admin_user_id) VALUES ($1, $2, $3)
RETURNING id, public, admin_user_id, created_at`

func (r *RoomRepo) Create(ctx context.Context, roomID, adminUserID string, public bool) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx, createRoomSQL, roomID, public, adminUserID).Scan(&room.ID, &room.Public, &room.AdminUserID, &room.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return nil, domain.ErrRoomExists
		case pgForeignKeyViolation:
			return nil, domain.ErrUserNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &room, nil
}

const joinRoomSQL = `-- name: JoinRoom
INSERT INTO room_members (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

func (r *RoomRepo) Join(ctx context.Context, roomID, userID string) error {
	_, err := r.pool.Exec(ctx, joinRoomSQL, userID, roomID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		if pgErr.ConstraintName == "room_members_room_fk" {
			return domain.ErrRoomNotFound
		}
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	return nil
}

const listMembersSQL = `-- name: ListMembers
SELECT u.id, u.name, u.created_at
FROM room_members m
JOIN users u ON u.id = m.user_id
WHERE m.room_id = $1
ORDER BY m.joined_at, u.id`

// ListMembers returns members in join order.
func (r *RoomRepo) ListMembers(ctx context.Context, roomID string) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, listMembersSQL, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list room members: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		var u domain.User
		err := row.Scan(&u.ID, &u.Name, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan room members: %w", err)
	}
	return users, nil
}

const insertWordSQL = `-- name: InsertWord
INSERT INTO words (word, room_id, user_id) VALUES ($1, $2, $3)
RETURNING word, room_id, user_id, created_at`

// InsertWord relies on the (word, room_id) primary key, so of two concurrent inserts of the
// same word exactly one succeeds and the other gets domain.ErrWordExists.
func (r *RoomRepo) InsertWord(ctx context.Context, roomID, word, userID string) (*domain.Word, error) {
	var w domain.Word
	err := r.pool.QueryRow(ctx, insertWordSQL, word, roomID, userID).Scan(&w.Word, &w.RoomID, &w.UserID, &w.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return nil, domain.ErrWordExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert word: %w", err)
	}
	return &w, nil
}

const listWordsSQL = `-- name: ListWords
SELECT word, room_id, user_id, created_at FROM words WHERE room_id = $1 ORDER BY created_at, word`

func (r *RoomRepo) ListWords(ctx context.Context, roomID string) ([]domain.Word, error) {
	rows, err := r.pool.Query(ctx, listWordsSQL, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list words: %w", err)
	}

	words, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Word, error) {
		var w domain.Word
		err := row.Scan(&w.Word, &w.RoomID, &w.UserID, &w.CreatedAt)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan words: %w", err)
	}
	return words, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Comment is a user comment on a song.
type Comment struct {
	ID        string    `json:"id"`
	MusicID   string    `json:"music_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxCommentLength caps comment bodies.
const MaxCommentLength = 1000

// CommentStore handles database operations for comments.
type CommentStore struct {
	pool *pgxpool.Pool
}

// NewCommentStore creates a new CommentStore.
func NewCommentStore(pool *pgxpool.Pool) *CommentStore {
	return &CommentStore{pool: pool}
}

// CreateComment attaches a comment to a song.
func (s *CommentStore) CreateComment(ctx context.Context, musicID, userID, content string) (*Comment, error) {
	var c Comment
	err := s.pool.QueryRow(ctx, `
		INSERT INTO comments (id, music_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, music_id, user_id, content, created_at`,
		uuid.NewString(), musicID, userID, content).
		Scan(&c.ID, &c.MusicID, &c.UserID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &c, nil
}

// ListByMusic returns a song's comments, newest first, with usernames joined
// in for display.
func (s *CommentStore) ListByMusic(ctx context.Context, musicID string) ([]Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.music_id, c.user_id, u.username, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.music_id = $1
		ORDER BY c.created_at DESC`, musicID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.MusicID, &c.UserID, &c.Username, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteComment removes a comment after checking the caller wrote it.
func (s *CommentStore) DeleteComment(ctx context.Context, id, userID string) error {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM comments WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("check comment owner: %w", err)
	}
	if owner != userID {
		return ErrNotOwner
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

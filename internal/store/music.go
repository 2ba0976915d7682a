package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Music is one song in the catalog. Duration is in seconds. Status 1 means
// published (playable in PK games), 0 hidden.
type Music struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	Type      string    `json:"type,omitempty"`
	URL       string    `json:"url"`
	Image     string    `json:"image,omitempty"`
	Duration  int       `json:"duration"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MusicStatusPublished marks songs eligible for listening and PK rounds.
const MusicStatusPublished = 1

// MusicStore handles database operations for the music catalog.
type MusicStore struct {
	pool *pgxpool.Pool
}

// NewMusicStore creates a new MusicStore.
func NewMusicStore(pool *pgxpool.Pool) *MusicStore {
	return &MusicStore{pool: pool}
}

const musicColumns = `id, name, author, type, url, image, duration, status, created_at, updated_at`

func scanMusic(row pgx.Row) (*Music, error) {
	var m Music
	if err := row.Scan(&m.ID, &m.Name, &m.Author, &m.Type, &m.URL, &m.Image, &m.Duration, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMusicRequest contains the fields for a new catalog entry.
type CreateMusicRequest struct {
	Name     string `json:"name"`
	Author   string `json:"author"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Image    string `json:"image"`
	Duration int    `json:"duration"`
	Status   int    `json:"status"`
}

// CreateMusic inserts a catalog entry.
func (s *MusicStore) CreateMusic(ctx context.Context, req CreateMusicRequest) (*Music, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO musics (id, name, author, type, url, image, duration, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+musicColumns,
		uuid.NewString(), req.Name, req.Author, req.Type, req.URL, req.Image, req.Duration, req.Status)
	m, err := scanMusic(row)
	if err != nil {
		return nil, fmt.Errorf("insert music: %w", err)
	}
	return m, nil
}

// GetMusic returns one catalog entry, or nil when not found.
func (s *MusicStore) GetMusic(ctx context.Context, id string) (*Music, error) {
	m, err := scanMusic(s.pool.QueryRow(ctx, `SELECT `+musicColumns+` FROM musics WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get music: %w", err)
	}
	return m, nil
}

// UpdateMusicRequest carries mutable catalog fields; nil means unchanged.
type UpdateMusicRequest struct {
	Name     *string `json:"name,omitempty"`
	Author   *string `json:"author,omitempty"`
	Type     *string `json:"type,omitempty"`
	URL      *string `json:"url,omitempty"`
	Image    *string `json:"image,omitempty"`
	Duration *int    `json:"duration,omitempty"`
	Status   *int    `json:"status,omitempty"`
}

// UpdateMusic applies a partial update; nil result means the id is unknown.
func (s *MusicStore) UpdateMusic(ctx context.Context, id string, req UpdateMusicRequest) (*Music, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE musics SET
			name       = COALESCE($2, name),
			author     = COALESCE($3, author),
			type       = COALESCE($4, type),
			url        = COALESCE($5, url),
			image      = COALESCE($6, image),
			duration   = COALESCE($7, duration),
			status     = COALESCE($8, status),
			updated_at = now()
		WHERE id = $1
		RETURNING `+musicColumns,
		id, req.Name, req.Author, req.Type, req.URL, req.Image, req.Duration, req.Status)
	m, err := scanMusic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update music: %w", err)
	}
	return m, nil
}

// DeleteMusic removes a catalog entry and its playlist memberships.
func (s *MusicStore) DeleteMusic(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM musics WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete music: %w", err)
	}
	return nil
}

// ListMusicFilter narrows ListMusic; zero values mean "any".
type ListMusicFilter struct {
	Name   string
	Author string
	Type   string
	Status *int
	Page   int
	Size   int
}

// ListMusic returns a filtered page of the catalog plus the unpaged total.
// Name and author match case-insensitively on substrings.
func (s *MusicStore) ListMusic(ctx context.Context, f ListMusicFilter) ([]Music, int, error) {
	page, size := normalizePage(f.Page, f.Size)

	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Name != "" {
		where = append(where, "name ILIKE "+arg("%"+f.Name+"%"))
	}
	if f.Author != "" {
		where = append(where, "author ILIKE "+arg("%"+f.Author+"%"))
	}
	if f.Type != "" {
		where = append(where, "type = "+arg(f.Type))
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(*f.Status))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM musics WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count musics: %w", err)
	}

	query := `SELECT ` + musicColumns + ` FROM musics WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT ` + arg(size) + ` OFFSET ` + arg((page-1)*size)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list musics: %w", err)
	}
	defer rows.Close()

	var out []Music
	for rows.Next() {
		m, err := scanMusic(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan music: %w", err)
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// Random returns one random published song, or nil when the catalog has
// none. Used by the PK engine to draw questions.
func (s *MusicStore) Random(ctx context.Context) (*Music, error) {
	m, err := scanMusic(s.pool.QueryRow(ctx, `
		SELECT `+musicColumns+` FROM musics
		WHERE status = $1
		ORDER BY random()
		LIMIT 1`, MusicStatusPublished))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("random music: %w", err)
	}
	return m, nil
}

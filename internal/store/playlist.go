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

// Playlist is a user-owned collection of songs.
type Playlist struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaylistDetail is a playlist plus its songs in added order.
type PlaylistDetail struct {
	Playlist
	Musics []Music `json:"musics"`
}

// ErrNotOwner is returned when a caller modifies a resource they do not own.
var ErrNotOwner = errors.New("resource belongs to another user")

// PlaylistStore handles database operations for playlists.
type PlaylistStore struct {
	pool *pgxpool.Pool
}

// NewPlaylistStore creates a new PlaylistStore.
func NewPlaylistStore(pool *pgxpool.Pool) *PlaylistStore {
	return &PlaylistStore{pool: pool}
}

const playlistColumns = `id, user_id, name, image, created_at, updated_at`

func scanPlaylist(row pgx.Row) (*Playlist, error) {
	var p Playlist
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (s *PlaylistStore) CreatePlaylist(ctx context.Context, userID, name, image string) (*Playlist, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO playlists (id, user_id, name, image)
		VALUES ($1, $2, $3, $4)
		RETURNING `+playlistColumns,
		uuid.NewString(), userID, name, image)
	p, err := scanPlaylist(row)
	if err != nil {
		return nil, fmt.Errorf("insert playlist: %w", err)
	}
	return p, nil
}

// ListByUser returns all playlists a user owns, newest first.
func (s *PlaylistStore) ListByUser(ctx context.Context, userID string) ([]Playlist, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playlistColumns+` FROM playlists
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var out []Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetDetail returns the playlist and its songs, or nil when not found.
func (s *PlaylistStore) GetDetail(ctx context.Context, id string) (*PlaylistDetail, error) {
	p, err := scanPlaylist(s.pool.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixedMusicColumns("m")+`
		FROM playlist_musics pm
		JOIN musics m ON m.id = pm.music_id
		WHERE pm.playlist_id = $1
		ORDER BY pm.added_at`, id)
	if err != nil {
		return nil, fmt.Errorf("list playlist musics: %w", err)
	}
	defer rows.Close()

	detail := &PlaylistDetail{Playlist: *p, Musics: []Music{}}
	for rows.Next() {
		m, err := scanMusic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist music: %w", err)
		}
		detail.Musics = append(detail.Musics, *m)
	}
	return detail, rows.Err()
}

// Rename updates the playlist's name/image after an ownership check.
func (s *PlaylistStore) Rename(ctx context.Context, id, userID string, name, image *string) (*Playlist, error) {
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE playlists SET
			name       = COALESCE($2, name),
			image      = COALESCE($3, image),
			updated_at = now()
		WHERE id = $1
		RETURNING `+playlistColumns,
		id, name, image)
	p, err := scanPlaylist(row)
	if err != nil {
		return nil, fmt.Errorf("update playlist: %w", err)
	}
	return p, nil
}

// Delete removes the playlist and its memberships after an ownership check.
func (s *PlaylistStore) Delete(ctx context.Context, id, userID string) error {
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

// AddMusic links a song into the playlist; re-adding is a no-op.
func (s *PlaylistStore) AddMusic(ctx context.Context, playlistID, userID, musicID string) error {
	if err := s.checkOwner(ctx, playlistID, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO playlist_musics (playlist_id, music_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, playlistID, musicID)
	if err != nil {
		return fmt.Errorf("add music to playlist: %w", err)
	}
	return nil
}

// RemoveMusic unlinks a song; absent links are not an error.
func (s *PlaylistStore) RemoveMusic(ctx context.Context, playlistID, userID, musicID string) error {
	if err := s.checkOwner(ctx, playlistID, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM playlist_musics WHERE playlist_id = $1 AND music_id = $2`, playlistID, musicID)
	if err != nil {
		return fmt.Errorf("remove music from playlist: %w", err)
	}
	return nil
}

func (s *PlaylistStore) checkOwner(ctx context.Context, id, userID string) error {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM playlists WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("check playlist owner: %w", err)
	}
	if owner != userID {
		return ErrNotOwner
	}
	return nil
}

// prefixedMusicColumns qualifies the shared music column list with a table
// alias for joins.
func prefixedMusicColumns(alias string) string {
	return alias + ".id, " + alias + ".name, " + alias + ".author, " + alias + ".type, " +
		alias + ".url, " + alias + ".image, " + alias + ".duration, " + alias + ".status, " +
		alias + ".created_at, " + alias + ".updated_at"
}

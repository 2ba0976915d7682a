package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestComments(t *testing.T) {
	pool := SetupTestDB(t)
	defer pool.Close()

	users := NewUserStore(pool)
	musics := NewMusicStore(pool)
	comments := NewCommentStore(pool)
	ctx := context.Background()

	author := seedUser(t, users, "commenter@example.com", "commenter")
	other := seedUser(t, users, "reader@example.com", "reader")
	song := seedMusic(t, musics, "Midnight Arcade", "Glass River", MusicStatusPublished)

	first, err := comments.CreateComment(ctx, song.ID, author.ID, "love this one")
	if err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	if first.ID == "" || first.MusicID != song.ID {
		t.Fatalf("unexpected comment %+v", first)
	}

	second, err := comments.CreateComment(ctx, song.ID, other.ID, "same")
	if err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	t.Run("list newest first with usernames", func(t *testing.T) {
		got, err := comments.ListByMusic(ctx, song.ID)
		if err != nil {
			t.Fatalf("ListByMusic failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 comments, got %d", len(got))
		}
		if got[0].ID != second.ID {
			t.Error("expected newest comment first")
		}
		if got[0].Username != "reader" || got[1].Username != "commenter" {
			t.Errorf("expected usernames joined in, got %q / %q", got[0].Username, got[1].Username)
		}
	})

	t.Run("delete by non-author", func(t *testing.T) {
		if err := comments.DeleteComment(ctx, first.ID, other.ID); !errors.Is(err, ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("delete by author", func(t *testing.T) {
		if err := comments.DeleteComment(ctx, first.ID, author.ID); err != nil {
			t.Fatalf("DeleteComment failed: %v", err)
		}
		got, err := comments.ListByMusic(ctx, song.ID)
		if err != nil {
			t.Fatalf("ListByMusic failed: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 comment after delete, got %d", len(got))
		}
	})

	t.Run("delete missing", func(t *testing.T) {
		if err := comments.DeleteComment(ctx, "no-such-id", author.ID); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("expected ErrNoRows, got %v", err)
		}
	})
}

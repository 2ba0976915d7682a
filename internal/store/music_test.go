package store

import (
	"context"
	"testing"
)

func seedMusic(t *testing.T, store *MusicStore, name, author string, status int) *Music {
	t.Helper()
	m, err := store.CreateMusic(context.Background(), CreateMusicRequest{
		Name:     name,
		Author:   author,
		Type:     "pop",
		URL:      "https://cdn.example.com/" + name + ".mp3",
		Duration: 30,
		Status:   status,
	})
	if err != nil {
		t.Fatalf("CreateMusic %s failed: %v", name, err)
	}
	return m
}

func TestMusicCRUD(t *testing.T) {
	pool := SetupTestDB(t)
	defer pool.Close()

	store := NewMusicStore(pool)
	ctx := context.Background()

	created := seedMusic(t, store, "Sunrise Boulevard", "The Larks", MusicStatusPublished)
	if created.ID == "" {
		t.Error("expected music ID to be set")
	}

	got, err := store.GetMusic(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMusic failed: %v", err)
	}
	if got == nil || got.Name != "Sunrise Boulevard" {
		t.Fatalf("unexpected music %+v", got)
	}

	newName := "Sunset Boulevard"
	updated, err := store.UpdateMusic(ctx, created.ID, UpdateMusicRequest{Name: &newName})
	if err != nil {
		t.Fatalf("UpdateMusic failed: %v", err)
	}
	if updated.Name != "Sunset Boulevard" {
		t.Errorf("expected updated name, got %q", updated.Name)
	}
	if updated.Author != "The Larks" {
		t.Errorf("expected author unchanged, got %q", updated.Author)
	}

	if err := store.DeleteMusic(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMusic failed: %v", err)
	}
	got, err = store.GetMusic(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMusic after delete failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestListMusicFilters(t *testing.T) {
	pool := SetupTestDB(t)
	defer pool.Close()

	store := NewMusicStore(pool)
	ctx := context.Background()

	seedMusic(t, store, "Paper Lanterns", "Glass River", MusicStatusPublished)
	seedMusic(t, store, "Midnight Arcade", "Glass River", 0)
	seedMusic(t, store, "Northern Line", "The Larks", MusicStatusPublished)

	t.Run("by author substring", func(t *testing.T) {
		musics, total, err := store.ListMusic(ctx, ListMusicFilter{Author: "glass"})
		if err != nil {
			t.Fatalf("ListMusic failed: %v", err)
		}
		if total != 2 || len(musics) != 2 {
			t.Errorf("expected 2 results, got total=%d len=%d", total, len(musics))
		}
	})

	t.Run("by status", func(t *testing.T) {
		published := MusicStatusPublished
		musics, total, err := store.ListMusic(ctx, ListMusicFilter{Status: &published})
		if err != nil {
			t.Fatalf("ListMusic failed: %v", err)
		}
		if total != 2 {
			t.Errorf("expected 2 published, got %d", total)
		}
		for _, m := range musics {
			if m.Status != MusicStatusPublished {
				t.Errorf("unexpected status %d for %s", m.Status, m.Name)
			}
		}
	})

	t.Run("pagination", func(t *testing.T) {
		musics, total, err := store.ListMusic(ctx, ListMusicFilter{Page: 2, Size: 2})
		if err != nil {
			t.Fatalf("ListMusic failed: %v", err)
		}
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
		if len(musics) != 1 {
			t.Errorf("expected 1 item on page 2, got %d", len(musics))
		}
	})
}

func TestRandomMusic(t *testing.T) {
	pool := SetupTestDB(t)
	defer pool.Close()

	store := NewMusicStore(pool)
	ctx := context.Background()

	t.Run("empty catalog", func(t *testing.T) {
		m, err := store.Random(ctx)
		if err != nil {
			t.Fatalf("Random failed: %v", err)
		}
		if m != nil {
			t.Error("expected nil from empty catalog")
		}
	})

	t.Run("only published songs", func(t *testing.T) {
		seedMusic(t, store, "Hidden Track", "Nobody", 0)
		published := seedMusic(t, store, "Glass River", "The Larks", MusicStatusPublished)

		for i := 0; i < 5; i++ {
			m, err := store.Random(ctx)
			if err != nil {
				t.Fatalf("Random failed: %v", err)
			}
			if m == nil || m.ID != published.ID {
				t.Fatalf("expected the published song, got %+v", m)
			}
		}
	})
}

package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelisound/songduel/internal/store"
)

// RoundQuestion is one playable question: a music clip plus the accepted
// answer. The answer never goes over the wire.
type RoundQuestion struct {
	MusicID  string
	MusicURL string
	Answer   string
	Duration int // seconds of clip to play
}

// wire shapes the question the way the legacy QUESTION_MUSIC payload looks:
// singular "totalRound", duration as a string.
func (q *RoundQuestion) wire(round, total int) map[string]any {
	return map[string]any{
		"musicUrl":   q.MusicURL,
		"musicId":    q.MusicID,
		"duration":   fmt.Sprintf("%d", q.Duration),
		"round":      round,
		"totalRound": total,
	}
}

// QuestionSource supplies questions for rounds.
type QuestionSource interface {
	Next(ctx context.Context) (*RoundQuestion, error)
}

// StaticSource cycles through a fixed question list. It backs development
// setups and tests that run without a database.
type StaticSource struct {
	mu        sync.Mutex
	questions []RoundQuestion
	next      int
}

// NewStaticSource copies qs; an empty list falls back to a tiny built-in set.
func NewStaticSource(qs []RoundQuestion) *StaticSource {
	if len(qs) == 0 {
		qs = builtinQuestions
	}
	return &StaticSource{questions: append([]RoundQuestion(nil), qs...)}
}

func (s *StaticSource) Next(_ context.Context) (*RoundQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.questions[s.next%len(s.questions)]
	s.next++
	return &q, nil
}

var builtinQuestions = []RoundQuestion{
	{MusicID: "demo-1", MusicURL: "https://cdn.songduel.dev/demo/clip1.mp3", Answer: "Sunrise Boulevard", Duration: 30},
	{MusicID: "demo-2", MusicURL: "https://cdn.songduel.dev/demo/clip2.mp3", Answer: "Paper Lanterns", Duration: 30},
	{MusicID: "demo-3", MusicURL: "https://cdn.songduel.dev/demo/clip3.mp3", Answer: "Midnight Arcade", Duration: 30},
	{MusicID: "demo-4", MusicURL: "https://cdn.songduel.dev/demo/clip4.mp3", Answer: "Glass River", Duration: 30},
	{MusicID: "demo-5", MusicURL: "https://cdn.songduel.dev/demo/clip5.mp3", Answer: "Northern Line", Duration: 30},
}

// StoreSource draws random published songs from the music store. The song
// name is the accepted answer.
type StoreSource struct {
	musics *store.MusicStore
}

// NewStoreSource creates a source backed by the music catalog.
func NewStoreSource(musics *store.MusicStore) *StoreSource {
	return &StoreSource{musics: musics}
}

func (s *StoreSource) Next(ctx context.Context) (*RoundQuestion, error) {
	m, err := s.musics.Random(ctx)
	if err != nil {
		return nil, fmt.Errorf("pick random music: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("music catalog is empty")
	}
	duration := m.Duration
	if duration <= 0 || duration > 60 {
		duration = 30
	}
	return &RoundQuestion{
		MusicID:  m.ID,
		MusicURL: m.URL,
		Answer:   m.Name,
		Duration: duration,
	}, nil
}

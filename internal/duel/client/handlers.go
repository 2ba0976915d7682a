package client

import (
	"encoding/json"
	"log"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

// registerProtocolHandlers wires one handler per known message type. Each
// handler touches only the projection fields its event is responsible for;
// everything else keeps its previous value.
func (s *Service) registerProtocolHandlers() {
	s.registry.Subscribe(protocol.TypeRoomJoined, s.handleRoomJoined)
	s.registry.Subscribe(protocol.TypePlayerJoined, s.handlePlayerJoined)
	s.registry.Subscribe(protocol.TypeMatchSuccess, s.handleMatchSuccess)
	s.registry.Subscribe(protocol.TypeGameStart, s.handleGameStart)
	s.registry.Subscribe(protocol.TypeQuestionMusic, s.handleQuestionMusic)
	s.registry.Subscribe(protocol.TypeAnswerResult, s.handleAnswerResult)
	s.registry.Subscribe(protocol.TypeAnswerResultTimeout, s.handleAnswerTimeout)
	s.registry.Subscribe(protocol.TypeGameNextRound, s.handleNextRound)
	s.registry.Subscribe(protocol.TypeGameEnd, s.handleGameEnd)
	s.registry.Subscribe(protocol.TypeGameOver, s.handleGameOver)
	s.registry.Subscribe(protocol.TypeError, s.handleError)
}

// decodePayload unmarshals a payload, logging and rejecting structural
// failures so one bad payload never stops the receive loop.
func decodePayload[T any](t protocol.MessageType, data json.RawMessage) (*T, bool) {
	var p T
	if len(data) == 0 {
		return &p, true
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("pk client: dropping %s payload: %v", t, err)
		return nil, false
	}
	return &p, true
}

// mutate runs fn with the projection write-locked, clearing any stale
// protocol error first (a successful event supersedes it).
func (s *Service) mutate(fn func(p *projection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proj.errText = ""
	fn(&s.proj)
}

// ROOM_JOINED replaces room, players, game state and round counters
// wholesale. Room state is never merged with a previous room.
func (s *Service) handleRoomJoined(data json.RawMessage) {
	p, ok := decodePayload[protocol.RoomJoinedPayload](protocol.TypeRoomJoined, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		room := p.Room
		proj.room = &room
		proj.players = room.Players
		proj.gameState = room.GameState
		proj.currentRound = room.CurrentRound
		proj.totalRounds = room.TotalRounds
	})
}

// PLAYER_JOINED replaces the player list wholesale.
func (s *Service) handlePlayerJoined(data json.RawMessage) {
	p, ok := decodePayload[protocol.PlayerJoinedPayload](protocol.TypePlayerJoined, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.players = p.Players
	})
}

// MATCH_SUCCESS means paired but not yet started.
func (s *Service) handleMatchSuccess(data json.RawMessage) {
	if _, ok := decodePayload[protocol.MatchSuccessPayload](protocol.TypeMatchSuccess, data); !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.gameState = protocol.GameWaiting
	})
}

func (s *Service) handleGameStart(data json.RawMessage) {
	p, ok := decodePayload[protocol.GameStartPayload](protocol.TypeGameStart, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.gameState = protocol.GamePlaying
		proj.currentRound = p.Round.Int()
	})
}

// QUESTION_MUSIC builds the current question with coercive defaults and
// supersedes the previous one wholesale.
func (s *Service) handleQuestionMusic(data json.RawMessage) {
	p, ok := decodePayload[protocol.QuestionMusicPayload](protocol.TypeQuestionMusic, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		q := questionFromPayload(p)
		proj.question = &q
		proj.currentRound = q.Round
		proj.totalRounds = q.TotalRounds
		proj.gameState = protocol.GamePlaying
	})
}

func questionFromPayload(p *protocol.QuestionMusicPayload) Question {
	return Question{
		MusicURL:    p.MusicURL,
		MusicID:     p.MusicID,
		Duration:    p.Duration.Or(DefaultQuestionDuration),
		Round:       p.Round.Or(DefaultRound),
		TotalRounds: p.TotalRound.Or(DefaultTotalRounds),
	}
}

// ANSWER_RESULT updates both players' cumulative scores. Round and phase do
// not advance here; that is GAME_NEXT_ROUND's job.
func (s *Service) handleAnswerResult(data json.RawMessage) {
	p, ok := decodePayload[protocol.AnswerResultPayload](protocol.TypeAnswerResult, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		if len(proj.players) >= 1 {
			proj.players[0].Score = p.ScoreFor(0)
		}
		if len(proj.players) >= 2 {
			proj.players[1].Score = p.ScoreFor(1)
		}
	})
}

// ANSWER_RESULT_TIMEOUT settles the round by timeout; back to WAITING until
// the next round arrives.
func (s *Service) handleAnswerTimeout(data json.RawMessage) {
	if _, ok := decodePayload[protocol.AnswerResultTimeoutPayload](protocol.TypeAnswerResultTimeout, data); !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.gameState = protocol.GameWaiting
	})
}

func (s *Service) handleNextRound(data json.RawMessage) {
	p, ok := decodePayload[protocol.NextRoundPayload](protocol.TypeGameNextRound, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.currentRound = p.Round.Int()
		q := questionFromPayload(&p.Question)
		proj.question = &q
	})
}

// GAME_END carries the final scoreboard as a player list.
func (s *Service) handleGameEnd(data json.RawMessage) {
	p, ok := decodePayload[protocol.GameEndPayload](protocol.TypeGameEnd, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.gameState = protocol.GameFinished
		proj.players = p.FinalScores
	})
}

// GAME_OVER is the legacy end-of-game shape with string-typed numerics.
func (s *Service) handleGameOver(data json.RawMessage) {
	p, ok := decodePayload[protocol.GameOverPayload](protocol.TypeGameOver, data)
	if !ok {
		return
	}
	s.mutate(func(proj *projection) {
		proj.gameState = protocol.GameFinished
		if len(proj.players) >= 1 {
			proj.players[0].Score = p.User1Score.Int()
		}
		if len(proj.players) >= 2 {
			proj.players[1].Score = p.User2Score.Int()
		}
		proj.currentRound = p.Round.Int()
		proj.totalRounds = p.TotalRound.Int()
	})
}

// ERROR surfaces the server's message verbatim. Game state is untouched; the
// next successful event clears the text.
func (s *Service) handleError(data json.RawMessage) {
	p, ok := decodePayload[protocol.ErrorPayload](protocol.TypeError, data)
	if !ok {
		return
	}
	s.mu.Lock()
	s.proj.errText = p.Message
	s.mu.Unlock()
}

package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

// Config tunes the PK game loop.
type Config struct {
	// TotalRounds per duel.
	TotalRounds int

	// ScorePerCorrect is added to a player's total for each correct answer.
	ScorePerCorrect int

	// AnswerWindow overrides the per-question duration when positive. Tests
	// use it to keep rounds short.
	AnswerWindow time.Duration
}

// DefaultConfig matches the legacy backend: five rounds, ten points per hit.
func DefaultConfig() Config {
	return Config{
		TotalRounds:     5,
		ScorePerCorrect: 10,
	}
}

// Engine pairs connected players into rooms and drives each room through its
// rounds. Pairing is strictly first-come-first-served; there is no ranking
// or matchmaking policy.
type Engine struct {
	hub       *Hub
	questions QuestionSource
	cfg       Config

	mu       sync.Mutex
	pending  *Client
	rooms    map[string]*room
	byClient map[*Client]*room
}

type duelPlayer struct {
	client   *Client
	id       string
	username string
	score    int
	ready    bool
	answered bool
	answer   string
	correct  bool
}

type room struct {
	id       string
	players  [2]*duelPlayer
	state    protocol.GameState
	round    int
	total    int
	question *RoundQuestion
	timer    *time.Timer
}

// NewEngine creates an engine drawing questions from source.
func NewEngine(hub *Hub, source QuestionSource, cfg Config) *Engine {
	if cfg.TotalRounds <= 0 {
		cfg.TotalRounds = DefaultConfig().TotalRounds
	}
	if cfg.ScorePerCorrect <= 0 {
		cfg.ScorePerCorrect = DefaultConfig().ScorePerCorrect
	}
	return &Engine{
		hub:       hub,
		questions: source,
		cfg:       cfg,
		rooms:     make(map[string]*room),
		byClient:  make(map[*Client]*room),
	}
}

// PlayerConnected pairs the client with a waiting opponent, or parks it until
// one arrives.
func (e *Engine) PlayerConnected(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil || e.pending == c {
		e.pending = c
		return
	}

	first := e.pending
	e.pending = nil

	r := &room{
		id:    uuid.NewString(),
		state: protocol.GameWaiting,
		total: e.cfg.TotalRounds,
	}
	r.players[0] = &duelPlayer{client: first, id: first.UserID, username: first.UserID}
	r.players[1] = &duelPlayer{client: c, id: c.UserID, username: c.UserID}
	e.rooms[r.id] = r
	e.byClient[first] = r
	e.byClient[c] = r

	e.hub.JoinRoom(first, r.id)
	e.hub.JoinRoom(c, r.id)

	log.Printf("pk game: matched room_id=%s user1=%s user2=%s", r.id, first.UserID, c.UserID)
	e.hub.Broadcast(r.id, protocol.TypeMatchSuccess, protocol.MatchSuccessPayload{Message: "opponent found"})
	e.hub.Broadcast(r.id, protocol.TypeRoomJoined, protocol.RoomJoinedPayload{Room: r.wire()})
}

// PlayerDisconnected tears down the player's room, if any, and informs the
// opponent. A waiting player simply leaves the queue.
func (e *Engine) PlayerDisconnected(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == c {
		e.pending = nil
		return
	}
	r, ok := e.byClient[c]
	if !ok {
		return
	}
	e.removeRoom(r)

	if r.state == protocol.GameFinished {
		return
	}
	r.state = protocol.GameFinished
	opponent := r.opponentOf(c)
	if opponent == nil {
		return
	}
	e.hub.SendTo(opponent.client, protocol.TypeError, protocol.ErrorPayload{Message: "opponent disconnected"})
	e.hub.SendTo(opponent.client, protocol.TypeGameOver, r.gameOverWire())
}

// HandleEnvelope processes one inbound envelope from a client.
func (e *Engine) HandleEnvelope(_ context.Context, c *Client, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeGameStart:
		e.handleReady(c)
	case protocol.TypeAnswerSubmit:
		p, err := decodeData[protocol.AnswerSubmitPayload](env)
		if err != nil {
			log.Printf("pk game: bad ANSWER_SUBMIT from user_id=%s: %v", c.UserID, err)
			return
		}
		e.handleAnswer(c, p.Answer)
	default:
		e.hub.SendTo(c, protocol.TypeError, protocol.ErrorPayload{Message: "unsupported message type"})
	}
}

func (e *Engine) handleReady(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.byClient[c]
	if !ok {
		e.hub.SendTo(c, protocol.TypeError, protocol.ErrorPayload{Message: "not in a room"})
		return
	}
	if r.state != protocol.GameWaiting || r.round > 0 {
		return
	}
	p := r.playerOf(c)
	if p == nil || p.ready {
		return
	}
	p.ready = true
	e.hub.Broadcast(r.id, protocol.TypePlayerJoined, protocol.PlayerJoinedPayload{Players: r.wirePlayers()})

	if r.players[0].ready && r.players[1].ready {
		e.startGame(r)
	}
}

// startGame flips the room to PLAYING and serves round one. Caller holds the
// engine lock.
func (e *Engine) startGame(r *room) {
	r.state = protocol.GamePlaying
	r.round = 1
	log.Printf("pk game: start room_id=%s rounds=%d", r.id, r.total)
	e.hub.Broadcast(r.id, protocol.TypeGameStart, map[string]int{"round": r.round})
	e.serveQuestion(r)
}

// serveQuestion draws the next question and arms the round timer. Caller
// holds the engine lock.
func (e *Engine) serveQuestion(r *room) {
	q, err := e.questions.Next(context.Background())
	if err != nil {
		log.Printf("pk game: no question for room_id=%s: %v", r.id, err)
		e.hub.Broadcast(r.id, protocol.TypeError, protocol.ErrorPayload{Message: "no questions available"})
		e.finishGame(r)
		return
	}
	r.question = q
	for _, p := range r.players {
		p.answered = false
		p.answer = ""
		p.correct = false
	}

	if r.round > 1 {
		e.hub.Broadcast(r.id, protocol.TypeGameNextRound, map[string]any{
			"round":    r.round,
			"question": q.wire(r.round, r.total),
		})
	}
	e.hub.Broadcast(r.id, protocol.TypeQuestionMusic, q.wire(r.round, r.total))

	window := e.cfg.AnswerWindow
	if window <= 0 {
		window = time.Duration(q.Duration) * time.Second
	}
	thisRound := r.round
	roomID := r.id
	r.timer = time.AfterFunc(window, func() { e.roundTimeout(roomID, thisRound) })
}

func (e *Engine) handleAnswer(c *Client, answer string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.byClient[c]
	if !ok {
		e.hub.SendTo(c, protocol.TypeError, protocol.ErrorPayload{Message: "not in a room"})
		return
	}
	if r.state != protocol.GamePlaying || r.question == nil {
		e.hub.SendTo(c, protocol.TypeError, protocol.ErrorPayload{Message: "no active round"})
		return
	}
	p := r.playerOf(c)
	if p == nil || p.answered {
		return
	}
	p.answered = true
	p.answer = answer
	p.correct = r.question.Matches(answer)
	if p.correct {
		p.score += e.cfg.ScorePerCorrect
	}

	if r.players[0].answered && r.players[1].answered {
		e.settleRound(r, false)
	}
}

func (e *Engine) roundTimeout(roomID string, round int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rooms[roomID]
	if !ok || r.round != round || r.state != protocol.GamePlaying || r.question == nil {
		return
	}
	e.settleRound(r, true)
}

// settleRound reports results and advances or finishes the game. Caller
// holds the engine lock.
func (e *Engine) settleRound(r *room, timedOut bool) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	q := r.question
	r.question = nil

	if timedOut {
		// Legacy shape: lowercase score keys, status 1 = answered in time.
		e.hub.Broadcast(r.id, protocol.TypeAnswerResultTimeout, map[string]any{
			"user1Status":   boolToInt(r.players[0].answered),
			"user2Status":   boolToInt(r.players[1].answered),
			"isCorrect":     false,
			"user1score":    r.players[0].score,
			"user2score":    r.players[1].score,
			"userAnswer":    "",
			"correctAnswer": q.Answer,
			"round":         r.round,
		})
	} else {
		// Per-player result; score totals carried as strings, as the legacy
		// backend sends them.
		for _, p := range r.players {
			e.hub.SendTo(p.client, protocol.TypeAnswerResult, map[string]any{
				"isCorrect":     p.correct,
				"correctAnswer": q.Answer,
				"userAnswer":    p.answer,
				"round":         r.round,
				"user1Score":    strconv.Itoa(r.players[0].score),
				"user2Score":    strconv.Itoa(r.players[1].score),
			})
		}
	}

	if r.round >= r.total {
		e.finishGame(r)
		return
	}
	r.round++
	e.serveQuestion(r)
}

// finishGame reports final scores and forgets the room. Caller holds the
// engine lock.
func (e *Engine) finishGame(r *room) {
	r.state = protocol.GameFinished
	log.Printf("pk game: over room_id=%s score1=%d score2=%d", r.id, r.players[0].score, r.players[1].score)
	e.hub.Broadcast(r.id, protocol.TypeGameEnd, protocol.GameEndPayload{FinalScores: r.wirePlayers()})
	e.hub.Broadcast(r.id, protocol.TypeGameOver, r.gameOverWire())
	e.removeRoom(r)
}

// removeRoom drops bookkeeping for a room. Caller holds the engine lock.
func (e *Engine) removeRoom(r *room) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	delete(e.rooms, r.id)
	for _, p := range r.players {
		if p != nil {
			delete(e.byClient, p.client)
		}
	}
}

func (r *room) playerOf(c *Client) *duelPlayer {
	for _, p := range r.players {
		if p != nil && p.client == c {
			return p
		}
	}
	return nil
}

func (r *room) opponentOf(c *Client) *duelPlayer {
	for _, p := range r.players {
		if p != nil && p.client != c {
			return p
		}
	}
	return nil
}

func (r *room) wirePlayers() []protocol.Player {
	out := make([]protocol.Player, 0, 2)
	for _, p := range r.players {
		if p == nil {
			continue
		}
		out = append(out, protocol.Player{
			ID:       p.id,
			Username: p.username,
			Score:    p.score,
			IsReady:  p.ready,
		})
	}
	return out
}

func (r *room) wire() protocol.Room {
	return protocol.Room{
		RoomID:       r.id,
		Players:      r.wirePlayers(),
		GameState:    r.state,
		CurrentRound: r.round,
		TotalRounds:  r.total,
	}
}

// gameOverWire builds the legacy GAME_OVER payload: all numerics stringly.
func (r *room) gameOverWire() map[string]string {
	return map[string]string{
		"room":       r.id,
		"round":      strconv.Itoa(r.round),
		"user1Score": strconv.Itoa(r.players[0].score),
		"user2Score": strconv.Itoa(r.players[1].score),
		"totalRound": strconv.Itoa(r.total),
	}
}

func decodeData[T any](env *protocol.Envelope) (*T, error) {
	var p T
	if len(env.Data) == 0 {
		return &p, nil
	}
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Matches compares a submitted answer against the question's, ignoring case
// and surrounding whitespace.
func (q *RoundQuestion) Matches(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer))
}

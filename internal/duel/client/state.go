package client

import "github.com/kelisound/songduel/internal/duel/protocol"

// Status is the lifecycle state of the PK connection.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
	StatusError        Status = "ERROR"
)

// Question is the current round's question as seen by the UI.
type Question struct {
	MusicURL    string
	MusicID     string
	Duration    int // seconds
	Round       int
	TotalRounds int
}

// Defaults applied when the server omits or mangles question fields.
const (
	DefaultQuestionDuration = 30
	DefaultRound            = 1
	DefaultTotalRounds      = 5
)

// Snapshot is a point-in-time copy of the game state projection. Every field
// holds only the most recently processed inbound event; no history is kept.
type Snapshot struct {
	Status       Status
	Room         *protocol.Room
	Players      []protocol.Player
	Question     *Question
	GameState    protocol.GameState
	CurrentRound int
	TotalRounds  int
	Err          string
}

// projection holds the observable fields. Mutated only by the protocol
// handlers on the dispatch path; read through Snapshot copies.
type projection struct {
	status       Status
	room         *protocol.Room
	players      []protocol.Player
	question     *Question
	gameState    protocol.GameState
	currentRound int
	totalRounds  int
	errText      string
}

func newProjection() projection {
	return projection{
		status:      StatusDisconnected,
		gameState:   protocol.GameWaiting,
		totalRounds: DefaultTotalRounds,
	}
}

// reset returns every game field to its initial value. Connection status is
// managed separately by the transport lifecycle.
func (p *projection) reset() {
	p.room = nil
	p.players = nil
	p.question = nil
	p.gameState = protocol.GameWaiting
	p.currentRound = 0
	p.totalRounds = DefaultTotalRounds
	p.errText = ""
}

func (p *projection) snapshot() Snapshot {
	s := Snapshot{
		Status:       p.status,
		GameState:    p.gameState,
		CurrentRound: p.currentRound,
		TotalRounds:  p.totalRounds,
		Err:          p.errText,
	}
	if p.room != nil {
		room := *p.room
		room.Players = append([]protocol.Player(nil), p.room.Players...)
		s.Room = &room
	}
	if p.players != nil {
		s.Players = append([]protocol.Player(nil), p.players...)
	}
	if p.question != nil {
		q := *p.question
		s.Question = &q
	}
	return s
}

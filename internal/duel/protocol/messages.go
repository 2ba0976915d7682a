// Package protocol defines the wire protocol for the song-duel PK battle:
// the JSON envelope exchanged over the WebSocket, the closed set of message
// type tags, and the typed payload for each tag.
//
// The legacy backend is inconsistent about field typing (numbers sometimes
// arrive as strings, QUESTION_MUSIC and GAME_OVER use the singular key
// "totalRound"). The payload types here absorb those quirks so the rest of
// the system never sees them.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags an envelope. The set is closed; unknown tags are dropped
// by the dispatcher, not rejected.
type MessageType string

const (
	// Connection lifecycle (reserved; the server does not currently emit them).
	TypeConnect    MessageType = "CONNECT"
	TypeDisconnect MessageType = "DISCONNECT"

	// Room and matching.
	TypeJoinRoom     MessageType = "JOIN_ROOM" // reserved
	TypeRoomJoined   MessageType = "ROOM_JOINED"
	TypePlayerJoined MessageType = "PLAYER_JOINED"
	TypeMatchSuccess MessageType = "MATCH_SUCCESS"

	// Game phase.
	TypeGameStart     MessageType = "GAME_START"
	TypeGameWaiting   MessageType = "GAME_WAITING" // reserved
	TypeGameNextRound MessageType = "GAME_NEXT_ROUND"
	TypeGameEnd       MessageType = "GAME_END"
	TypeGameOver      MessageType = "GAME_OVER"

	// Questions and answers.
	TypeQuestionMusic       MessageType = "QUESTION_MUSIC"
	TypeAnswerSubmit        MessageType = "ANSWER_SUBMIT"
	TypeAnswerResult        MessageType = "ANSWER_RESULT"
	TypeAnswerResultTimeout MessageType = "ANSWER_RESULT_TIMEOUT"

	TypeError MessageType = "ERROR"
)

// GameState is the coarse phase of a PK room.
type GameState string

const (
	GameWaiting  GameState = "WAITING"
	GamePlaying  GameState = "PLAYING"
	GameFinished GameState = "FINISHED"
)

// Envelope is the unit of wire communication. Data stays raw until the
// receiver knows which payload type the tag calls for.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp,omitempty"`
	UserID    string          `json:"userId,omitempty"`
}

// Encode builds a wire message from a type tag and payload. The payload is
// marshaled as-is; shape correctness is the caller's responsibility.
func Encode(t MessageType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	env := Envelope{
		Type:      t,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", t, err)
	}
	return out, nil
}

// Decode parses a raw inbound wire message into an Envelope.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &env, nil
}

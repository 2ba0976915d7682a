package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a numeric string. Anything that cannot be
// parsed decodes to 0 instead of failing, so a malformed field never aborts
// payload decoding.
type FlexInt int

// UnmarshalJSON never returns an error; bad input coerces to 0.
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(n)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(int(v))
		return nil
	}
	*f = 0
	return nil
}

func (f FlexInt) Int() int { return int(f) }

// Or returns def when the value is missing or non-positive. Matches the
// legacy client, where parseInt(x) || def treats 0 the same as unparsable.
func (f *FlexInt) Or(def int) int {
	if f == nil || *f <= 0 {
		return def
	}
	return int(*f)
}

// Player is one of the two participants in a PK room. Index order in a room's
// player list is significant: position 0 is "local", position 1 "opponent"
// for per-user score fields.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	IsReady  bool   `json:"isReady"`
	Avatar   string `json:"avatar,omitempty"`
}

// Room identifies a paired game session.
type Room struct {
	RoomID       string    `json:"roomId"`
	Players      []Player  `json:"players"`
	GameState    GameState `json:"gameState"`
	CurrentRound int       `json:"currentRound"`
	TotalRounds  int       `json:"totalRounds"`
}

// RoomJoinedPayload carries the full room snapshot; it replaces local room
// state wholesale.
type RoomJoinedPayload struct {
	Room Room `json:"room"`
}

// PlayerJoinedPayload replaces the player list wholesale.
type PlayerJoinedPayload struct {
	Players []Player `json:"players"`
}

// MatchSuccessPayload announces a successful pairing; the game has not
// started yet.
type MatchSuccessPayload struct {
	Message string `json:"message"`
}

// GameStartPayload signals the shift to PLAYING.
type GameStartPayload struct {
	Round FlexInt `json:"round"`
}

// QuestionMusicPayload is a round's question. Duration, Round and TotalRound
// are pointers so that absent fields fall back to their documented defaults
// (30s, round 1, 5 rounds). Note the singular "totalRound" key.
type QuestionMusicPayload struct {
	MusicURL   string   `json:"musicUrl"`
	MusicID    string   `json:"musicId"`
	Duration   *FlexInt `json:"duration"`
	Round      *FlexInt `json:"round"`
	TotalRound *FlexInt `json:"totalRound"`
}

// AnswerSubmitPayload is the client's answer for the current round.
type AnswerSubmitPayload struct {
	Answer string `json:"answer"`
}

// AnswerResultPayload settles one player's answer. Per-user score fields may
// be absent, in which case the shared Score applies; absent both, the score
// is 0.
type AnswerResultPayload struct {
	IsCorrect     bool     `json:"isCorrect"`
	CorrectAnswer string   `json:"correctAnswer"`
	UserAnswer    string   `json:"userAnswer"`
	Round         FlexInt  `json:"round"`
	Score         *FlexInt `json:"score"`
	User1Score    *FlexInt `json:"user1Score"`
	User2Score    *FlexInt `json:"user2Score"`
}

// ScoreFor resolves the cumulative score for player index 0 or 1, applying
// the per-user → shared → zero fallback chain.
func (p *AnswerResultPayload) ScoreFor(idx int) int {
	var per *FlexInt
	switch idx {
	case 0:
		per = p.User1Score
	case 1:
		per = p.User2Score
	}
	if per != nil {
		return per.Int()
	}
	if p.Score != nil {
		return p.Score.Int()
	}
	return 0
}

// AnswerResultTimeoutPayload settles a round that ran out its answer window.
type AnswerResultTimeoutPayload struct {
	User1Status   FlexInt `json:"user1Status"`
	User2Status   FlexInt `json:"user2Status"`
	IsCorrect     bool    `json:"isCorrect"`
	User1Score    FlexInt `json:"user1score"`
	User2Score    FlexInt `json:"user2score"`
	UserAnswer    string  `json:"userAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	Round         FlexInt `json:"round"`
}

// NextRoundPayload advances the round counter and supersedes the current
// question wholesale.
type NextRoundPayload struct {
	Round    FlexInt              `json:"round"`
	Question QuestionMusicPayload `json:"question"`
}

// GameEndPayload carries the final scoreboard.
type GameEndPayload struct {
	FinalScores []Player `json:"finalScores"`
}

// GameOverPayload is the legacy end-of-game shape: every numeric field is a
// string on the wire.
type GameOverPayload struct {
	Room       string  `json:"room"`
	Round      FlexInt `json:"round"`
	User1Score FlexInt `json:"user1Score"`
	User2Score FlexInt `json:"user2Score"`
	TotalRound FlexInt `json:"totalRound"`
}

// ErrorPayload is a server-reported protocol error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NormalizeType maps a raw tag to its canonical form. The backend has sent
// both "GAME_OVER" and "gameOver" spellings historically; comparison is
// case-insensitive on the underscore-stripped form.
func NormalizeType(raw string) MessageType {
	t := MessageType(raw)
	switch t {
	case TypeConnect, TypeDisconnect, TypeJoinRoom, TypeRoomJoined,
		TypePlayerJoined, TypeMatchSuccess, TypeGameStart, TypeGameWaiting,
		TypeGameNextRound, TypeGameEnd, TypeGameOver, TypeQuestionMusic,
		TypeAnswerSubmit, TypeAnswerResult, TypeAnswerResultTimeout, TypeError:
		return t
	}
	canon := strings.ToUpper(strings.ReplaceAll(raw, "_", ""))
	for _, known := range []MessageType{
		TypeConnect, TypeDisconnect, TypeJoinRoom, TypeRoomJoined,
		TypePlayerJoined, TypeMatchSuccess, TypeGameStart, TypeGameWaiting,
		TypeGameNextRound, TypeGameEnd, TypeGameOver, TypeQuestionMusic,
		TypeAnswerSubmit, TypeAnswerResult, TypeAnswerResultTimeout, TypeError,
	} {
		if canon == strings.ToUpper(strings.ReplaceAll(string(known), "_", "")) {
			return known
		}
	}
	return t
}

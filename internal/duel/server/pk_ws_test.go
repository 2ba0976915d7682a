package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	wsgorilla "github.com/gorilla/websocket"

	"github.com/kelisound/songduel/internal/duel/protocol"
	"github.com/kelisound/songduel/internal/duel/server"
	"github.com/kelisound/songduel/internal/ratelimit"
)

// setupPKServer starts an httptest server exposing /ws/pk/{userId} backed by
// a static question source.
func setupPKServer(t *testing.T, cfg server.Config, qs []server.RoundQuestion, limiter ratelimit.Limiter) *httptest.Server {
	t.Helper()
	hub := server.NewHub(nil)
	engine := server.NewEngine(hub, server.NewStaticSource(qs), cfg)
	hub.SetEngine(engine)
	go hub.Run()

	r := chi.NewRouter()
	wsHandler := server.NewWSHandler(hub, limiter)
	r.Get("/ws/pk/{userId}", wsHandler.HandlePK)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// serverWSURL converts httptest.Server URL to ws URL.
func serverWSURL(srv *httptest.Server, path string) string {
	return "ws" + srv.URL[4:] + path
}

func dialPK(t *testing.T, srv *httptest.Server, userID string) *wsgorilla.Conn {
	t.Helper()
	conn, _, err := wsgorilla.DefaultDialer.Dial(serverWSURL(srv, "/ws/pk/"+userID), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// expectEnvelope reads the next frame and asserts its type.
func expectEnvelope(t *testing.T, conn *wsgorilla.Conn, want protocol.MessageType) *protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read waiting for %s: %v", want, err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode waiting for %s: %v", want, err)
	}
	if env.Type != want {
		t.Fatalf("expected %s, got %s (data %s)", want, env.Type, env.Data)
	}
	return env
}

func sendEnvelope(t *testing.T, conn *wsgorilla.Conn, typ protocol.MessageType, data any) {
	t.Helper()
	msg := map[string]any{"type": string(typ)}
	if data != nil {
		msg["data"] = data
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

var testQuestions = []server.RoundQuestion{
	{MusicID: "q1", MusicURL: "https://cdn.test/q1.mp3", Answer: "alpha", Duration: 30},
	{MusicID: "q2", MusicURL: "https://cdn.test/q2.mp3", Answer: "beta", Duration: 30},
}

// TestPK_MatchAndRoomJoined: two players connect and both receive
// MATCH_SUCCESS followed by ROOM_JOINED with a two-player WAITING room.
func TestPK_MatchAndRoomJoined(t *testing.T) {
	srv := setupPKServer(t, server.Config{TotalRounds: 2, ScorePerCorrect: 10}, testQuestions, nil)
	conn1 := dialPK(t, srv, "u1")
	conn2 := dialPK(t, srv, "u2")

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeMatchSuccess)
		env := expectEnvelope(t, conn, protocol.TypeRoomJoined)

		var payload protocol.RoomJoinedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("decode room: %v", err)
		}
		if payload.Room.RoomID == "" {
			t.Error("room id empty")
		}
		if len(payload.Room.Players) != 2 {
			t.Fatalf("expected 2 players, got %d", len(payload.Room.Players))
		}
		if payload.Room.GameState != protocol.GameWaiting {
			t.Errorf("expected WAITING, got %s", payload.Room.GameState)
		}
		if payload.Room.TotalRounds != 2 {
			t.Errorf("expected 2 total rounds, got %d", payload.Room.TotalRounds)
		}
	}
}

// TestPK_FullGame drives a two-round duel: both ready up, answer each round,
// and receive GAME_END plus the stringly GAME_OVER payload.
func TestPK_FullGame(t *testing.T) {
	srv := setupPKServer(t, server.Config{TotalRounds: 2, ScorePerCorrect: 10}, testQuestions, nil)
	conn1 := dialPK(t, srv, "u1")
	conn2 := dialPK(t, srv, "u2")

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeMatchSuccess)
		expectEnvelope(t, conn, protocol.TypeRoomJoined)
	}

	// First ready: one PLAYER_JOINED broadcast.
	sendEnvelope(t, conn1, protocol.TypeGameStart, nil)
	expectEnvelope(t, conn1, protocol.TypePlayerJoined)
	expectEnvelope(t, conn2, protocol.TypePlayerJoined)

	// Second ready: PLAYER_JOINED, then the game starts.
	sendEnvelope(t, conn2, protocol.TypeGameStart, nil)
	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		env := expectEnvelope(t, conn, protocol.TypePlayerJoined)
		var payload protocol.PlayerJoinedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("decode players: %v", err)
		}
		for _, p := range payload.Players {
			if !p.IsReady {
				t.Errorf("player %s not ready", p.ID)
			}
		}

		env = expectEnvelope(t, conn, protocol.TypeGameStart)
		var start protocol.GameStartPayload
		if err := json.Unmarshal(env.Data, &start); err != nil {
			t.Fatalf("decode game start: %v", err)
		}
		if start.Round.Int() != 1 {
			t.Errorf("expected round 1, got %d", start.Round.Int())
		}

		env = expectEnvelope(t, conn, protocol.TypeQuestionMusic)
		var q protocol.QuestionMusicPayload
		if err := json.Unmarshal(env.Data, &q); err != nil {
			t.Fatalf("decode question: %v", err)
		}
		if q.MusicURL != "https://cdn.test/q1.mp3" {
			t.Errorf("unexpected music url %s", q.MusicURL)
		}
		if q.TotalRound == nil || q.TotalRound.Int() != 2 {
			t.Error("expected totalRound 2")
		}
	}

	// Round 1: u1 correct, u2 wrong.
	sendEnvelope(t, conn1, protocol.TypeAnswerSubmit, protocol.AnswerSubmitPayload{Answer: "ALPHA "})
	sendEnvelope(t, conn2, protocol.TypeAnswerSubmit, protocol.AnswerSubmitPayload{Answer: "nope"})

	env := expectEnvelope(t, conn1, protocol.TypeAnswerResult)
	var result protocol.AnswerResultPayload
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.IsCorrect {
		t.Error("expected correct answer for u1")
	}
	if result.CorrectAnswer != "alpha" {
		t.Errorf("expected correct answer alpha, got %s", result.CorrectAnswer)
	}
	if got := result.ScoreFor(0); got != 10 {
		t.Errorf("expected u1 score 10, got %d", got)
	}
	if got := result.ScoreFor(1); got != 0 {
		t.Errorf("expected u2 score 0, got %d", got)
	}
	expectEnvelope(t, conn2, protocol.TypeAnswerResult)

	// Round 2 is announced with GAME_NEXT_ROUND before the question.
	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeGameNextRound)
		env := expectEnvelope(t, conn, protocol.TypeQuestionMusic)
		var q protocol.QuestionMusicPayload
		if err := json.Unmarshal(env.Data, &q); err != nil {
			t.Fatalf("decode question 2: %v", err)
		}
		if q.Round == nil || q.Round.Int() != 2 {
			t.Error("expected round 2")
		}
	}

	sendEnvelope(t, conn1, protocol.TypeAnswerSubmit, protocol.AnswerSubmitPayload{Answer: "beta"})
	sendEnvelope(t, conn2, protocol.TypeAnswerSubmit, protocol.AnswerSubmitPayload{Answer: "beta"})
	expectEnvelope(t, conn1, protocol.TypeAnswerResult)
	expectEnvelope(t, conn2, protocol.TypeAnswerResult)

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		env := expectEnvelope(t, conn, protocol.TypeGameEnd)
		var end protocol.GameEndPayload
		if err := json.Unmarshal(env.Data, &end); err != nil {
			t.Fatalf("decode game end: %v", err)
		}
		if len(end.FinalScores) != 2 {
			t.Fatalf("expected 2 final scores, got %d", len(end.FinalScores))
		}
		if end.FinalScores[0].Score != 20 || end.FinalScores[1].Score != 10 {
			t.Errorf("unexpected final scores %d/%d", end.FinalScores[0].Score, end.FinalScores[1].Score)
		}

		env = expectEnvelope(t, conn, protocol.TypeGameOver)
		var over protocol.GameOverPayload
		if err := json.Unmarshal(env.Data, &over); err != nil {
			t.Fatalf("decode game over: %v", err)
		}
		if over.User1Score.Int() != 20 || over.User2Score.Int() != 10 {
			t.Errorf("unexpected game over scores %d/%d", over.User1Score.Int(), over.User2Score.Int())
		}
		if over.TotalRound.Int() != 2 {
			t.Errorf("expected totalRound 2, got %d", over.TotalRound.Int())
		}
	}
}

// TestPK_RoundTimeout: nobody answers within the window; both receive
// ANSWER_RESULT_TIMEOUT and the game moves on to its end.
func TestPK_RoundTimeout(t *testing.T) {
	cfg := server.Config{TotalRounds: 1, ScorePerCorrect: 10, AnswerWindow: 150 * time.Millisecond}
	srv := setupPKServer(t, cfg, testQuestions, nil)
	conn1 := dialPK(t, srv, "u1")
	conn2 := dialPK(t, srv, "u2")

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeMatchSuccess)
		expectEnvelope(t, conn, protocol.TypeRoomJoined)
	}
	sendEnvelope(t, conn1, protocol.TypeGameStart, nil)
	sendEnvelope(t, conn2, protocol.TypeGameStart, nil)

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypePlayerJoined)
		expectEnvelope(t, conn, protocol.TypePlayerJoined)
		expectEnvelope(t, conn, protocol.TypeGameStart)
		expectEnvelope(t, conn, protocol.TypeQuestionMusic)

		env := expectEnvelope(t, conn, protocol.TypeAnswerResultTimeout)
		var timeout protocol.AnswerResultTimeoutPayload
		if err := json.Unmarshal(env.Data, &timeout); err != nil {
			t.Fatalf("decode timeout: %v", err)
		}
		if timeout.CorrectAnswer != "alpha" {
			t.Errorf("expected correct answer alpha, got %s", timeout.CorrectAnswer)
		}

		expectEnvelope(t, conn, protocol.TypeGameEnd)
		expectEnvelope(t, conn, protocol.TypeGameOver)
	}
}

// TestPK_OpponentDisconnect: one player drops mid-game; the other receives
// ERROR then GAME_OVER.
func TestPK_OpponentDisconnect(t *testing.T) {
	srv := setupPKServer(t, server.Config{TotalRounds: 2, ScorePerCorrect: 10}, testQuestions, nil)
	conn1 := dialPK(t, srv, "u1")
	conn2 := dialPK(t, srv, "u2")

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeMatchSuccess)
		expectEnvelope(t, conn, protocol.TypeRoomJoined)
	}

	conn2.Close()

	env := expectEnvelope(t, conn1, protocol.TypeError)
	var errPayload protocol.ErrorPayload
	if err := json.Unmarshal(env.Data, &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errPayload.Message != "opponent disconnected" {
		t.Errorf("unexpected error message %q", errPayload.Message)
	}
	expectEnvelope(t, conn1, protocol.TypeGameOver)
}

// TestPK_UnsupportedType: unknown inbound types get an ERROR back without
// killing the connection.
func TestPK_UnsupportedType(t *testing.T) {
	srv := setupPKServer(t, server.Config{}, testQuestions, nil)
	conn1 := dialPK(t, srv, "u1")
	conn2 := dialPK(t, srv, "u2")

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeMatchSuccess)
		expectEnvelope(t, conn, protocol.TypeRoomJoined)
	}

	sendEnvelope(t, conn1, protocol.MessageType("BOGUS"), nil)
	env := expectEnvelope(t, conn1, protocol.TypeError)
	var errPayload protocol.ErrorPayload
	if err := json.Unmarshal(env.Data, &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errPayload.Message != "unsupported message type" {
		t.Errorf("unexpected error message %q", errPayload.Message)
	}

	// Connection still usable.
	sendEnvelope(t, conn1, protocol.TypeGameStart, nil)
	expectEnvelope(t, conn1, protocol.TypePlayerJoined)
}

// TestPK_ConnectRateLimited: the second handshake from the same IP is
// rejected with 429 when the limiter allows only one.
func TestPK_ConnectRateLimited(t *testing.T) {
	srv := setupPKServer(t, server.Config{}, testQuestions, ratelimit.NewInMemory(1, time.Minute))

	// Pin the limiter key: RemoteAddr carries a fresh port per connection.
	header := http.Header{"X-Real-IP": []string{"203.0.113.7"}}
	conn, _, err := wsgorilla.DefaultDialer.Dial(serverWSURL(srv, "/ws/pk/u1"), header)
	if err != nil {
		t.Fatalf("dial u1: %v", err)
	}
	defer conn.Close()

	_, resp, err := wsgorilla.DefaultDialer.Dial(serverWSURL(srv, "/ws/pk/u2"), header)
	if err == nil {
		t.Fatal("expected dial failure when rate limited")
	}
	if resp == nil || resp.StatusCode != 429 {
		t.Fatalf("expected 429 response, got %+v", resp)
	}
}

// TestPK_MalformedFrameSkipped: a frame that fails to decode is dropped and
// the next valid frame is still processed.
func TestPK_MalformedFrameSkipped(t *testing.T) {
	srv := setupPKServer(t, server.Config{}, testQuestions, nil)
	conn1 := dialPK(t, srv, "u1")
	conn2 := dialPK(t, srv, "u2")

	for _, conn := range []*wsgorilla.Conn{conn1, conn2} {
		expectEnvelope(t, conn, protocol.TypeMatchSuccess)
		expectEnvelope(t, conn, protocol.TypeRoomJoined)
	}

	if err := conn1.WriteMessage(wsgorilla.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}
	sendEnvelope(t, conn1, protocol.TypeGameStart, nil)
	expectEnvelope(t, conn1, protocol.TypePlayerJoined)
}

// Package client implements the PK battle client: one WebSocket connection
// to the song-duel server, a typed-envelope dispatch registry, and the game
// state projection a UI reads.
//
// All inbound protocol handling runs on the connection's single read
// goroutine, so handlers never race each other. Other goroutines observe
// state through Snapshot copies.
package client

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

// ErrNotConnected is returned by Send when no live connection exists. The
// message is dropped, never queued.
var ErrNotConnected = errors.New("pk client: not connected")

// ErrSuperseded is returned when a concurrent Connect replaced this attempt.
var ErrSuperseded = errors.New("pk client: connection superseded")

// Service owns the PK connection and game state. One Service holds at most
// one live transport; reconnecting is always explicit, never automatic.
type Service struct {
	baseURL string
	dialer  Dialer

	registry *Registry

	mu        sync.RWMutex
	transport Transport
	gen       uint64 // bumped on every connect/disconnect; stale callbacks check it
	proj      projection
}

// Option configures a Service.
type Option func(*Service)

// WithDialer substitutes the transport dialer (used by tests).
func WithDialer(d Dialer) Option {
	return func(s *Service) { s.dialer = d }
}

// New creates a Service for the given base endpoint, e.g.
// "ws://localhost:9527/ws/pk". The per-user path segment is appended by
// Connect.
func New(baseURL string, opts ...Option) *Service {
	s := &Service{
		baseURL:  strings.TrimRight(baseURL, "/"),
		dialer:   NewWSDialer(),
		registry: NewRegistry(),
		proj:     newProjection(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerProtocolHandlers()
	return s
}

// Connect opens the connection for userID. It returns once the transport
// reports open, or with the transport's error if the dial fails. Calling
// Connect while already connected tears down the previous transport first,
// so inbound messages are never delivered twice.
//
// There is no timeout here beyond what ctx carries; callers that need a
// bound pass a context with a deadline.
func (s *Service) Connect(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.gen++
	gen := s.gen
	s.proj.status = StatusConnecting
	s.mu.Unlock()

	url := s.baseURL + "/" + userID
	t, err := s.dialer.Dial(ctx, url, Callbacks{
		OnOpen:    func() { s.onOpen(gen) },
		OnMessage: func(data []byte) { s.onMessage(gen, data) },
		OnClose:   func() { s.onClose(gen) },
		OnError:   func(err error) { s.onError(gen, err) },
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		t.Close()
		return ErrSuperseded
	}
	s.transport = t
	s.mu.Unlock()
	return nil
}

// Disconnect closes the connection if one exists and unconditionally resets
// the projection: room, players, question and error text cleared, game state
// back to WAITING. Idempotent.
func (s *Service) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.gen++ // discard any in-flight callbacks from the old transport
	s.proj.status = StatusDisconnected
	s.proj.reset()
}

// Send encodes and transmits one envelope. When the connection is not in
// CONNECTED state the message is logged and dropped; nothing is ever queued
// for later delivery.
func (s *Service) Send(t protocol.MessageType, data any) error {
	s.mu.RLock()
	transport := s.transport
	status := s.proj.status
	s.mu.RUnlock()

	if transport == nil || status != StatusConnected {
		log.Printf("pk client: dropping %s, not connected (status=%s)", t, status)
		return ErrNotConnected
	}
	raw, err := protocol.Encode(t, data)
	if err != nil {
		log.Printf("pk client: encode %s: %v", t, err)
		return err
	}
	if err := transport.Send(raw); err != nil {
		log.Printf("pk client: send %s: %v", t, err)
		return err
	}
	return nil
}

// SubmitAnswer sends the answer for the current round. Local state does not
// change until the server's ANSWER_RESULT arrives; scoring stays server-side.
func (s *Service) SubmitAnswer(answer string) {
	_ = s.Send(protocol.TypeAnswerSubmit, protocol.AnswerSubmitPayload{Answer: answer})
}

// ReadyGame signals readiness. The phase flips only when the server echoes
// GAME_START back.
func (s *Service) ReadyGame() {
	_ = s.Send(protocol.TypeGameStart, struct{}{})
}

// Subscribe registers an external handler for a message type, alongside the
// built-in protocol handlers. Handlers run in registration order.
func (s *Service) Subscribe(t protocol.MessageType, h Handler) *Subscription {
	return s.registry.Subscribe(t, h)
}

// Snapshot returns a copy of the current game state projection.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proj.snapshot()
}

// Status returns the connection lifecycle state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proj.status
}

// transport callbacks

func (s *Service) onOpen(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.proj.status = StatusConnected
	s.proj.errText = ""
}

func (s *Service) onClose(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.proj.status = StatusDisconnected
}

func (s *Service) onError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.proj.status = StatusError
	s.proj.errText = err.Error()
	log.Printf("pk client: transport error: %v", err)
}

// onMessage decodes one inbound frame and fans it out. A malformed frame is
// logged and dropped; the next frame is unaffected.
func (s *Service) onMessage(gen uint64, data []byte) {
	s.mu.RLock()
	stale := gen != s.gen
	s.mu.RUnlock()
	if stale {
		return
	}
	env, err := protocol.Decode(data)
	if err != nil {
		log.Printf("pk client: dropping malformed message: %v", err)
		return
	}
	env.Type = protocol.NormalizeType(string(env.Type))
	s.registry.Dispatch(env)
}

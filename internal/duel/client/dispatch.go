package client

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

// Handler consumes the raw payload of one inbound envelope. Handlers run on
// the connection's read goroutine and must not block.
type Handler func(data json.RawMessage)

// Registry routes decoded envelopes to the handlers subscribed to their type.
// Handlers for a type run in registration order; a panicking handler is
// isolated so the remaining handlers still run.
type Registry struct {
	mu       sync.Mutex
	handlers map[protocol.MessageType][]*subscription
}

type subscription struct {
	fn Handler
}

// NewRegistry creates an empty dispatch registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[protocol.MessageType][]*subscription)}
}

// Subscribe registers handler under t. The same function may be registered
// more than once; each registration is invoked separately.
func (r *Registry) Subscribe(t protocol.MessageType, handler Handler) *Subscription {
	sub := &subscription{fn: handler}
	r.mu.Lock()
	r.handlers[t] = append(r.handlers[t], sub)
	r.mu.Unlock()
	return &Subscription{registry: r, msgType: t, sub: sub}
}

// Unsubscribe removes the first registration matching sub for its type.
// Unsubscribing twice is a no-op.
func (r *Registry) unsubscribe(t protocol.MessageType, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.handlers[t]
	for i, s := range subs {
		if s == sub {
			r.handlers[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatch fans the envelope's payload out to every handler registered for
// its type. Envelopes with no registered handler are dropped silently;
// unhandled types are expected during protocol evolution.
func (r *Registry) Dispatch(env *protocol.Envelope) {
	r.mu.Lock()
	subs := make([]*subscription, len(r.handlers[env.Type]))
	copy(subs, r.handlers[env.Type])
	r.mu.Unlock()

	for _, s := range subs {
		invoke(env.Type, s.fn, env.Data)
	}
}

func invoke(t protocol.MessageType, fn Handler, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("pk dispatch: handler for %s panicked: %v", t, rec)
		}
	}()
	fn(data)
}

// Subscription identifies one registration so it can be removed later.
type Subscription struct {
	registry *Registry
	msgType  protocol.MessageType
	sub      *subscription
}

// Cancel removes the registration. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.unsubscribe(s.msgType, s.sub)
	s.registry = nil
}

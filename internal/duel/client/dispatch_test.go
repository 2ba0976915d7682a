package client

import (
	"encoding/json"
	"testing"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

func TestRegistry_DispatchInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var order []int
	r.Subscribe(protocol.TypeGameStart, func(json.RawMessage) { order = append(order, 1) })
	r.Subscribe(protocol.TypeGameStart, func(json.RawMessage) { order = append(order, 2) })
	r.Subscribe(protocol.TypeGameStart, func(json.RawMessage) { order = append(order, 3) })

	r.Dispatch(&protocol.Envelope{Type: protocol.TypeGameStart})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("handlers ran out of order: %v", order)
	}
}

func TestRegistry_UnknownTypeIsSilentlyDropped(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Subscribe(protocol.TypeGameStart, func(json.RawMessage) { called = true })

	r.Dispatch(&protocol.Envelope{Type: protocol.MessageType("BRAND_NEW_EVENT")})

	if called {
		t.Error("handler for a different type must not run")
	}
}

func TestRegistry_PanicIsolation(t *testing.T) {
	r := NewRegistry()
	var ran []string
	r.Subscribe(protocol.TypeError, func(json.RawMessage) {
		ran = append(ran, "first")
		panic("boom")
	})
	r.Subscribe(protocol.TypeError, func(json.RawMessage) { ran = append(ran, "second") })

	r.Dispatch(&protocol.Envelope{Type: protocol.TypeError})

	if len(ran) != 2 || ran[1] != "second" {
		t.Errorf("second handler must run after first panics, got %v", ran)
	}
}

func TestRegistry_CancelRemovesOnlyOneRegistration(t *testing.T) {
	r := NewRegistry()
	count := 0
	fn := func(json.RawMessage) { count++ }
	sub1 := r.Subscribe(protocol.TypeGameEnd, fn)
	r.Subscribe(protocol.TypeGameEnd, fn)

	sub1.Cancel()
	r.Dispatch(&protocol.Envelope{Type: protocol.TypeGameEnd})
	if count != 1 {
		t.Errorf("expected 1 invocation after cancel, got %d", count)
	}

	// Cancel is idempotent.
	sub1.Cancel()
	r.Dispatch(&protocol.Envelope{Type: protocol.TypeGameEnd})
	if count != 2 {
		t.Errorf("expected 2 invocations total, got %d", count)
	}
}

func TestRegistry_DuplicateRegistrationsAllInvoked(t *testing.T) {
	r := NewRegistry()
	count := 0
	fn := func(json.RawMessage) { count++ }
	r.Subscribe(protocol.TypePlayerJoined, fn)
	r.Subscribe(protocol.TypePlayerJoined, fn)

	r.Dispatch(&protocol.Envelope{Type: protocol.TypePlayerJoined})
	if count != 2 {
		t.Errorf("duplicate registrations must both run, got %d", count)
	}
}

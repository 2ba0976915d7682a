package server

import (
	"testing"
	"time"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

// TestBroadcastEvictsSaturatedClient: a client whose send buffer is full is
// removed from the room during broadcast while healthy clients still receive
// the frame.
func TestBroadcastEvictsSaturatedClient(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	stuck := newClient(hub, nil, "u1")
	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- []byte("x")
	}
	healthy := newClient(hub, nil, "u2")

	hub.JoinRoom(stuck, "room-1")
	hub.JoinRoom(healthy, "room-1")
	if got := hub.RoomClientCount("room-1"); got != 2 {
		t.Fatalf("expected 2 clients before broadcast, got %d", got)
	}

	hub.Broadcast("room-1", protocol.TypeError, protocol.ErrorPayload{Message: "boom"})

	deadline := time.Now().Add(3 * time.Second)
	for hub.RoomClientCount("room-1") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stuck client not evicted, room has %d clients", hub.RoomClientCount("room-1"))
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case frame := <-healthy.send:
		env, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("decode broadcast frame: %v", err)
		}
		if env.Type != protocol.TypeError {
			t.Errorf("expected ERROR frame, got %s", env.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("healthy client never received the broadcast")
	}
}

// Package server hosts the PK battle endpoint: a gorilla/websocket hub, the
// per-connection read/write pumps, and the in-memory room engine that drives
// rounds, scoring and termination for two-player song duels.
package server

import (
	"log"
	"sync"

	"github.com/kelisound/songduel/internal/duel/protocol"
)

// Hub maintains the set of active PK clients and broadcasts envelopes to
// rooms. Pairing and game progression live in Engine; the hub only moves
// bytes.
type Hub struct {
	// Register requests from new connections.
	register chan *Client

	// Unregister requests from dying connections.
	unregister chan *Client

	// Outbound envelopes addressed to a room.
	broadcast chan *roomMessage

	engine *Engine

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

type roomMessage struct {
	roomID  string
	payload []byte
}

// NewHub creates a hub. The engine may be nil until SetEngine is called.
func NewHub(engine *Engine) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
		rooms:      make(map[string]map[*Client]bool),
		engine:     engine,
	}
}

// SetEngine wires the game engine after construction.
func (h *Hub) SetEngine(engine *Engine) {
	h.engine = engine
}

// Run is the hub's main loop. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			log.Printf("pk ws: client registered user_id=%s", client.UserID)
			if h.engine != nil {
				h.engine.PlayerConnected(client)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.roomID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, client.roomID)
					}
				}
			}
			h.mu.Unlock()
			client.closeSend()
			log.Printf("pk ws: client unregistered user_id=%s room_id=%s", client.UserID, client.roomID)
			if h.engine != nil {
				h.engine.PlayerDisconnected(client)
			}

		case msg := <-h.broadcast:
			// Write lock: saturated clients are evicted from the room map.
			h.mu.Lock()
			room := h.rooms[msg.roomID]
			for client := range room {
				if !client.enqueue(msg.payload) {
					delete(room, client)
				}
			}
			if len(room) == 0 {
				delete(h.rooms, msg.roomID)
			}
			h.mu.Unlock()
		}
	}
}

// JoinRoom places a client into a room so broadcasts reach it.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.roomID = roomID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

// Broadcast sends one envelope to every client in a room.
func (h *Hub) Broadcast(roomID string, t protocol.MessageType, data any) {
	raw, err := protocol.Encode(t, data)
	if err != nil {
		log.Printf("pk ws: encode %s for room %s: %v", t, roomID, err)
		return
	}
	h.broadcast <- &roomMessage{roomID: roomID, payload: raw}
}

// SendTo sends one envelope to a single client.
func (h *Hub) SendTo(client *Client, t protocol.MessageType, data any) {
	raw, err := protocol.Encode(t, data)
	if err != nil {
		log.Printf("pk ws: encode %s for user %s: %v", t, client.UserID, err)
		return
	}
	if !client.enqueue(raw) {
		log.Printf("pk ws: send buffer full, dropping %s for user %s", t, client.UserID)
	}
}

// RoomClientCount reports how many clients a room currently holds.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kelisound/songduel/internal/ratelimit"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, check the origin.
		return true
	},
}

// WSHandler upgrades PK battle connections at GET /ws/pk/{userId}.
type WSHandler struct {
	hub         *Hub
	rateLimiter ratelimit.Limiter
}

// NewWSHandler creates a WSHandler. rateLimiter may be nil to disable
// connect throttling.
func NewWSHandler(hub *Hub, rateLimiter ratelimit.Limiter) *WSHandler {
	if rateLimiter == nil {
		rateLimiter = &ratelimit.Noop{}
	}
	return &WSHandler{hub: hub, rateLimiter: rateLimiter}
}

// HandlePK handles GET /ws/pk/{userId}: upgrade, register, start pumps.
func (h *WSHandler) HandlePK(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if allowed, _ := h.rateLimiter.Allow(clientIP(r)); !allowed {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("pk ws: upgrade error user_id=%s: %v", userID, err)
		return
	}

	client := newClient(h.hub, conn, userID)
	h.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// clientIP returns the peer address for rate limiting, honoring proxy
// headers when present.
func clientIP(r *http.Request) string {
	if x := r.Header.Get("X-Real-IP"); x != "" {
		return x
	}
	if x := r.Header.Get("X-Forwarded-For"); x != "" {
		return x
	}
	return r.RemoteAddr
}

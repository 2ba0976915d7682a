package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/kelisound/songduel/internal/store"
)

// PlaylistNameMaxLen caps playlist names.
const PlaylistNameMaxLen = 100

// CreatePlaylistRequest is the body for POST /api/playlists.
type CreatePlaylistRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// UpdatePlaylistRequest is the body for PATCH /api/playlists/{id}; nil means unchanged.
type UpdatePlaylistRequest struct {
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// AddMusicRequest is the body for POST /api/playlists/{id}/musics.
type AddMusicRequest struct {
	MusicID string `json:"music_id"`
}

// PlaylistHandler handles the playlist endpoints. All routes require a
// Bearer token; playlists are owned by the authenticated user.
type PlaylistHandler struct {
	playlists *store.PlaylistStore
}

// NewPlaylistHandler creates a new PlaylistHandler.
func NewPlaylistHandler(playlists *store.PlaylistStore) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists}
}

func validatePlaylistName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "name is required"
	}
	if len(name) > PlaylistNameMaxLen {
		return "name must be at most 100 characters"
	}
	return ""
}

// CreatePlaylist handles POST /api/playlists.
func (h *PlaylistHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req CreatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validatePlaylistName(req.Name); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	playlist, err := h.playlists.CreatePlaylist(r.Context(), *userID, strings.TrimSpace(req.Name), req.Image)
	if err != nil {
		log.Printf("[%s] create playlist error: %v", requestID(r), err)
		http.Error(w, "failed to create playlist", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, playlist)
}

// ListPlaylists handles GET /api/playlists. Returns the caller's playlists.
func (h *PlaylistHandler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	playlists, err := h.playlists.ListByUser(r.Context(), *userID)
	if err != nil {
		log.Printf("[%s] list playlists error: %v", requestID(r), err)
		http.Error(w, "failed to list playlists", http.StatusInternalServerError)
		return
	}
	if playlists == nil {
		playlists = []store.Playlist{}
	}
	respondJSON(w, http.StatusOK, playlists)
}

// GetPlaylist handles GET /api/playlists/{id}. Returns the playlist with
// its songs in added order.
func (h *PlaylistHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.playlists.GetDetail(r.Context(), id)
	if err != nil {
		log.Printf("[%s] get playlist error: %v", requestID(r), err)
		http.Error(w, "failed to get playlist", http.StatusInternalServerError)
		return
	}
	if detail == nil {
		http.Error(w, "playlist not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// UpdatePlaylist handles PATCH /api/playlists/{id}.
func (h *PlaylistHandler) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	var req UpdatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name != nil {
		if msg := validatePlaylistName(*req.Name); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
	}
	playlist, err := h.playlists.Rename(r.Context(), id, *userID, req.Name, req.Image)
	if err != nil {
		h.writeOwnershipError(w, r, err, "update playlist")
		return
	}
	respondJSON(w, http.StatusOK, playlist)
}

// DeletePlaylist handles DELETE /api/playlists/{id}.
func (h *PlaylistHandler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.playlists.Delete(r.Context(), id, *userID); err != nil {
		h.writeOwnershipError(w, r, err, "delete playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMusic handles POST /api/playlists/{id}/musics. Adding a song already in
// the playlist is a no-op.
func (h *PlaylistHandler) AddMusic(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	var req AddMusicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MusicID == "" {
		http.Error(w, "music_id is required", http.StatusBadRequest)
		return
	}
	if err := h.playlists.AddMusic(r.Context(), id, *userID, req.MusicID); err != nil {
		h.writeOwnershipError(w, r, err, "add music to playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMusic handles DELETE /api/playlists/{id}/musics/{musicId}.
func (h *PlaylistHandler) RemoveMusic(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	musicID := chi.URLParam(r, "musicId")
	if err := h.playlists.RemoveMusic(r.Context(), id, *userID, musicID); err != nil {
		h.writeOwnershipError(w, r, err, "remove music from playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeOwnershipError maps store errors from owner-checked mutations to HTTP
// status codes: missing playlist is 404, foreign playlist is 403.
func (h *PlaylistHandler) writeOwnershipError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		http.Error(w, "playlist not found", http.StatusNotFound)
	case errors.Is(err, store.ErrNotOwner):
		http.Error(w, "playlist belongs to another user", http.StatusForbidden)
	default:
		log.Printf("[%s] %s error: %v", requestID(r), op, err)
		http.Error(w, "failed to "+op, http.StatusInternalServerError)
	}
}

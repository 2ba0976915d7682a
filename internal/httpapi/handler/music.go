package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kelisound/songduel/internal/store"
)

// Music validation limits. Duration is in seconds.
const (
	MusicNameMaxLen   = 200
	MusicAuthorMaxLen = 200
	MusicMaxDuration  = 600
)

// MusicHandler handles the music catalog endpoints.
type MusicHandler struct {
	musics *store.MusicStore
}

// NewMusicHandler creates a new MusicHandler.
func NewMusicHandler(musics *store.MusicStore) *MusicHandler {
	return &MusicHandler{musics: musics}
}

func validateCreateMusic(req *store.CreateMusicRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.Author = strings.TrimSpace(req.Author)
	req.URL = strings.TrimSpace(req.URL)
	if req.Name == "" {
		return "name is required"
	}
	if len(req.Name) > MusicNameMaxLen {
		return "name must be at most 200 characters"
	}
	if len(req.Author) > MusicAuthorMaxLen {
		return "author must be at most 200 characters"
	}
	if req.URL == "" {
		return "url is required"
	}
	if req.Duration < 0 || req.Duration > MusicMaxDuration {
		return "duration must be between 0 and 600 seconds"
	}
	return ""
}

// CreateMusic handles POST /api/musics. Requires Bearer token.
func (h *MusicHandler) CreateMusic(w http.ResponseWriter, r *http.Request) {
	var req store.CreateMusicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateCreateMusic(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	music, err := h.musics.CreateMusic(r.Context(), req)
	if err != nil {
		log.Printf("[%s] create music error: %v", requestID(r), err)
		http.Error(w, "failed to create music", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, music)
}

// GetMusic handles GET /api/musics/{id}.
func (h *MusicHandler) GetMusic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	music, err := h.musics.GetMusic(r.Context(), id)
	if err != nil {
		log.Printf("[%s] get music error: %v", requestID(r), err)
		http.Error(w, "failed to get music", http.StatusInternalServerError)
		return
	}
	if music == nil {
		http.Error(w, "music not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, music)
}

// ListMusic handles GET /api/musics. Supports name/author/type/status
// filters and page/size pagination via query parameters.
func (h *MusicHandler) ListMusic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ListMusicFilter{
		Name:   strings.TrimSpace(q.Get("name")),
		Author: strings.TrimSpace(q.Get("author")),
		Type:   strings.TrimSpace(q.Get("type")),
		Page:   atoiDefault(q.Get("page"), 0),
		Size:   atoiDefault(q.Get("size"), 0),
	}
	if s := q.Get("status"); s != "" {
		status, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "invalid status filter", http.StatusBadRequest)
			return
		}
		f.Status = &status
	}

	musics, total, err := h.musics.ListMusic(r.Context(), f)
	if err != nil {
		log.Printf("[%s] list music error: %v", requestID(r), err)
		http.Error(w, "failed to list music", http.StatusInternalServerError)
		return
	}
	if musics == nil {
		musics = []store.Music{}
	}
	page, size := f.Page, f.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	respondJSON(w, http.StatusOK, pageResponse{Items: musics, Total: total, Page: page, Size: size})
}

// UpdateMusic handles PATCH /api/musics/{id}. Requires Bearer token.
func (h *MusicHandler) UpdateMusic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req store.UpdateMusicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Duration != nil && (*req.Duration < 0 || *req.Duration > MusicMaxDuration) {
		http.Error(w, "duration must be between 0 and 600 seconds", http.StatusBadRequest)
		return
	}
	music, err := h.musics.UpdateMusic(r.Context(), id, req)
	if err != nil {
		log.Printf("[%s] update music error: %v", requestID(r), err)
		http.Error(w, "failed to update music", http.StatusInternalServerError)
		return
	}
	if music == nil {
		http.Error(w, "music not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, music)
}

// DeleteMusic handles DELETE /api/musics/{id}. Requires Bearer token.
func (h *MusicHandler) DeleteMusic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.musics.DeleteMusic(r.Context(), id); err != nil {
		log.Printf("[%s] delete music error: %v", requestID(r), err)
		http.Error(w, "failed to delete music", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// atoiDefault parses s as an int, falling back to def when empty or invalid.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

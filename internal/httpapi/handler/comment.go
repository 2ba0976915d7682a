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

// CreateCommentRequest is the body for POST /api/musics/{id}/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CommentHandler handles song comment endpoints.
type CommentHandler struct {
	comments *store.CommentStore
	musics   *store.MusicStore
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments *store.CommentStore, musics *store.MusicStore) *CommentHandler {
	return &CommentHandler{comments: comments, musics: musics}
}

// CreateComment handles POST /api/musics/{id}/comments. Requires Bearer token.
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	musicID := chi.URLParam(r, "id")
	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if len(req.Content) > store.MaxCommentLength {
		http.Error(w, "content must be at most 1000 characters", http.StatusBadRequest)
		return
	}

	music, err := h.musics.GetMusic(r.Context(), musicID)
	if err != nil {
		log.Printf("[%s] get music for comment error: %v", requestID(r), err)
		http.Error(w, "failed to create comment", http.StatusInternalServerError)
		return
	}
	if music == nil {
		http.Error(w, "music not found", http.StatusNotFound)
		return
	}

	comment, err := h.comments.CreateComment(r.Context(), musicID, *userID, req.Content)
	if err != nil {
		log.Printf("[%s] create comment error: %v", requestID(r), err)
		http.Error(w, "failed to create comment", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// CommentView is a comment plus whether the caller may delete it.
type CommentView struct {
	store.Comment
	Editable bool `json:"editable"`
}

// ListComments handles GET /api/musics/{id}/comments. Newest first. The
// route is public; with a Bearer token the caller's own comments are marked
// editable.
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	musicID := chi.URLParam(r, "id")
	comments, err := h.comments.ListByMusic(r.Context(), musicID)
	if err != nil {
		log.Printf("[%s] list comments error: %v", requestID(r), err)
		http.Error(w, "failed to list comments", http.StatusInternalServerError)
		return
	}
	userID := UserIDFromRequest(r)
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{
			Comment:  c,
			Editable: userID != nil && c.UserID == *userID,
		})
	}
	respondJSON(w, http.StatusOK, views)
}

// DeleteComment handles DELETE /api/comments/{id}. Only the author may
// delete. Requires Bearer token.
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	err := h.comments.DeleteComment(r.Context(), id, *userID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, pgx.ErrNoRows):
		http.Error(w, "comment not found", http.StatusNotFound)
	case errors.Is(err, store.ErrNotOwner):
		http.Error(w, "comment belongs to another user", http.StatusForbidden)
	default:
		log.Printf("[%s] delete comment error: %v", requestID(r), err)
		http.Error(w, "failed to delete comment", http.StatusInternalServerError)
	}
}

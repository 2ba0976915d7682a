package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// contextKey type for request context keys (avoids collisions with other packages).
type contextKey string

// UserIDContextKey is the context key for the authenticated user's ID (set by OptionalUser/RequireUser middleware).
const UserIDContextKey contextKey = "user_id"

// UserIDFromRequest returns the user ID from the request context if set by user auth middleware; otherwise empty.
func UserIDFromRequest(r *http.Request) *string {
	v := r.Context().Value(UserIDContextKey)
	if v == nil {
		return nil
	}
	if id, ok := v.(string); ok && id != "" {
		return &id
	}
	return nil
}

// requestID returns the request ID from chi's context for logging.
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(middleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// respondJSON writes v as a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// pageResponse wraps a list endpoint's page of items with its unpaged total.
type pageResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

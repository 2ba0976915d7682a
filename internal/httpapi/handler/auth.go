package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/kelisound/songduel/internal/auth"
	"github.com/kelisound/songduel/internal/store"
)

// Auth validation limits.
const (
	EmailMaxLen    = 256
	PasswordMinLen = 8
	PasswordMaxLen = 128
	UsernameMinLen = 2
	UsernameMaxLen = 32
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the response for register and login (user + token).
type AuthResponse struct {
	User      *store.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
}

// AuthHandler handles auth and user endpoints.
type AuthHandler struct {
	userStore   *store.UserStore
	tokenSecret []byte
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userStore *store.UserStore, tokenSecret []byte) *AuthHandler {
	return &AuthHandler{userStore: userStore, tokenSecret: tokenSecret}
}

func validateEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "email is required"
	}
	if len(email) > EmailMaxLen {
		return "email must be at most 256 characters"
	}
	if !emailRegex.MatchString(email) {
		return "invalid email format"
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < PasswordMinLen {
		return "password must be at least 8 characters"
	}
	if len(password) > PasswordMaxLen {
		return "password must be at most 128 characters"
	}
	return ""
}

func validateUsername(username string) string {
	username = strings.TrimSpace(username)
	if len(username) < UsernameMinLen {
		return "username must be at least 2 characters"
	}
	if len(username) > UsernameMaxLen {
		return "username must be at most 32 characters"
	}
	return ""
}

// Register handles POST /api/auth/register. Creates an account and returns
// the user with a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if msg := validateEmail(req.Email); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if msg := validateUsername(req.Username); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	user, err := h.userStore.CreateUser(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		if err == store.ErrEmailExists {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		log.Printf("[%s] register error: %v", requestID(r), err)
		http.Error(w, "failed to create account", http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := auth.GenerateToken(user.ID, h.tokenSecret, auth.DefaultTokenExpiry)
	if err != nil {
		log.Printf("[%s] generate token error: %v", requestID(r), err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Login handles POST /api/auth/login. Authenticates with email and password
// and returns the user with a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if msg := validateEmail(req.Email); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}

	user, err := h.userStore.VerifyPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("[%s] login verify error: %v", requestID(r), err)
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if user == nil {
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := auth.GenerateToken(user.ID, h.tokenSecret, auth.DefaultTokenExpiry)
	if err != nil {
		log.Printf("[%s] generate token error: %v", requestID(r), err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetMe handles GET /api/users/me. Requires Bearer token.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil || *userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.userStore.GetUserByID(r.Context(), *userID)
	if err != nil {
		log.Printf("[%s] get user error: %v", requestID(r), err)
		http.Error(w, "failed to get user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/users/me. Partial profile update for the
// authenticated user.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromRequest(r)
	if userID == nil || *userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req store.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username != nil {
		if msg := validateUsername(*req.Username); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
	}
	// Status is admin territory; ignore it on self-service updates.
	req.Status = nil

	user, err := h.userStore.UpdateUser(r.Context(), *userID, req)
	if err != nil {
		log.Printf("[%s] update user error: %v", requestID(r), err)
		http.Error(w, "failed to update user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Package httpapi assembles the HTTP surface of the song-duel backend: the
// REST routes for auth, the music catalog, playlists and comments, plus the
// PK battle WebSocket endpoint.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kelisound/songduel/internal/duel/server"
	"github.com/kelisound/songduel/internal/httpapi/handler"
	"github.com/kelisound/songduel/internal/ratelimit"
	"github.com/kelisound/songduel/internal/store"
)

// NewRouter builds the root HTTP router with basic middleware, health check,
// REST routes and the PK WebSocket endpoint.
// tokenSecret signs session tokens; if nil or empty, authenticated routes reject all requests.
// rateLimiter is optional: if nil, no rate limiting is applied; otherwise register, login, and WS connects are limited.
func NewRouter(pool *pgxpool.Pool, tokenSecret []byte, rateLimiter ratelimit.Limiter) http.Handler {
	if rateLimiter == nil {
		rateLimiter = &ratelimit.Noop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.Healthz)

	// Stores (used by REST routes and the PK engine)
	userStore := store.NewUserStore(pool)
	musicStore := store.NewMusicStore(pool)
	playlistStore := store.NewPlaylistStore(pool)
	commentStore := store.NewCommentStore(pool)

	// PK battle hub and engine; rounds draw questions from the music catalog.
	hub := server.NewHub(nil)
	engine := server.NewEngine(hub, server.NewStoreSource(musicStore), server.DefaultConfig())
	hub.SetEngine(engine)
	go hub.Run()

	wsHandler := server.NewWSHandler(hub, rateLimiter)

	// Per-user PK WebSocket (connect limited by IP)
	r.Get("/ws/pk/{userId}", wsHandler.HandlePK)

	// Rate limit middleware for register/login (by IP)
	rateLimitByIP := RateLimitMiddleware(rateLimiter, RateLimitKeyByIP)

	requireUser := RequireUser(tokenSecret)
	optionalUser := OptionalUser(tokenSecret)

	authHandler := handler.NewAuthHandler(userStore, tokenSecret)
	musicHandler := handler.NewMusicHandler(musicStore)
	playlistHandler := handler.NewPlaylistHandler(playlistStore)
	commentHandler := handler.NewCommentHandler(commentStore, musicStore)

	r.Route("/api", func(r chi.Router) {
		r.Use(LimitRequestBody(DefaultMaxBodyBytes))

		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimitByIP).Post("/register", authHandler.Register)
			r.With(rateLimitByIP).Post("/login", authHandler.Login)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/me", authHandler.GetMe)
			r.Patch("/me", authHandler.UpdateMe)
		})

		r.Route("/musics", func(r chi.Router) {
			r.With(optionalUser).Get("/", musicHandler.ListMusic)
			r.With(optionalUser).Get("/{id}", musicHandler.GetMusic)
			r.With(optionalUser).Get("/{id}/comments", commentHandler.ListComments)
			r.With(requireUser).Post("/", musicHandler.CreateMusic)
			r.With(requireUser).Patch("/{id}", musicHandler.UpdateMusic)
			r.With(requireUser).Delete("/{id}", musicHandler.DeleteMusic)
			r.With(requireUser).Post("/{id}/comments", commentHandler.CreateComment)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/", playlistHandler.CreatePlaylist)
			r.Get("/", playlistHandler.ListPlaylists)
			r.Get("/{id}", playlistHandler.GetPlaylist)
			r.Patch("/{id}", playlistHandler.UpdatePlaylist)
			r.Delete("/{id}", playlistHandler.DeletePlaylist)
			r.Post("/{id}/musics", playlistHandler.AddMusic)
			r.Delete("/{id}/musics/{musicId}", playlistHandler.RemoveMusic)
		})

		r.With(requireUser).Delete("/comments/{id}", commentHandler.DeleteComment)
	})

	return r
}

// DefaultRateLimiter returns an in-memory rate limiter for register/login
// and WS connects: 20 requests per minute per IP.
// Use in production or pass nil to disable. For multi-instance, replace with Redis-backed limiter.
func DefaultRateLimiter() ratelimit.Limiter {
	return ratelimit.NewInMemory(20, time.Minute)
}

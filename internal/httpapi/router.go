package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"gameplay/internal/middleware"
)

// NewRouter builds the full route tree: match and agent routes require
// authentication (only a registered user may create matches, submit turns
// as themselves, or register an agent); watch and leaderboard are public.
func NewRouter(h *Handler, authMiddleware *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	matches := api.PathPrefix("/matches").Subrouter()
	matches.Use(authMiddleware.RequireAuth)
	matches.HandleFunc("", limiter.RateLimitHandler(
		middleware.MatchCreationLimit,
		func(r *http.Request) string { return "match-create:" + middleware.GetClientIP(r) },
		h.CreateMatch,
	)).Methods("POST")
	matches.HandleFunc("/{id}/turns", limiter.RateLimitHandler(
		middleware.TurnSubmitLimit,
		func(r *http.Request) string { return "turn-submit:" + middleware.GetClientIP(r) },
		h.SubmitTurn,
	)).Methods("POST")

	// Match reads and watches are public: spectating a match requires no
	// authority over it, only knowledge of its id.
	publicMatches := api.PathPrefix("/matches").Subrouter()
	publicMatches.HandleFunc("/{id}", h.GetMatch).Methods("GET")
	publicMatches.HandleFunc("/{id}/watch", limiter.RateLimitHandler(
		middleware.WatchConnectionLimit,
		func(r *http.Request) string { return "watch:" + middleware.GetClientIP(r) },
		h.WatchSSE,
	)).Methods("GET")
	publicMatches.HandleFunc("/{id}/watch/ws", limiter.RateLimitHandler(
		middleware.WatchConnectionLimit,
		func(r *http.Request) string { return "watch:" + middleware.GetClientIP(r) },
		h.WatchWebSocket,
	)).Methods("GET")

	agents := api.PathPrefix("/agents").Subrouter()
	agents.Use(authMiddleware.RequireAuth)
	agents.HandleFunc("", limiter.RateLimitHandler(
		middleware.AgentRegistrationLimit,
		func(r *http.Request) string { return "agent-register:" + middleware.GetClientIP(r) },
		h.RegisterAgent,
	)).Methods("POST")

	api.HandleFunc("/agents/{id}", h.GetAgent).Methods("GET")
	api.HandleFunc("/leaderboard", h.GetLeaderboard).Methods("GET")

	return router
}

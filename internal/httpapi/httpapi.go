// Package httpapi wires the core's HTTP surface: match creation, turn
// submission, match watching (SSE and websocket), agent registration, and
// the leaderboard. Handlers are thin — validation and state transitions
// live in internal/executor and internal/store; a handler's job is only to
// parse the request, call through, and map the result to a response.
package httpapi

import (
	"encoding/json"
	"net/http"

	"gameplay/internal/auth"
	"gameplay/internal/db"
	"gameplay/internal/driver"
	"gameplay/internal/executor"
	"gameplay/internal/notifier"
	"gameplay/internal/rules"
	"gameplay/internal/store"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	store    *store.Store
	executor *executor.Executor
	driver   *driver.Driver
	registry *rules.Registry
	hub      *notifier.Hub
	verifier *auth.Verifier
	db       *db.MongoDB
}

func NewHandler(st *store.Store, ex *executor.Executor, drv *driver.Driver, registry *rules.Registry, hub *notifier.Hub, verifier *auth.Verifier, database *db.MongoDB) *Handler {
	return &Handler{store: st, executor: ex, driver: drv, registry: registry, hub: hub, verifier: verifier, db: database}
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}

// executorStatus maps an *executor.Error's Kind to the HTTP status a client
// should see.
func executorStatus(kind executor.Kind) int {
	switch kind {
	case executor.MatchNotFound:
		return http.StatusNotFound
	case executor.MatchOver, executor.NotYourTurn, executor.InvalidAction:
		return http.StatusBadRequest
	case executor.RaceLost:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

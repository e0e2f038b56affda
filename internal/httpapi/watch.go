package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/notifier"
)

const ssePingPeriod = 30 * time.Second

// WatchSSE streams "match changed" events for a match as Server-Sent
// Events — the primary watch transport. Event bodies carry nothing beyond
// the notification itself; clients re-GET /api/matches/{id} on receipt. A
// periodic keep-alive comment is sent on a quiet match so a client or
// intermediate proxy can tell "alive but idle" from "silently dead",
// mirroring internal/notifier/ws.go's ping ticker for the websocket
// transport.
func (h *Handler) WatchSSE(w http.ResponseWriter, r *http.Request) {
	matchID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Server.WriteTimeout sets a write deadline once when the request is
	// read; it does not reset between the Writes this handler makes over
	// its lifetime. Clearing it here keeps a long-lived watch connection
	// from being severed out from under it regardless of activity.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch, unsubscribe := h.hub.Watch(matchID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	ping := time.NewTicker(ssePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprintf(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ch:
			fmt.Fprintf(w, "event: match_changed\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

// WatchWebSocket is the alternate watch transport for clients that prefer
// a persistent socket over SSE, backed by the same Hub.
func (h *Handler) WatchWebSocket(w http.ResponseWriter, r *http.Request) {
	matchID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	notifier.ServeWebSocket(h.hub, matchID, w, r)
}

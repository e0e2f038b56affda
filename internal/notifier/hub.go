// Package notifier implements the Match Notifier: best-effort broadcast
// of "match changed" events to subscribers. No event body is carried
// beyond the fact that a match changed — subscribers re-read the match
// from the store. Delivery is at-most-once, in-order per match; an event
// for a subscriber that has not drained the previous one is dropped rather
// than allowed to back-pressure a publish.
package notifier

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Publisher is the narrow interface the Turn Executor depends on: it only
// ever needs to announce that a match changed, never to subscribe. Both
// Hub and CrossInstance satisfy it, so a single-instance deployment can
// wire the Executor straight to a Hub while a multi-instance one wires it
// to a CrossInstance.
type Publisher interface {
	Publish(matchID primitive.ObjectID)
}

// Hub fans out match-changed events to per-match subscriber lists. It is
// transport-agnostic: internal/httpapi drains a subscription either as an
// SSE stream or as a websocket connection (see ws.go), both backed by the
// same Hub.
type Hub struct {
	mu        sync.Mutex
	subs      map[primitive.ObjectID]map[uint64]chan struct{}
	nextSubID uint64
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[primitive.ObjectID]map[uint64]chan struct{})}
}

// Watch registers a new subscriber for matchID and returns a channel that
// receives a value (never closed early, never carrying data) each time the
// match changes, plus an unsubscribe function the caller must call exactly
// once when it stops watching.
func (h *Hub) Watch(matchID primitive.ObjectID) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSubID++
	id := h.nextSubID
	ch := make(chan struct{}, 1)
	if h.subs[matchID] == nil {
		h.subs[matchID] = make(map[uint64]chan struct{})
	}
	h.subs[matchID][id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[matchID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.subs, matchID)
			}
		}
	}
	return ch, unsubscribe
}

// Publish notifies every current subscriber of matchID that it changed.
// Sends are non-blocking: a subscriber whose buffer is already full (it
// hasn't drained the previous event yet) is skipped for this publish
// rather than stalling the caller — the event itself is opaque, so a
// dropped duplicate costs the subscriber nothing beyond one extra re-read.
func (h *Hub) Publish(matchID primitive.ObjectID) {
	h.mu.Lock()
	set := h.subs[matchID]
	chans := make([]chan struct{}, 0, len(set))
	for _, ch := range set {
		chans = append(chans, ch)
	}
	h.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

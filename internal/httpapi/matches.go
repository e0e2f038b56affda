package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/executor"
	"gameplay/internal/middleware"
	"gameplay/internal/models"
	"gameplay/internal/store"
)

// slotRequest names exactly one of a user or a registered agent to bind
// into a match slot.
type slotRequest struct {
	UserID  string `json:"userId,omitempty"`
	AgentID string `json:"agentId,omitempty"`
}

func (s slotRequest) toSlotSpec() (store.SlotSpec, error) {
	switch {
	case s.UserID != "" && s.AgentID == "":
		id, err := primitive.ObjectIDFromHex(s.UserID)
		if err != nil {
			return store.SlotSpec{}, errors.New("invalid userId")
		}
		return store.SlotSpec{UserID: &id}, nil
	case s.AgentID != "" && s.UserID == "":
		id, err := primitive.ObjectIDFromHex(s.AgentID)
		if err != nil {
			return store.SlotSpec{}, errors.New("invalid agentId")
		}
		return store.SlotSpec{AgentID: &id}, nil
	default:
		return store.SlotSpec{}, errors.New("slot must name exactly one of userId or agentId")
	}
}

type createMatchRequest struct {
	Game  string      `json:"game"`
	Slot0 slotRequest `json:"slot0"`
	Slot1 slotRequest `json:"slot1"`
}

type createMatchResponse struct {
	MatchID string `json:"matchId"`
}

// CreateMatch creates a new match between the two named slots. Agent slots
// are triggered immediately in case the agent is slot 0 (moves first).
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	game, ok := h.registry.Lookup(req.Game)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown game")
		return
	}

	slot0, err := req.Slot0.toSlotSpec()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	slot1, err := req.Slot1.toSlotSpec()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	matchID, err := h.store.CreateMatch(r.Context(), user.ID, req.Game, slot0, slot1, game.InitialState())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create match")
		return
	}

	if h.driver != nil {
		h.driver.Trigger(matchID)
	}

	respondWithJSON(w, http.StatusCreated, createMatchResponse{MatchID: matchID.Hex()})
}

type matchResponse struct {
	Match *models.Match `json:"match"`
	Tail  *models.Turn  `json:"tail"`
}

// GetMatch returns the match record and its current tail turn (the latest
// state plus whose turn it is or how it ended). Callers who also want the
// full turn log should paginate match_turns directly — not exposed here,
// since the hot path only ever needs the tail.
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	match, turns, err := h.store.LoadMatch(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, store.ErrMatchNotFound) {
			respondWithError(w, http.StatusNotFound, "match not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load match")
		return
	}
	if len(turns) == 0 {
		respondWithError(w, http.StatusInternalServerError, "match has no turns")
		return
	}
	tail := turns[len(turns)-1]
	respondWithJSON(w, http.StatusOK, matchResponse{Match: match, Tail: &tail})
}

type submitTurnRequest struct {
	Actor  int             `json:"actor"`
	Action json.RawMessage `json:"action"`
}

// SubmitTurn applies an authenticated human player's move. Agent moves
// never arrive over HTTP — the driver calls executor.SubmitTurn directly
// with AgentAuthority.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	matchID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	var req submitTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	match, err := h.executor.SubmitTurn(r.Context(), matchID, req.Actor, req.Action, executor.UserAuthority(user.ID))
	if err != nil {
		var execErr *executor.Error
		if errors.As(err, &execErr) {
			respondWithError(w, executorStatus(execErr.Kind), execErr.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to submit turn")
		return
	}

	if h.driver != nil {
		h.driver.Trigger(matchID)
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"matchId": match.ID.Hex()})
}

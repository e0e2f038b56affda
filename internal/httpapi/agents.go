package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/audit"
	"gameplay/internal/driver"
	"gameplay/internal/middleware"
	"gameplay/internal/models"
)

const agentProbeTimeout = 10 * time.Second

type registerAgentRequest struct {
	Game      string `json:"game"`
	AgentName string `json:"agentName"`
	URL       string `json:"url"`
}

type registerAgentResponse struct {
	AgentID string                     `json:"agentId"`
	Status  models.AgentEndpointStatus `json:"status"`
	Error   string                     `json:"error,omitempty"`
}

// RegisterAgent creates an agent and synchronously probes its endpoint
// before returning, so a caller learns immediately whether the URL they
// registered actually speaks the agent HTTP contract.
func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Game == "" || req.AgentName == "" || req.URL == "" {
		respondWithError(w, http.StatusBadRequest, "game, agentName, and url are required")
		return
	}
	if _, ok := h.registry.Lookup(req.Game); !ok {
		respondWithError(w, http.StatusBadRequest, "unknown game")
		return
	}
	if parsed, err := url.Parse(req.URL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		respondWithError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	agent, err := h.store.CreateAgent(r.Context(), user.ID, req.Game, req.AgentName, req.URL)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create agent")
		return
	}

	status, probeErr := probeAgentEndpoint(req.URL)
	errMsg := ""
	if probeErr != nil {
		errMsg = probeErr.Error()
	}
	if err := h.store.UpdateAgentValidation(r.Context(), agent.ID, status, errMsg); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to record validation result")
		return
	}

	audit.LogEvent(h.db, audit.EventAgentRegistered, nil, &agent.ID, string(status))

	respondWithJSON(w, http.StatusCreated, registerAgentResponse{AgentID: agent.ID.Hex(), Status: status, Error: errMsg})
}

// probeAgentEndpoint POSTs a fixed {"probe":true} body with only the
// Gameplay-Match-Status: InProgress header. It does not send a game state
// or the Gameplay-Game, Gameplay-Match-ID and Gameplay-Player headers that
// internal/driver.requestAction sends. Any 2xx response whose body is a
// JSON object counts as ok; move legality is not checked here.
func probeAgentEndpoint(endpoint string) (models.AgentEndpointStatus, error) {
	client := &http.Client{Timeout: agentProbeTimeout}
	body := []byte(`{"probe":true}`)
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.AgentEndpointFailed, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(driver.HeaderMatchStatus, driver.StatusInProgress)

	resp, err := client.Do(req)
	if err != nil {
		return models.AgentEndpointFailed, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AgentEndpointFailed, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.AgentEndpointFailed, &probeError{status: resp.StatusCode}
	}
	var probe map[string]any
	if err := json.Unmarshal(respBody, &probe); err != nil {
		return models.AgentEndpointFailed, err
	}
	return models.AgentEndpointOK, nil
}

type probeError struct{ status int }

func (e *probeError) Error() string {
	return "agent endpoint returned status " + http.StatusText(e.status)
}

// GetAgent returns an agent's record by id.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	agent, err := h.store.AgentByID(r.Context(), agentID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "agent not found")
		return
	}
	respondWithJSON(w, http.StatusOK, agent)
}

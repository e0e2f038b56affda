package driver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/models"
)

func testMatch(game string) (*models.Agent, *models.Match, models.Turn, models.PlayerSlot) {
	agentID := primitive.NewObjectID()
	matchID := primitive.NewObjectID()
	agent := &models.Agent{ID: agentID, AgentName: "opponent"}
	match := &models.Match{ID: matchID, Game: game}
	tail := models.Turn{MatchID: matchID, Ordinal: 0, State: []byte(`{"board":[]}`)}
	slot := models.PlayerSlot{Number: 1, AgentID: &agentID}
	return agent, match, tail, slot
}

func TestRequestActionSendsContractHeadersAndReturnsBody(t *testing.T) {
	var gotGame, gotMatchID, gotPlayer, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGame = r.Header.Get(HeaderGame)
		gotMatchID = r.Header.Get(HeaderMatchID)
		gotPlayer = r.Header.Get(HeaderPlayer)
		gotStatus = r.Header.Get(HeaderMatchStatus)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"column":3}`))
	}))
	defer srv.Close()

	d := New(nil, nil, nil)
	agent, match, tail, slot := testMatch("connect4")
	agent.Endpoint.URL = srv.URL

	body, err := d.requestAction(context.Background(), agent, match, tail, slot)
	require.NoError(t, err)

	var action map[string]int
	require.NoError(t, json.Unmarshal(body, &action))
	require.Equal(t, 3, action["column"])

	require.Equal(t, "connect4", gotGame)
	require.Equal(t, match.ID.Hex(), gotMatchID)
	require.Equal(t, "1", gotPlayer)
	require.Equal(t, StatusInProgress, gotStatus)
}

func TestRequestActionRetriesTransientFailures(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"column":0}`))
	}))
	defer srv.Close()

	d := New(nil, nil, nil)
	agent, match, tail, slot := testMatch("connect4")
	agent.Endpoint.URL = srv.URL

	body, err := d.requestAction(context.Background(), agent, match, tail, slot)
	require.NoError(t, err)
	require.JSONEq(t, `{"column":0}`, string(body))
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRequestActionGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(nil, nil, nil)
	agent, match, tail, slot := testMatch("connect4")
	agent.Endpoint.URL = srv.URL

	_, err := d.requestAction(context.Background(), agent, match, tail, slot)
	require.Error(t, err)
	require.Equal(t, int32(maxAttempts), atomic.LoadInt32(&attempts))
}

func TestRequestActionTreatsMalformedJSONAsPermanent(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	d := New(nil, nil, nil)
	agent, match, tail, slot := testMatch("connect4")
	agent.Endpoint.URL = srv.URL

	_, err := d.requestAction(context.Background(), agent, match, tail, slot)
	require.Error(t, err)
	// A permanent failure must stop retrying after the first attempt.
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

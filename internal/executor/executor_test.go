package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/models"
	"gameplay/internal/rules"
	"gameplay/internal/rules/connect4"
	"gameplay/internal/store"
)

// fakeStore is an in-memory matchStore that reproduces the unique
// (matchId, ordinal) conflict contract AppendTurn relies on, so the
// Executor's race-handling path can be exercised without MongoDB.
type fakeStore struct {
	mu      sync.Mutex
	match   models.Match
	turns   []models.Turn
	onWrite func() // hook invoked after loading turns but before insert, to simulate a racing writer
}

func (f *fakeStore) LoadMatch(ctx context.Context, matchID primitive.ObjectID) (*models.Match, []models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := make([]models.Turn, len(f.turns))
	copy(turns, f.turns)
	m := f.match
	return &m, turns, nil
}

func (f *fakeStore) AppendTurn(ctx context.Context, turn models.Turn) (store.AppendOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onWrite != nil {
		f.onWrite()
	}
	for _, t := range f.turns {
		if t.Ordinal == turn.Ordinal {
			return store.AlreadyTaken, nil
		}
	}
	f.turns = append(f.turns, turn)
	return store.Appended, nil
}

func newFixture(t *testing.T) (*Executor, *fakeStore, primitive.ObjectID) {
	t.Helper()
	game := connect4.New()
	matchID := primitive.NewObjectID()
	user0 := primitive.NewObjectID()
	agent1 := primitive.NewObjectID()

	fs := &fakeStore{
		match: models.Match{
			ID:   matchID,
			Game: game.Tag(),
			Players: [2]models.PlayerSlot{
				{Number: 0, UserID: &user0},
				{Number: 1, AgentID: &agent1},
			},
		},
	}
	next := 0
	fs.turns = []models.Turn{{
		MatchID:    matchID,
		Ordinal:    0,
		Status:     models.TurnStatusInProgress,
		NextPlayer: &next,
		State:      game.InitialState(),
	}}

	registry := rules.NewRegistry(game)
	ex := newWithStore(fs, registry, nil)
	return ex, fs, matchID
}

func actionFor(col int) []byte {
	b, _ := json.Marshal(map[string]int{"column": col})
	return b
}

func TestSubmitTurnAppendsAndAdvancesTurn(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	user0 := *fs.match.Players[0].UserID

	match, err := ex.SubmitTurn(context.Background(), matchID, 0, actionFor(3), UserAuthority(user0))
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Len(t, fs.turns, 2)
	require.Equal(t, 1, fs.turns[1].Ordinal)
}

func TestSubmitTurnRejectsWrongActor(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	agent1 := *fs.match.Players[1].AgentID

	_, err := ex.SubmitTurn(context.Background(), matchID, 1, actionFor(3), AgentAuthority(agent1))
	var execErr *Error
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, NotYourTurn, execErr.Kind)
}

func TestSubmitTurnRejectsAuthorityNotHoldingSlot(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	_ = fs
	impostor := primitive.NewObjectID()

	_, err := ex.SubmitTurn(context.Background(), matchID, 0, actionFor(3), UserAuthority(impostor))
	var execErr *Error
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, NotYourTurn, execErr.Kind)
}

func TestSubmitTurnRejectsInvalidAction(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	user0 := *fs.match.Players[0].UserID

	_, err := ex.SubmitTurn(context.Background(), matchID, 0, actionFor(99), UserAuthority(user0))
	var execErr *Error
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, InvalidAction, execErr.Kind)
}

func TestSubmitTurnMatchOverRejectsFurtherTurns(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	user0 := *fs.match.Players[0].UserID

	winner := 0
	fs.turns = append(fs.turns, models.Turn{
		MatchID: matchID,
		Ordinal: 1,
		Status:  models.TurnStatusOver,
		Winner:  &winner,
		State:   fs.turns[0].State,
	})

	_, err := ex.SubmitTurn(context.Background(), matchID, 1, actionFor(0), UserAuthority(user0))
	var execErr *Error
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, MatchOver, execErr.Kind)
}

// TestSubmitTurnRaceLost reproduces a second writer racing for the same
// ordinal: it pre-inserts a competing turn at ordinal 1 between the fake
// store's load and the real submitter's append, so AppendTurn returns
// AlreadyTaken and SubmitTurn must surface RaceLost rather than silently
// overwriting or panicking.
func TestSubmitTurnRaceLost(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	user0 := *fs.match.Players[0].UserID

	// onWrite runs inside AppendTurn with fs.mu already held.
	fs.onWrite = func() {
		fs.turns = append(fs.turns, models.Turn{MatchID: matchID, Ordinal: 1, Status: models.TurnStatusInProgress, State: fs.turns[0].State})
	}

	_, err := ex.SubmitTurn(context.Background(), matchID, 0, actionFor(3), UserAuthority(user0))
	var execErr *Error
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, RaceLost, execErr.Kind)
}

// TestSubmitTurnAgentAuthorityDrivesTurn verifies an agent-bound slot can
// submit through AgentAuthority the same way a human submits through
// UserAuthority — the driver and a human caller share one code path.
func TestSubmitTurnAgentAuthorityDrivesTurn(t *testing.T) {
	ex, fs, matchID := newFixture(t)
	user0 := *fs.match.Players[0].UserID
	agent1 := *fs.match.Players[1].AgentID

	_, err := ex.SubmitTurn(context.Background(), matchID, 0, actionFor(3), UserAuthority(user0))
	require.NoError(t, err)

	match, err := ex.SubmitTurn(context.Background(), matchID, 1, actionFor(4), AgentAuthority(agent1))
	require.NoError(t, err)
	require.NotNil(t, match)
}

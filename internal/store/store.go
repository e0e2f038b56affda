// Package store wraps internal/db.MongoDB with the operations the Turn
// Executor and Agent Driver need: creating a match, loading its current
// tail, appending a turn under the unique (matchId, ordinal) index that is
// the sole serialization point for concurrent writers, and the agent CRUD
// and lookup paths the driver needs to reach an endpoint.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/db"
	"gameplay/internal/models"
)

var (
	ErrMatchNotFound = errors.New("store: match not found")
	ErrAgentNotFound = errors.New("store: agent not found")
	ErrBadSlot       = errors.New("store: slot must bind exactly one of user or agent")
)

// AppendOutcome reports the result of AppendTurn. A stale append against
// an already-completed match loses the same (matchId, ordinal) unique-index
// race a stale append against an in-progress match would, so it is not
// distinguished as its own outcome here — the executor's own tail-status
// check (step 2 of SubmitTurn) is what produces the client-visible
// MatchOver distinction.
type AppendOutcome int

const (
	Appended AppendOutcome = iota
	AlreadyTaken
)

// SlotSpec describes how to populate one of a match's two fixed player
// slots at creation time.
type SlotSpec struct {
	UserID  *primitive.ObjectID
	AgentID *primitive.ObjectID
}

func (s SlotSpec) valid() bool {
	return (s.UserID == nil) != (s.AgentID == nil)
}

type Store struct {
	db *db.MongoDB
}

func New(mongo *db.MongoDB) *Store {
	return &Store{db: mongo}
}

// CreateMatch inserts the match document, both player slots, and the
// initial turn (ordinal 0, the freshly-created game state, no action) as
// one logical unit. Mirrors the original create-match transaction that
// writes a match, both match_player rows, and match_turn row 0 together.
//
// When the deployment is backed by a MongoDB replica set this runs inside
// a session transaction; standalone (single-node) MongoDB does not support
// transactions, so this falls back to sequential inserts with a
// compensating delete of the match document if the turn insert fails.
func (s *Store) CreateMatch(ctx context.Context, creator primitive.ObjectID, game string, slot0, slot1 SlotSpec, initialState []byte) (primitive.ObjectID, error) {
	if !slot0.valid() || !slot1.valid() {
		return primitive.NilObjectID, ErrBadSlot
	}

	matchID := primitive.NewObjectID()
	match := models.Match{
		ID:        matchID,
		Game:      game,
		CreatedBy: creator,
		CreatedAt: time.Now(),
		Players: [2]models.PlayerSlot{
			{Number: 0, UserID: slot0.UserID, AgentID: slot0.AgentID},
			{Number: 1, UserID: slot1.UserID, AgentID: slot1.AgentID},
		},
	}
	turn0 := models.Turn{
		MatchID:   matchID,
		Ordinal:   0,
		CreatedAt: match.CreatedAt,
		Status:    models.TurnStatusInProgress,
		State:     initialState,
	}
	next := 0
	turn0.NextPlayer = &next

	write := func(sctx mongo.SessionContext) (interface{}, error) {
		if _, err := s.db.Matches().InsertOne(sctx, match); err != nil {
			return nil, fmt.Errorf("insert match: %w", err)
		}
		if _, err := s.db.MatchTurns().InsertOne(sctx, turn0); err != nil {
			return nil, fmt.Errorf("insert turn 0: %w", err)
		}
		return nil, nil
	}

	session, err := s.db.Client.StartSession()
	if err == nil {
		defer session.EndSession(ctx)
		_, txErr := session.WithTransaction(ctx, write)
		if txErr == nil {
			return matchID, nil
		}
		// Replica-set transactions unsupported or failed transiently; fall
		// through to the sequential path below rather than giving up.
	}

	if _, err := s.db.Matches().InsertOne(ctx, match); err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert match: %w", err)
	}
	if _, err := s.db.MatchTurns().InsertOne(ctx, turn0); err != nil {
		// Compensate: the match row without any turn log is not a valid
		// match, so remove it rather than leave an orphan.
		_, _ = s.db.Matches().DeleteOne(ctx, bson.M{"_id": matchID})
		return primitive.NilObjectID, fmt.Errorf("insert turn 0: %w", err)
	}
	return matchID, nil
}

// LoadMatch returns the match document and its full turn log ordered by
// ordinal ascending.
func (s *Store) LoadMatch(ctx context.Context, matchID primitive.ObjectID) (*models.Match, []models.Turn, error) {
	var match models.Match
	if err := s.db.Matches().FindOne(ctx, bson.M{"_id": matchID}).Decode(&match); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrMatchNotFound
		}
		return nil, nil, fmt.Errorf("load match: %w", err)
	}

	cur, err := s.db.MatchTurns().Find(ctx, bson.M{"matchId": matchID}, options.Find().SetSort(bson.D{{Key: "ordinal", Value: 1}}))
	if err != nil {
		return nil, nil, fmt.Errorf("load turns: %w", err)
	}
	defer cur.Close(ctx)

	var turns []models.Turn
	if err := cur.All(ctx, &turns); err != nil {
		return nil, nil, fmt.Errorf("decode turns: %w", err)
	}
	return &match, turns, nil
}

// AppendTurn inserts turn at turn.Ordinal. A second writer racing for
// the same (matchId, ordinal) loses the unique-index conflict and gets
// AlreadyTaken back rather than a generic error — the distinct signal the
// Executor needs to tell a legitimate race from an infrastructure failure.
func (s *Store) AppendTurn(ctx context.Context, turn models.Turn) (AppendOutcome, error) {
	_, err := s.db.MatchTurns().InsertOne(ctx, turn)
	if err == nil {
		return Appended, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return AlreadyTaken, nil
	}
	return Appended, fmt.Errorf("append turn: %w", err)
}

// FindAgentEndpoint looks up the HTTP endpoint for (owner, game, agentName).
func (s *Store) FindAgentEndpoint(ctx context.Context, owner primitive.ObjectID, game, agentName string) (*models.AgentEndpoint, error) {
	var agent models.Agent
	filter := bson.M{"ownerUserId": owner, "game": game, "agentName": agentName}
	if err := s.db.Agents().FindOne(ctx, filter).Decode(&agent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("find agent endpoint: %w", err)
	}
	return &agent.Endpoint, nil
}

// AgentByID loads an agent by its id, used by the driver when resolving a
// slot's AgentID into an endpoint to call.
func (s *Store) AgentByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.Agents().FindOne(ctx, bson.M{"_id": id}).Decode(&agent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("load agent: %w", err)
	}
	return &agent, nil
}

// CreateAgent inserts a new agent record with Endpoint.Status set to
// pending; callers (internal/httpapi) run the validation probe and call
// UpdateAgentValidation with the result before returning to the caller.
func (s *Store) CreateAgent(ctx context.Context, owner primitive.ObjectID, game, agentName, url string) (*models.Agent, error) {
	agent := models.Agent{
		ID:          primitive.NewObjectID(),
		OwnerUserID: owner,
		Game:        game,
		AgentName:   agentName,
		Endpoint: models.AgentEndpoint{
			URL:    url,
			Status: models.AgentEndpointPending,
		},
		CreatedAt: time.Now(),
	}
	if _, err := s.db.Agents().InsertOne(ctx, agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &agent, nil
}

// UpdateAgentValidation records the outcome of probing an agent's endpoint.
func (s *Store) UpdateAgentValidation(ctx context.Context, agentID primitive.ObjectID, status models.AgentEndpointStatus, lastError string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"endpoint.status":        status,
			"endpoint.lastError":     lastError,
			"endpoint.lastCheckedAt": now,
		},
	}
	_, err := s.db.Agents().UpdateOne(ctx, bson.M{"_id": agentID}, update)
	if err != nil {
		return fmt.Errorf("update agent validation: %w", err)
	}
	return nil
}

// ListInProgressMatchesWithAgentToMove finds matches whose latest turn is
// still in progress and whose next-to-move slot is bound to an agent —
// the restart-recovery scan's query.
func (s *Store) ListInProgressMatchesWithAgentToMove(ctx context.Context) ([]models.Match, error) {
	// The match_turns log has no "latest per match" index, so this scan
	// walks matches and checks each one's loaded tail; acceptable because
	// it only runs at startup and on an infrequent periodic safety-net
	// timer, never on the hot submit-turn path.
	cur, err := s.db.Matches().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer cur.Close(ctx)

	var candidates []models.Match
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("decode matches: %w", err)
	}

	var out []models.Match
	for _, m := range candidates {
		_, turns, err := s.LoadMatch(ctx, m.ID)
		if err != nil {
			continue
		}
		if len(turns) == 0 {
			continue
		}
		tail := turns[len(turns)-1]
		if tail.Status != models.TurnStatusInProgress || tail.NextPlayer == nil {
			continue
		}
		slot := m.Slot(*tail.NextPlayer)
		if slot != nil && slot.IsAgent() {
			out = append(out, m)
		}
	}
	return out, nil
}

// NewIdempotencyKey generates a fresh id for client-supplied idempotency
// tracking (e.g. agent registration retries).
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Package executor implements the Turn Executor: the sole writer of
// turns. SubmitTurn loads a match, checks authority and turn order,
// validates and applies the action against the game's rules, and appends
// the resulting turn under the store's (matchId, ordinal) uniqueness
// guarantee — the single serialization point for concurrent submitters.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/audit"
	"gameplay/internal/db"
	"gameplay/internal/models"
	"gameplay/internal/notifier"
	"gameplay/internal/rules"
	"gameplay/internal/services"
	"gameplay/internal/store"
)

// matchStore is the slice of *store.Store the Executor depends on. Scoped
// to an interface so tests can exercise the race-handling logic against an
// in-memory fake instead of a live MongoDB.
type matchStore interface {
	LoadMatch(ctx context.Context, matchID primitive.ObjectID) (*models.Match, []models.Turn, error)
	AppendTurn(ctx context.Context, turn models.Turn) (store.AppendOutcome, error)
}

// Kind identifies why SubmitTurn failed, mirroring the error taxonomy a
// caller (internal/httpapi) maps to an HTTP status.
type Kind string

const (
	MatchNotFound Kind = "match_not_found"
	MatchOver     Kind = "match_over"
	NotYourTurn   Kind = "not_your_turn"
	InvalidAction Kind = "invalid_action"
	RaceLost      Kind = "race_lost"
	Infra         Kind = "infra"
)

// Error is the error type SubmitTurn returns; callers should use
// errors.As to extract Kind and Detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// Authority carries who is trying to submit a turn: a human user or the
// agent the driver scheduled. Exactly one of UserID/AgentID is set.
type Authority struct {
	UserID  *primitive.ObjectID
	AgentID *primitive.ObjectID
}

// UserAuthority builds an Authority for a human user's submission.
func UserAuthority(userID primitive.ObjectID) Authority {
	return Authority{UserID: &userID}
}

// AgentAuthority builds an Authority for a driver-initiated submission.
func AgentAuthority(agentID primitive.ObjectID) Authority {
	return Authority{AgentID: &agentID}
}

// matches reports whether authority is allowed to act as slot.
func (a Authority) matches(slot *models.PlayerSlot) bool {
	if slot == nil {
		return false
	}
	if a.UserID != nil {
		return slot.UserID != nil && *slot.UserID == *a.UserID
	}
	if a.AgentID != nil {
		return slot.AgentID != nil && *slot.AgentID == *a.AgentID
	}
	return false
}

// completer runs post-match bookkeeping (Elo, match history) once a turn
// ends a match.
type completer interface {
	ProcessCompletion(ctx context.Context, match *models.Match, turns []models.Turn) (*services.Result, error)
}

type Executor struct {
	store     matchStore
	registry  *rules.Registry
	notifier  notifier.Publisher
	completer completer
	auditDB   *db.MongoDB
}

func New(st *store.Store, registry *rules.Registry, pub notifier.Publisher) *Executor {
	return &Executor{store: st, registry: registry, notifier: pub}
}

// SetCompleter wires the post-match bookkeeping hook. Optional: if unset,
// SubmitTurn still ends matches correctly, it just skips Elo/history
// recording (useful for tests that don't care about ratings).
func (e *Executor) SetCompleter(c completer) {
	e.completer = c
}

// SetAuditDB wires the audit log. Optional: if unset, match completions
// are simply not recorded to audit_log.
func (e *Executor) SetAuditDB(database *db.MongoDB) {
	e.auditDB = database
}

// newWithStore builds an Executor against any matchStore implementation;
// used by tests to exercise the race-handling paths against an in-memory
// fake instead of a live MongoDB.
func newWithStore(st matchStore, registry *rules.Registry, pub notifier.Publisher) *Executor {
	return &Executor{store: st, registry: registry, notifier: pub}
}

// SubmitTurn runs the seven-step turn-application algorithm. assertedActor
// is the caller's claim about whose turn it is (0 or 1); it must agree
// with the match's actual next_player, and authority must be the party
// bound to that slot.
func (e *Executor) SubmitTurn(ctx context.Context, matchID primitive.ObjectID, assertedActor int, action []byte, authority Authority) (*models.Match, error) {
	// 1. Load the match.
	match, turns, err := e.store.LoadMatch(ctx, matchID)
	if err != nil {
		if err == store.ErrMatchNotFound {
			return nil, fail(MatchNotFound, "", err)
		}
		return nil, fail(Infra, "load match", err)
	}
	if len(turns) == 0 {
		return nil, fail(Infra, "match has no turns", nil)
	}
	tail := turns[len(turns)-1]

	// 2. If the match is over, MatchOver.
	if tail.Status == models.TurnStatusOver {
		return nil, fail(MatchOver, "", nil)
	}
	if tail.NextPlayer == nil {
		return nil, fail(Infra, "in-progress tail missing next_player", nil)
	}
	expectedActor := *tail.NextPlayer

	// 3. asserted_actor must equal expected_actor.
	if assertedActor != expectedActor {
		return nil, fail(NotYourTurn, "asserted actor does not match next player", nil)
	}

	// 4. authority must match the slot at expected_actor.
	slot := match.Slot(expectedActor)
	if !authority.matches(slot) {
		return nil, fail(NotYourTurn, "authority does not hold this slot", nil)
	}

	game, ok := e.registry.Lookup(match.Game)
	if !ok {
		return nil, fail(Infra, fmt.Sprintf("unknown game %q", match.Game), nil)
	}

	// 5. Validate and apply the action.
	if !game.ValidAction(tail.State, action) {
		return nil, fail(InvalidAction, "action rejected by rules", nil)
	}
	newState, err := game.ApplyAction(tail.State, action)
	if err != nil {
		return nil, fail(InvalidAction, err.Error(), nil)
	}
	status, err := game.Status(newState)
	if err != nil {
		return nil, fail(Infra, "compute status", err)
	}

	// 6. next_ordinal, actor.
	nextOrdinal := tail.Ordinal + 1
	actor := expectedActor
	turn := models.Turn{
		MatchID:   matchID,
		Ordinal:   nextOrdinal,
		CreatedAt: time.Now(),
		Player:    &actor,
		Action:    action,
		State:     newState,
	}
	if status.Over {
		turn.Status = models.TurnStatusOver
		if status.HasWinner {
			w := status.Winner
			turn.Winner = &w
		}
	} else {
		turn.Status = models.TurnStatusInProgress
		np := status.NextPlayer
		turn.NextPlayer = &np
	}

	// 7. Append; AlreadyTaken -> RaceLost, else reload and return.
	outcome, err := e.store.AppendTurn(ctx, turn)
	if err != nil {
		return nil, fail(Infra, "append turn", err)
	}
	if outcome == store.AlreadyTaken {
		return nil, fail(RaceLost, "", nil)
	}

	updated, updatedTurns, err := e.store.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, fail(Infra, "reload match", err)
	}
	if status.Over {
		if e.completer != nil {
			if _, err := e.completer.ProcessCompletion(ctx, updated, updatedTurns); err != nil {
				log.Printf("executor: post-match completion failed for %s: %v", matchID.Hex(), err)
			}
		}
		if e.auditDB != nil {
			id := matchID
			audit.LogEvent(e.auditDB, audit.EventMatchCompleted, &id, nil, fmt.Sprintf("game=%s turns=%d", match.Game, len(updatedTurns)))
		}
	}
	if e.notifier != nil {
		e.notifier.Publish(matchID)
	}
	return updated, nil
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TurnStatus is the resulting status recorded on a turn.
type TurnStatus string

const (
	TurnStatusInProgress TurnStatus = "in_progress"
	TurnStatusOver       TurnStatus = "over"
)

// PlayerSlot binds one of a match's two fixed positions to exactly one of
// a user or an agent.
type PlayerSlot struct {
	Number  int                 `json:"number" bson:"number"`
	UserID  *primitive.ObjectID `json:"userId,omitempty" bson:"userId,omitempty"`
	AgentID *primitive.ObjectID `json:"agentId,omitempty" bson:"agentId,omitempty"`
}

// IsAgent reports whether this slot is bound to an agent.
func (s PlayerSlot) IsAgent() bool {
	return s.AgentID != nil
}

// Match is the match record: game tag, creator, and the two fixed slots.
// The turn log itself lives in the match_turns collection, keyed by
// (matchId, ordinal).
type Match struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Game      string             `json:"game" bson:"game"`
	CreatedBy primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Players   [2]PlayerSlot      `json:"players" bson:"players"`
}

// Slot returns the player slot at the given index, or nil if out of range.
func (m *Match) Slot(index int) *PlayerSlot {
	if index < 0 || index >= len(m.Players) {
		return nil
	}
	return &m.Players[index]
}

// Turn is one row of a match's append-only turn log. (MatchID, Ordinal) is
// the primary key and the sole serialization point for concurrent writers.
type Turn struct {
	MatchID    primitive.ObjectID `json:"matchId" bson:"matchId"`
	Ordinal    int                `json:"ordinal" bson:"ordinal"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	Player     *int               `json:"player,omitempty" bson:"player,omitempty"`
	Action     []byte             `json:"action,omitempty" bson:"action,omitempty"`
	Status     TurnStatus         `json:"status" bson:"status"`
	Winner     *int               `json:"winner,omitempty" bson:"winner,omitempty"`
	NextPlayer *int               `json:"nextPlayer,omitempty" bson:"nextPlayer,omitempty"`
	State      []byte             `json:"state" bson:"state"`
}

// AgentEndpointStatus is the validation state of an agent's HTTP endpoint.
type AgentEndpointStatus string

const (
	AgentEndpointPending AgentEndpointStatus = "pending"
	AgentEndpointOK      AgentEndpointStatus = "ok"
	AgentEndpointFailed  AgentEndpointStatus = "failed"
)

// AgentEndpoint is the 1:1 HTTP endpoint + validation status of an agent.
// The abstract storage schema in the spec models this as a separate
// relation; it is embedded here since the relation is always 1:1 (see
// DESIGN.md).
type AgentEndpoint struct {
	URL           string              `json:"url" bson:"url"`
	Status        AgentEndpointStatus `json:"status" bson:"status"`
	LastError     string              `json:"lastError,omitempty" bson:"lastError,omitempty"`
	LastCheckedAt *time.Time          `json:"lastCheckedAt,omitempty" bson:"lastCheckedAt,omitempty"`
}

// Agent is an agent identity: (owner_user, game, agent_name) uniquely
// identifies it. Immutable after creation except for Endpoint.Status/LastError.
type Agent struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerUserID primitive.ObjectID `json:"ownerUserId" bson:"ownerUserId"`
	Game        string             `json:"game" bson:"game"`
	AgentName   string             `json:"agentName" bson:"agentName"`
	Endpoint    AgentEndpoint      `json:"endpoint" bson:"endpoint"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

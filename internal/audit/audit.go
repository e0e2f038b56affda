// Package audit provides fire-and-forget recording of operationally
// interesting events — agent endpoint failures and match completions —
// for later inspection. It is not on the critical path of any request.
package audit

import (
	"context"
	"log"
	"time"

	"gameplay/internal/db"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types.
const (
	EventAgentFailure    = "agent_failure"
	EventMatchCompleted  = "match_completed"
	EventAgentRegistered = "agent_registered"
)

// Event represents an operationally interesting occurrence.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	EventType string              `bson:"eventType"`
	MatchID   *primitive.ObjectID `bson:"matchId,omitempty"`
	AgentID   *primitive.ObjectID `bson:"agentId,omitempty"`
	Details   string              `bson:"details,omitempty"`
	CreatedAt time.Time           `bson:"createdAt"`
}

// LogEvent writes an audit event to the database in a detached goroutine;
// the caller never blocks on or learns of a logging failure.
func LogEvent(database *db.MongoDB, eventType string, matchID, agentID *primitive.ObjectID, details string) {
	event := Event{
		EventType: eventType,
		MatchID:   matchID,
		AgentID:   agentID,
		Details:   details,
		CreatedAt: time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := database.AuditLog().InsertOne(ctx, bson.M{
			"eventType": event.EventType,
			"matchId":   event.MatchID,
			"agentId":   event.AgentID,
			"details":   event.Details,
			"createdAt": event.CreatedAt,
		}); err != nil {
			log.Printf("audit: write failed: %v", err)
		}
	}()
}

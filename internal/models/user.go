package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the core's record of a verified identity. The auth collaborator
// (outside this repo) is responsible for establishing who someone is;
// this struct only stores what the core itself needs to reference a
// player slot or a match creator.
type User struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ExternalID        string             `json:"externalId" bson:"externalId"` // opaque id from the auth collaborator
	DisplayName       string             `json:"displayName" bson:"displayName"`
	EloRating         int                `json:"eloRating" bson:"eloRating"`
	RankedGamesPlayed int                `json:"rankedGamesPlayed" bson:"rankedGamesPlayed"`
	RankedWins        int                `json:"rankedWins" bson:"rankedWins"`
	RankedLosses      int                `json:"rankedLosses" bson:"rankedLosses"`
	RankedDraws       int                `json:"rankedDraws" bson:"rankedDraws"`
	TotalGamesPlayed  int                `json:"totalGamesPlayed" bson:"totalGamesPlayed"`
	IsActive          bool               `json:"isActive" bson:"isActive"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// MatchHistory is a denormalized record of a completed match, written once
// by the completion service for fast history/leaderboard reads.
type MatchHistory struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	MatchID        primitive.ObjectID  `json:"matchId" bson:"matchId"`
	Game           string              `json:"game" bson:"game"`
	IsRanked       bool                `json:"isRanked" bson:"isRanked"`
	Slot0UserID    *primitive.ObjectID `json:"slot0UserId,omitempty" bson:"slot0UserId,omitempty"`
	Slot0AgentName string              `json:"slot0AgentName,omitempty" bson:"slot0AgentName,omitempty"`
	Slot0EloStart  int                 `json:"slot0EloStart" bson:"slot0EloStart"`
	Slot0EloEnd    int                 `json:"slot0EloEnd" bson:"slot0EloEnd"`
	Slot1UserID    *primitive.ObjectID `json:"slot1UserId,omitempty" bson:"slot1UserId,omitempty"`
	Slot1AgentName string              `json:"slot1AgentName,omitempty" bson:"slot1AgentName,omitempty"`
	Slot1EloStart  int                 `json:"slot1EloStart" bson:"slot1EloStart"`
	Slot1EloEnd    int                 `json:"slot1EloEnd" bson:"slot1EloEnd"`
	Winner         *int                `json:"winner,omitempty" bson:"winner,omitempty"` // nil = tie
	TotalTurns     int                 `json:"totalTurns" bson:"totalTurns"`
	MatchDuration  int                 `json:"matchDuration" bson:"matchDuration"` // seconds
	CompletedAt    time.Time           `json:"completedAt" bson:"completedAt"`
}

// Default values for newly created users.
const DefaultEloRating = 1200

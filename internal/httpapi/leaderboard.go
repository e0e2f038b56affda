package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gameplay/internal/models"
)

type leaderboardEntry struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"displayName"`
	EloRating   int    `json:"eloRating"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
	GamesPlayed int    `json:"gamesPlayed"`
}

// GetLeaderboard returns the top 50 humans or agents by Elo.
// GET /api/leaderboard?type=players|agents
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	leaderboardType := r.URL.Query().Get("type")

	var entries []leaderboardEntry
	if leaderboardType == "agents" {
		entries = h.agentLeaderboard(ctx)
	} else {
		entries = h.playerLeaderboard(ctx)
	}
	if entries == nil {
		entries = []leaderboardEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) playerLeaderboard(ctx context.Context) []leaderboardEntry {
	opts := options.Find().SetSort(bson.M{"eloRating": -1}).SetLimit(50)
	cursor, err := h.db.Users().Find(ctx, bson.M{
		"rankedGamesPlayed": bson.M{"$gt": 0},
		"isActive":          true,
	}, opts)
	if err != nil {
		return nil
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil
	}

	entries := make([]leaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = leaderboardEntry{
			Rank:        i + 1,
			DisplayName: u.DisplayName,
			EloRating:   u.EloRating,
			Wins:        u.RankedWins,
			Losses:      u.RankedLosses,
			Draws:       u.RankedDraws,
			GamesPlayed: u.RankedGamesPlayed,
		}
	}
	return entries
}

func (h *Handler) agentLeaderboard(ctx context.Context) []leaderboardEntry {
	opts := options.Find().SetSort(bson.M{"eloRating": -1}).SetLimit(50)
	cursor, err := h.db.AgentRatings().Find(ctx, bson.M{"rankedGamesPlayed": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil
	}
	defer cursor.Close(ctx)

	var ratings []models.AgentRating
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil
	}

	ownerIDs := make([]primitive.ObjectID, 0, len(ratings))
	for _, a := range ratings {
		ownerIDs = append(ownerIDs, a.OwnerUserID)
	}
	ownerNames := make(map[primitive.ObjectID]string)
	if len(ownerIDs) > 0 {
		userCursor, err := h.db.Users().Find(ctx, bson.M{"_id": bson.M{"$in": ownerIDs}}, options.Find().SetProjection(bson.M{"displayName": 1}))
		if err == nil {
			defer userCursor.Close(ctx)
			var users []models.User
			if userCursor.All(ctx, &users) == nil {
				for _, u := range users {
					ownerNames[u.ID] = u.DisplayName
				}
			}
		}
	}

	entries := make([]leaderboardEntry, len(ratings))
	for i, a := range ratings {
		ownerName := ownerNames[a.OwnerUserID]
		if ownerName == "" {
			ownerName = "unknown"
		}
		entries[i] = leaderboardEntry{
			Rank:        i + 1,
			DisplayName: ownerName + ":" + a.AgentName,
			EloRating:   a.EloRating,
			Wins:        a.Wins,
			Losses:      a.Losses,
			Draws:       a.Draws,
			GamesPlayed: a.RankedGamesPlayed,
		}
	}
	return entries
}

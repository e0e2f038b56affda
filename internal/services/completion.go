// Package services implements post-match bookkeeping that runs once a
// match's tail turn is Over: Elo rating updates for both slots (when both
// are ranked participants) and a denormalized MatchHistory row.
package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gameplay/internal/db"
	"gameplay/internal/elo"
	"gameplay/internal/models"
	"gameplay/internal/store"
)

type CompletionService struct {
	db         *db.MongoDB
	store      *store.Store
	calculator *elo.Calculator
}

func NewCompletionService(database *db.MongoDB, st *store.Store) *CompletionService {
	return &CompletionService{db: database, store: st, calculator: elo.NewCalculator()}
}

// Result summarizes what ProcessCompletion did, useful for logging.
type Result struct {
	Slot0EloDelta int
	Slot1EloDelta int
}

// ratingParty is whichever of a User or an Agent a slot resolves to.
type ratingParty struct {
	userID      *primitive.ObjectID
	ownerUserID primitive.ObjectID
	agentName   string
	isAgent     bool
}

// ProcessCompletion runs once per completed match. Both human and agent
// slots are ranked — only the collection (users vs agent_ratings) differs.
func (s *CompletionService) ProcessCompletion(ctx context.Context, match *models.Match, turns []models.Turn) (*Result, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("completion: match %s has no turns", match.ID.Hex())
	}
	tail := turns[len(turns)-1]
	if tail.Status != models.TurnStatusOver {
		return nil, fmt.Errorf("completion: match %s is not over", match.ID.Hex())
	}

	party0, err := s.resolveParty(ctx, &match.Players[0])
	if err != nil {
		return nil, err
	}
	party1, err := s.resolveParty(ctx, &match.Players[1])
	if err != nil {
		return nil, err
	}

	slot0Result, slot1Result := elo.GetGameResultFromWinner(tail.Winner)

	rating0, games0, err := s.currentRating(ctx, party0)
	if err != nil {
		return nil, err
	}
	rating1, games1, err := s.currentRating(ctx, party1)
	if err != nil {
		return nil, err
	}

	newRating0 := s.calculator.CalculateNewRating(rating0, rating1, slot0Result, games0)
	newRating1 := s.calculator.CalculateNewRating(rating1, rating0, slot1Result, games1)

	if err := s.applyRating(ctx, party0, newRating0, slot0Result); err != nil {
		return nil, err
	}
	if err := s.applyRating(ctx, party1, newRating1, slot1Result); err != nil {
		return nil, err
	}

	history := models.MatchHistory{
		ID:            primitive.NewObjectID(),
		MatchID:       match.ID,
		Game:          match.Game,
		IsRanked:      true,
		Slot0UserID:   party0.userID,
		Slot1UserID:   party1.userID,
		Slot0EloStart: rating0,
		Slot0EloEnd:   newRating0,
		Slot1EloStart: rating1,
		Slot1EloEnd:   newRating1,
		Winner:        tail.Winner,
		TotalTurns:    len(turns) - 1, // ordinal 0 is the initial state, not a move
		MatchDuration: int(tail.CreatedAt.Sub(match.CreatedAt).Seconds()),
		CompletedAt:   tail.CreatedAt,
	}
	if party0.isAgent {
		history.Slot0AgentName = party0.agentName
	}
	if party1.isAgent {
		history.Slot1AgentName = party1.agentName
	}

	if _, err := s.db.MatchHistory().InsertOne(ctx, history); err != nil {
		return nil, fmt.Errorf("completion: insert match history: %w", err)
	}

	return &Result{
		Slot0EloDelta: newRating0 - rating0,
		Slot1EloDelta: newRating1 - rating1,
	}, nil
}

func (s *CompletionService) resolveParty(ctx context.Context, slot *models.PlayerSlot) (*ratingParty, error) {
	if slot.IsAgent() {
		agent, err := s.store.AgentByID(ctx, *slot.AgentID)
		if err != nil {
			return nil, fmt.Errorf("completion: resolve agent slot: %w", err)
		}
		return &ratingParty{ownerUserID: agent.OwnerUserID, agentName: agent.AgentName, isAgent: true}, nil
	}
	return &ratingParty{userID: slot.UserID}, nil
}

func (s *CompletionService) currentRating(ctx context.Context, party *ratingParty) (rating, gamesPlayed int, err error) {
	if party.isAgent {
		var ar models.AgentRating
		filter := bson.M{"ownerUserId": party.ownerUserID, "agentName": party.agentName}
		err := s.db.AgentRatings().FindOne(ctx, filter).Decode(&ar)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return models.DefaultEloRating, 0, nil
			}
			return 0, 0, fmt.Errorf("completion: load agent rating: %w", err)
		}
		return ar.EloRating, ar.RankedGamesPlayed, nil
	}
	var user models.User
	err = s.db.Users().FindOne(ctx, bson.M{"_id": *party.userID}).Decode(&user)
	if err != nil {
		return 0, 0, fmt.Errorf("completion: load user rating: %w", err)
	}
	return user.EloRating, user.RankedGamesPlayed, nil
}

func (s *CompletionService) applyRating(ctx context.Context, party *ratingParty, newRating int, result elo.GameResult) error {
	winsInc, lossesInc, drawsInc := 0, 0, 0
	switch result {
	case elo.Win:
		winsInc = 1
	case elo.Loss:
		lossesInc = 1
	case elo.Draw:
		drawsInc = 1
	}

	if party.isAgent {
		filter := bson.M{"ownerUserId": party.ownerUserID, "agentName": party.agentName}
		update := bson.M{
			"$set":         bson.M{"eloRating": newRating, "updatedAt": time.Now()},
			"$inc":         bson.M{"rankedGamesPlayed": 1, "wins": winsInc, "losses": lossesInc, "draws": drawsInc},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "ownerUserId": party.ownerUserID, "agentName": party.agentName, "createdAt": time.Now()},
		}
		_, err := s.db.AgentRatings().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("completion: update agent rating: %w", err)
		}
		return nil
	}

	_, err := s.db.Users().UpdateOne(ctx,
		bson.M{"_id": *party.userID},
		bson.M{
			"$set": bson.M{"eloRating": newRating, "updatedAt": time.Now()},
			"$inc": bson.M{"rankedGamesPlayed": 1, "rankedWins": winsInc, "rankedLosses": lossesInc, "rankedDraws": drawsInc, "totalGamesPlayed": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("completion: update user rating: %w", err)
	}
	return nil
}

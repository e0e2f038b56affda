package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(500).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		Client:   client,
		Database: client.Database(database),
	}

	go db.ensureIndexes()

	return db, nil
}

// ensureIndexes creates all required indexes. Called once on startup.
func (m *MongoDB) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			"users",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "eloRating", Value: -1}}},
			},
		},
		{
			"agents",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "ownerUserId", Value: 1}, {Key: "game", Value: 1}, {Key: "agentName", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			"matches",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "players.userId", Value: 1}}},
				{Keys: bson.D{{Key: "players.agentId", Value: 1}}},
			},
		},
		{
			"match_turns",
			[]mongo.IndexModel{
				// The sole serialization point: a second writer racing to
				// append the same (matchId, ordinal) loses with a duplicate
				// key error, which the store translates to AlreadyTaken.
				{Keys: bson.D{{Key: "matchId", Value: 1}, {Key: "ordinal", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			"match_history",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "slot0UserId", Value: 1}, {Key: "completedAt", Value: -1}}},
				{Keys: bson.D{{Key: "slot1UserId", Value: 1}, {Key: "completedAt", Value: -1}}},
				{Keys: bson.D{{Key: "matchId", Value: 1}}},
			},
		},
		{
			"agent_ratings",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "ownerUserId", Value: 1}, {Key: "agentName", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "eloRating", Value: -1}}},
			},
		},
		{
			"audit_log",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(90 * 24 * 3600)},
				{Keys: bson.D{{Key: "matchId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
		{
			"notifications",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(60)},
				{Keys: bson.D{{Key: "matchId", Value: 1}}},
			},
		},
		{
			"cleanup_locks",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "lockedUntil", Value: 1}}},
			},
		},
	}

	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		_, err := coll.Indexes().CreateMany(ctx, idx.models)
		if err != nil {
			log.Printf("Warning: failed to create indexes on %s: %v", idx.collection, err)
		}
	}

	log.Println("Database indexes ensured")
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Users() *mongo.Collection {
	return m.Database.Collection("users")
}

func (m *MongoDB) Agents() *mongo.Collection {
	return m.Database.Collection("agents")
}

func (m *MongoDB) Matches() *mongo.Collection {
	return m.Database.Collection("matches")
}

func (m *MongoDB) MatchTurns() *mongo.Collection {
	return m.Database.Collection("match_turns")
}

func (m *MongoDB) MatchHistory() *mongo.Collection {
	return m.Database.Collection("match_history")
}

func (m *MongoDB) AgentRatings() *mongo.Collection {
	return m.Database.Collection("agent_ratings")
}

func (m *MongoDB) AuditLog() *mongo.Collection {
	return m.Database.Collection("audit_log")
}

func (m *MongoDB) Notifications() *mongo.Collection {
	return m.Database.Collection("notifications")
}

func (m *MongoDB) CleanupLocks() *mongo.Collection {
	return m.Database.Collection("cleanup_locks")
}

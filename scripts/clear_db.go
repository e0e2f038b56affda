package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"gameplay/internal/config"
	"gameplay/internal/db"
)

func main() {
	cfg, err := config.Load("dev")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	ctx := context.Background()

	deleteAll := func(name string, del func(ctx context.Context) (int64, error)) {
		count, err := del(ctx)
		if err != nil {
			log.Fatalf("Failed to delete %s: %v", name, err)
		}
		fmt.Printf("Deleted %d %s\n", count, name)
	}

	deleteAll("matches", func(ctx context.Context) (int64, error) {
		res, err := mongodb.Matches().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("match turns", func(ctx context.Context) (int64, error) {
		res, err := mongodb.MatchTurns().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("match history records", func(ctx context.Context) (int64, error) {
		res, err := mongodb.MatchHistory().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("agent ratings", func(ctx context.Context) (int64, error) {
		res, err := mongodb.AgentRatings().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("agents", func(ctx context.Context) (int64, error) {
		res, err := mongodb.Agents().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("audit log entries", func(ctx context.Context) (int64, error) {
		res, err := mongodb.AuditLog().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("notifications", func(ctx context.Context) (int64, error) {
		res, err := mongodb.Notifications().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
	deleteAll("cleanup locks", func(ctx context.Context) (int64, error) {
		res, err := mongodb.CleanupLocks().DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})

	fmt.Println("Database cleared successfully")
}

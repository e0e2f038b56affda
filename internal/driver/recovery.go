package driver

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gameplay/internal/db"
)

const (
	recoveryLockID       = "agent_driver_recovery"
	recoveryLockDuration = 30 * time.Second
)

// cleanupLock is the document shape used to coordinate recovery across
// multiple server instances, so a restart storm doesn't have every
// instance re-triggering the same matches at once.
type cleanupLock struct {
	ID          string    `bson:"_id"`
	LockedUntil time.Time `bson:"lockedUntil"`
	LockedBy    string    `bson:"lockedBy"`
}

// tryAcquireLock attempts to (re-)claim the recovery lock, succeeding if
// no lock document exists yet or the existing one has expired. The filter
// and upsert together make this a single atomic claim: two instances
// racing here only ever have one `UpdateOne` report a match or an upsert.
func tryAcquireLock(ctx context.Context, mongodb *db.MongoDB, holder string) bool {
	now := time.Now()
	filter := bson.M{
		"_id":         recoveryLockID,
		"lockedUntil": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"lockedUntil": now.Add(recoveryLockDuration),
			"lockedBy":    holder,
		},
	}
	res, err := mongodb.CleanupLocks().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the upsert race to another instance that still holds
			// an unexpired lock.
			return false
		}
		log.Printf("driver: recovery lock acquire error: %v", err)
		return false
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0
}

// RecoverInProgressMatches runs the startup recovery scan: find every
// in-progress match whose next mover is an agent and trigger the driver
// for it. Safe to call redundantly — duplicate triggers coalesce, and
// duplicate turn submissions lose the store's ordinal race and become
// no-ops.
func (d *Driver) RecoverInProgressMatches(ctx context.Context, mongodb *db.MongoDB, holder string) {
	if !tryAcquireLock(ctx, mongodb, holder) {
		log.Printf("driver: recovery lock held by another instance, skipping this pass")
		return
	}

	matches, err := d.store.ListInProgressMatchesWithAgentToMove(ctx)
	if err != nil {
		log.Printf("driver: recovery scan failed: %v", err)
		return
	}
	for _, m := range matches {
		log.Printf("driver: recovering match %s", m.ID.Hex())
		d.Trigger(m.ID)
	}
	if len(matches) == 0 {
		log.Printf("driver: recovery scan found no stalled agent-to-move matches")
	}
}

// StartPeriodicRecovery launches a background ticker that re-runs the
// recovery scan every interval, as a safety net against a missed Trigger
// (e.g. a process crash between AppendTurn and the in-memory Trigger
// call).
func (d *Driver) StartPeriodicRecovery(ctx context.Context, mongodb *db.MongoDB, holder string, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.RecoverInProgressMatches(ctx, mongodb, holder)
			}
		}
	}()
	log.Printf("driver: periodic recovery scan started (interval: %v)", interval)
}

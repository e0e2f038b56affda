package notifier

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// notificationEvent is the document stored in the notifications
// collection so that every server instance, not just the one that
// accepted the triggering turn, publishes to its own local Hub.
type notificationEvent struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	OriginMachineID string             `bson:"originMachineId"`
	MatchID         primitive.ObjectID `bson:"matchId"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

// CrossInstance publishes match-changed events to MongoDB and watches for
// events originating on other instances via a change stream, so a Hub's
// local subscribers see matches updated by any server in the fleet.
type CrossInstance struct {
	machineID  string
	collection *mongo.Collection
	hub        *Hub

	mu         sync.Mutex
	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

func generateMachineID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewCrossInstance builds a cross-instance publisher bound to hub. If
// collection is nil, Publish becomes a local-only no-op and Start does
// nothing — a single-instance deployment pays no Mongo cost for this.
func NewCrossInstance(collection *mongo.Collection, hub *Hub) *CrossInstance {
	return &CrossInstance{
		machineID:  generateMachineID(),
		collection: collection,
		hub:        hub,
	}
}

// Start begins the change-stream watcher in a background goroutine.
func (c *CrossInstance) Start() {
	if c.collection == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel
	c.running = true
	c.wg.Add(1)
	go c.watchLoop(ctx)
	log.Printf("notifier: cross-instance fan-out started (machineId=%s)", c.machineID)
}

// Stop cancels the watcher and waits for it to exit.
func (c *CrossInstance) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}

// Publish records matchID as changed both locally (via the Hub) and, if a
// collection is configured, for every other instance to pick up.
func (c *CrossInstance) Publish(matchID primitive.ObjectID) {
	c.hub.Publish(matchID)
	if c.collection == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	doc := notificationEvent{
		OriginMachineID: c.machineID,
		MatchID:         matchID,
		CreatedAt:       time.Now(),
	}
	if _, err := c.collection.InsertOne(ctx, doc); err != nil {
		log.Printf("notifier: failed to publish cross-instance event: %v", err)
	}
}

func (c *CrossInstance) watchLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("notifier: change stream error (reconnecting in 2s): %v", err)
		time.Sleep(2 * time.Second)
	}
}

func (c *CrossInstance) watch(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := c.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(ctx)

	for cs.Next(ctx) {
		var changeDoc struct {
			FullDocument notificationEvent `bson:"fullDocument"`
		}
		if err := cs.Decode(&changeDoc); err != nil {
			log.Printf("notifier: failed to decode change event: %v", err)
			continue
		}
		event := changeDoc.FullDocument
		if event.OriginMachineID == c.machineID {
			continue
		}
		c.hub.Publish(event.MatchID)
	}
	return cs.Err()
}

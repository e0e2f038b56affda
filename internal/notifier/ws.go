package notifier

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// ServeWebSocket upgrades r to a websocket connection and forwards every
// "match changed" event for matchID as a single text frame, exactly like
// the SSE transport but over gorilla/websocket — kept as an alternate
// transport on the same Hub so the dependency stays genuinely exercised
// rather than vestigial.
func ServeWebSocket(hub *Hub, matchID primitive.ObjectID, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notifier: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := hub.Watch(matchID)
	defer unsubscribe()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	// Drain inbound frames on a background goroutine purely so the
	// connection notices the client going away; this endpoint is
	// one-directional by design.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"match_changed"}`)); err != nil {
				return
			}
		}
	}
}

// Package driver implements the Agent Driver: when a match's tail turn is
// in progress and the next player slot holds an agent, the driver invokes
// that agent's HTTP endpoint and feeds the parsed response back through
// the Turn Executor. It loops until the match is over or a human is next
// to move.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gameplay/internal/audit"
	"gameplay/internal/db"
	"gameplay/internal/executor"
	"gameplay/internal/models"
	"gameplay/internal/rules"
	"gameplay/internal/store"
)

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
	backoffBase    = 1 * time.Second
)

// Header names in the agent HTTP contract.
const (
	HeaderGame        = "Gameplay-Game"
	HeaderMatchID     = "Gameplay-Match-ID"
	HeaderPlayer      = "Gameplay-Player"
	HeaderMatchStatus = "Gameplay-Match-Status"

	StatusInProgress = "InProgress"
	StatusOver       = "Over"
)

// Driver drives agent-to-move matches via outbound HTTP. At most one
// runLoop goroutine is ever in flight per match; a second Trigger call
// arriving mid-run coalesces into the existing run rather than starting a
// duplicate one (the mailbox pattern below).
type Driver struct {
	store    *store.Store
	executor *executor.Executor
	registry *rules.Registry

	mu        sync.Mutex
	running   map[primitive.ObjectID]bool
	mailboxes map[primitive.ObjectID]chan struct{}

	clientsMu sync.Mutex
	clients   map[primitive.ObjectID]*http.Client

	auditDB *db.MongoDB
}

func New(st *store.Store, ex *executor.Executor, registry *rules.Registry) *Driver {
	return &Driver{
		store:     st,
		executor:  ex,
		registry:  registry,
		running:   make(map[primitive.ObjectID]bool),
		mailboxes: make(map[primitive.ObjectID]chan struct{}),
		clients:   make(map[primitive.ObjectID]*http.Client),
	}
}

// SetAuditDB wires the audit log. Optional: if unset, agent failures are
// simply not recorded to audit_log.
func (d *Driver) SetAuditDB(database *db.MongoDB) {
	d.auditDB = database
}

func (d *Driver) logAgentFailure(agentID primitive.ObjectID, matchID primitive.ObjectID, detail string) {
	if d.auditDB == nil {
		return
	}
	audit.LogEvent(d.auditDB, audit.EventAgentFailure, &matchID, &agentID, detail)
}

// clientFor returns the pooled HTTP client for agentID, creating one on
// first use so connections to the same agent are reused across turns.
func (d *Driver) clientFor(agentID primitive.ObjectID) *http.Client {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()
	c, ok := d.clients[agentID]
	if !ok {
		c = &http.Client{Timeout: requestTimeout}
		d.clients[agentID] = c
	}
	return c
}

// Trigger asks the driver to (re-)check matchID for agent-to-move work.
// Non-blocking: if a loop is already running for this match, the request
// coalesces into it; otherwise a new loop is started.
func (d *Driver) Trigger(matchID primitive.ObjectID) {
	d.mu.Lock()
	if d.running[matchID] {
		if mb, ok := d.mailboxes[matchID]; ok {
			select {
			case mb <- struct{}{}:
			default:
			}
		}
		d.mu.Unlock()
		return
	}
	d.running[matchID] = true
	mb := make(chan struct{}, 1)
	d.mailboxes[matchID] = mb
	d.mu.Unlock()

	go d.runLoop(matchID)
}

// finish ends the run for matchID. If a Trigger was queued in the mailbox
// while the run was in flight, one more run is started instead, so a
// change signalled after the run's last load is not missed.
func (d *Driver) finish(matchID primitive.ObjectID) {
	d.mu.Lock()
	select {
	case <-d.mailboxes[matchID]:
		d.mu.Unlock()
		go d.runLoop(matchID)
		return
	default:
	}
	delete(d.running, matchID)
	delete(d.mailboxes, matchID)
	d.mu.Unlock()
}

// runLoop repeatedly drives matchID forward while its tail is in-progress
// with an agent next to move, stopping as soon as it is human-to-move or
// over.
func (d *Driver) runLoop(matchID primitive.ObjectID) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("driver: panic driving match %s: %v", matchID.Hex(), r)
		}
		d.finish(matchID)
	}()

	ctx := context.Background()
	for {
		match, turns, err := d.store.LoadMatch(ctx, matchID)
		if err != nil {
			log.Printf("driver: load match %s: %v", matchID.Hex(), err)
			return
		}
		if len(turns) == 0 {
			return
		}
		tail := turns[len(turns)-1]
		if tail.Status == models.TurnStatusOver {
			d.notifyTerminal(ctx, match, tail)
			return
		}
		if tail.NextPlayer == nil {
			return
		}
		slot := match.Slot(*tail.NextPlayer)
		if slot == nil || !slot.IsAgent() {
			return
		}

		agent, err := d.store.AgentByID(ctx, *slot.AgentID)
		if err != nil {
			log.Printf("driver: load agent for match %s: %v", matchID.Hex(), err)
			return
		}

		action, err := d.requestAction(ctx, agent, match, tail, *slot)
		if err != nil {
			log.Printf("driver: agent %s failed for match %s: %v", agent.AgentName, matchID.Hex(), err)
			_ = d.store.UpdateAgentValidation(ctx, agent.ID, models.AgentEndpointFailed, err.Error())
			d.logAgentFailure(agent.ID, matchID, err.Error())
			return
		}

		authority := executor.AgentAuthority(agent.ID)
		_, err = d.executor.SubmitTurn(ctx, matchID, *tail.NextPlayer, action, authority)
		if err != nil {
			if execErr, ok := err.(*executor.Error); ok && execErr.Kind == executor.RaceLost {
				// Someone else already advanced this match; re-read the
				// (now different) tail on the next loop iteration.
				continue
			}
			if execErr, ok := err.(*executor.Error); ok && execErr.Kind == executor.InvalidAction {
				log.Printf("driver: agent %s returned an invalid action for match %s: %s", agent.AgentName, matchID.Hex(), execErr.Detail)
				_ = d.store.UpdateAgentValidation(ctx, agent.ID, models.AgentEndpointFailed, execErr.Detail)
				d.logAgentFailure(agent.ID, matchID, execErr.Detail)
				return
			}
			log.Printf("driver: submit turn failed for match %s: %v", matchID.Hex(), err)
			return
		}
		// Loop: re-inspect the new tail in case the next mover is also an
		// agent (e.g. the opponent slot is a second agent).
	}
}

// requestAction POSTs the current state to the agent's endpoint, retrying
// transport errors and non-2xx responses with exponential backoff, and parses the action
// JSON from a successful response.
func (d *Driver) requestAction(ctx context.Context, agent *models.Agent, match *models.Match, tail models.Turn, slot models.PlayerSlot) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint.URL, bytes.NewReader(tail.State))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderGame, match.Game)
		req.Header.Set(HeaderMatchID, match.ID.Hex())
		req.Header.Set(HeaderPlayer, fmt.Sprintf("%d", slot.Number))
		req.Header.Set(HeaderMatchStatus, StatusInProgress)

		resp, err := d.clientFor(agent.ID).Do(req)
		if err != nil {
			return nil, err // transport error: retryable
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
		}

		var probe map[string]any
		if err := json.Unmarshal(body, &probe); err != nil {
			// Malformed JSON is a well-formed agent failure, not a
			// transport hiccup; retrying it would loop forever.
			return nil, backoff.Permanent(fmt.Errorf("malformed action JSON: %w", err))
		}
		return body, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffBase

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxAttempts),
	)
}

// notifyTerminal sends a best-effort final advisory to each agent slot
// after a match ends. Responses are ignored; failures are logged only.
func (d *Driver) notifyTerminal(ctx context.Context, match *models.Match, tail models.Turn) {
	for _, slot := range match.Players {
		if !slot.IsAgent() {
			continue
		}
		agent, err := d.store.AgentByID(ctx, *slot.AgentID)
		if err != nil {
			log.Printf("driver: terminal notify: load agent for match %s: %v", match.ID.Hex(), err)
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint.URL, bytes.NewReader(tail.State))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderGame, match.Game)
		req.Header.Set(HeaderMatchID, match.ID.Hex())
		req.Header.Set(HeaderPlayer, fmt.Sprintf("%d", slot.Number))
		req.Header.Set(HeaderMatchStatus, StatusOver)

		resp, err := d.clientFor(agent.ID).Do(req)
		if err != nil {
			log.Printf("driver: terminal notify to %s failed: %v", agent.AgentName, err)
			continue
		}
		resp.Body.Close()
	}
}

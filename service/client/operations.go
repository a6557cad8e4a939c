package client

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/itiky/optimistic-sync/codec"
	"github.com/itiky/optimistic-sync/model"
)

// initSnapshot fetches the initial snapshot version.
func (c *Client) initSnapshot() error {
	req := model.GetSessionRequest{
		ClientId:  c.id,
		SessionId: c.sessionId,
	}
	res := model.GetSessionResponse{}

	opStart := time.Now()
	if err := c.rpcClient.Call("SyncService.GetSession", req, &res); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	opDur := time.Since(opStart)

	c.baseVersion = res.Version
	c.baseSnapshot = res.Snapshot
	c.overwriteServerState(res.Snapshot)

	log.Printf("%s: initial snapshot v%d received: %d messages within %v",
		c.String(), res.Version, len(res.Snapshot.Messages), opDur)

	return nil
}

// submitMessage applies a message operation optimistically and submits it.
func (c *Client) submitMessage() error {
	content := fmt.Sprintf("message %d from %s", rand.Int31(), c.id)

	op, err := model.NewAddMessageOperation(c.sessionId, content)
	if err != nil {
		return fmt.Errorf("model.NewAddMessageOperation: %w", err)
	}

	opId, effects := c.manager.Apply(op)
	c.handleEffects(effects)

	req := model.SubmitOperationRequest{
		ClientId:  c.id,
		SessionId: c.sessionId,
		Operation: model.OperationRequest{
			Type:    model.AddMessageOperationType,
			Content: content,
		},
	}
	res := model.SubmitOperationResponse{}

	opStart := time.Now()
	if err := c.rpcClient.Call("SyncService.SubmitOperation", req, &res); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	opDur := time.Since(opStart)

	if res.Queued {
		// The guess was wrong: the server queued the message
		event := model.QueueItemAddedEvent{
			SessionId: c.sessionId,
			ItemId:    res.AssignedId,
			Content:   content,
		}
		c.handleEffects(c.manager.Reconcile(c.sessionId, event))
	} else {
		c.handleEffects(c.manager.Confirm(c.sessionId, opId, model.MessageConfirmData{MessageId: res.AssignedId}))
	}

	log.Printf("%s: [%v] operation %s submitted (queued: %v)", c.String(), opDur, opId, res.Queued)

	// Update stats
	monitor.OperationSubmitted(opDur)

	return nil
}

// pollUpdates requests a new snapshot version (if exists) and updates the
// local state: events drive reconciliation, the encoded payload upgrades
// the base snapshot.
func (c *Client) pollUpdates() error {
	req := model.GetUpdatesRequest{
		SessionId: c.sessionId,
		Version:   c.baseVersion,
	}
	res := model.GetUpdatesResponse{}

	opStart := time.Now()
	if err := c.rpcClient.Call("SyncService.GetUpdates", req, &res); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}

	if res.Version == c.baseVersion {
		return nil
	}

	for _, record := range res.Events {
		event, err := record.Event()
		if err != nil {
			return fmt.Errorf("event record: %w", err)
		}
		c.handleEffects(c.manager.Reconcile(c.sessionId, event))
	}

	snapshot, err := c.decodeSnapshot(res.Snapshot)
	if err != nil {
		// A decode inconsistency is fatal: an upstream protocol bug,
		// silently absorbing it would corrupt the local state
		log.Fatalf("%s: decoding snapshot payload: %v", c.String(), err)
	}
	opStop := time.Now()
	opDur := opStop.Sub(opStart)

	c.baseVersion = res.Version
	c.baseSnapshot = snapshot
	c.overwriteServerState(snapshot)

	pending := len(c.manager.GetState(c.sessionId).Messages)
	log.Printf("%s: [%v] snapshot updated to v%d: %d events, %d messages shown",
		c.String(), opDur, res.Version, len(res.Events), pending)

	// Update stats
	monitor.UpdatesReceived(opDur)
	monitor.PayloadReceived(payloadBytes(res.Snapshot), snapshotBytes(snapshot))

	return nil
}

// decodeSnapshot applies the encoded transition to the pristine base
// snapshot.
func (c *Client) decodeSnapshot(payload codec.Payload) (model.Snapshot, error) {
	base, err := codec.Normalize(c.baseSnapshot)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("normalize base: %w", err)
	}

	value, err := c.decoder.Decode(base, payload)
	if err != nil {
		return model.Snapshot{}, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("marshal decoded value: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return model.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return snapshot, nil
}

// overwriteServerState pushes a full authoritative snapshot into the
// manager (the pending overlay is untouched).
func (c *Client) overwriteServerState(snapshot model.Snapshot) {
	c.manager.UpdateServerState(c.sessionId, model.SnapshotUpdate{
		Messages: &snapshot.Messages,
		Queue:    &snapshot.Queue,
		Reply:    &snapshot.Reply,
		Status:   &snapshot.Status,
	})
}

// handleEffects interprets an effect batch: rollback scheduling effects map
// to real timers owned by this host, the UI effects are logged (rendering
// is outside this service).
func (c *Client) handleEffects(effects []model.Effect) {
	for _, effect := range effects {
		switch effect.Kind {

		case model.ScheduleRollbackEffectKind:
			c.scheduleRollback(effect.OperationId, effect.After)

		case model.CancelRollbackEffectKind:
			c.cancelRollback(effect.OperationId)

		default:
			log.Printf("%s: UI effect: %s (op: %s, server: %s)",
				c.String(), effect.Kind, effect.OperationId, effect.ServerId)
		}
	}
}

// scheduleRollback arms the rollback timer for an optimistic id.
func (c *Client) scheduleRollback(id model.OperationId, after time.Duration) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	c.timers[id] = time.AfterFunc(after, func() {
		log.Printf("%s: operation %s timed out, rolling back", c.String(), id)
		c.handleEffects(c.manager.Rollback(c.sessionId, id))

		c.timersMu.Lock()
		delete(c.timers, id)
		c.timersMu.Unlock()
	})
}

// cancelRollback releases the rollback timer for an optimistic id (a no-op
// when the timer already fired or was never armed).
func (c *Client) cancelRollback(id model.OperationId) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
}

// cancelAllTimers releases every armed rollback timer.
func (c *Client) cancelAllTimers() {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
}

// payloadBytes estimates the wire size of an encoded payload.
func payloadBytes(payload codec.Payload) int {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0
	}

	return len(raw)
}

// snapshotBytes estimates the wire size of a full snapshot value.
func snapshotBytes(snapshot model.Snapshot) int {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return 0
	}

	return len(raw)
}

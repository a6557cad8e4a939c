// Package session tracks speculative operations per logical session,
// converts them into declarative UI effects and reconciles them against
// authoritative server events.
package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itiky/optimistic-sync/model"
)

type (
	// Manager owns per-session pending-operation queues and the
	// confirm/rollback/reconcile state machine. A Manager is explicitly
	// constructed and passed by reference; multiple independent instances
	// can coexist (no shared global state).
	//
	// Calls for the same session are serialized by a per-session lock;
	// different sessions proceed in parallel. No call blocks on I/O.
	Manager struct {
		sync.RWMutex
		// Config
		rollbackTimeout time.Duration
		// State
		sessions map[model.SessionId]*sessionState
	}

	// sessionState is the per-session aggregate: the last known server
	// snapshot plus the ordered pending-operation overlay.
	sessionState struct {
		sync.Mutex
		snapshot model.Snapshot
		pending  []model.PendingOperation
		opSeq    int
	}
)

// Apply accepts a user-intended operation, appends it to the session's
// pending list (creating the session lazily) and returns the allocated
// optimistic id with the effects reflecting the operation speculatively.
func (m *Manager) Apply(op model.Operation) (model.OperationId, []model.Effect) {
	s := m.getOrCreateSession(op.GetSessionId())

	s.Lock()
	defer s.Unlock()

	s.opSeq++
	id := model.OperationId(fmt.Sprintf("optimistic-%d", s.opSeq))
	s.pending = append(s.pending, model.PendingOperation{
		Id:        id,
		Operation: op,
		CreatedAt: time.Now().UTC(),
	})

	return id, model.ApplyEffects(id, op, m.rollbackTimeout)
}

// Confirm removes the matching pending operation, promotes the provisional
// item into the server snapshot (optionally with authoritative data) and
// returns the promotion effects. An unknown id is a benign race under
// at-least-once event delivery: logged, zero effects.
func (m *Manager) Confirm(sessionId model.SessionId, id model.OperationId, data model.ConfirmData) []model.Effect {
	s := m.getSession(sessionId)
	if s == nil {
		log.Printf("Manager: confirm: unknown session (%s)", sessionId)
		return nil
	}

	s.Lock()
	defer s.Unlock()

	return s.confirm(sessionId, id, data)
}

// Rollback removes the matching pending operation and returns the effects
// undoing the speculative UI change. Unknown ids are tolerated the same way
// as in Confirm.
func (m *Manager) Rollback(sessionId model.SessionId, id model.OperationId) []model.Effect {
	s := m.getSession(sessionId)
	if s == nil {
		log.Printf("Manager: rollback: unknown session (%s)", sessionId)
		return nil
	}

	s.Lock()
	defer s.Unlock()

	return s.rollback(sessionId, id)
}

// Reconcile inspects the pending operations contradicted by an authoritative
// event and corrects them. Applying the same event twice is safe: the second
// call finds no matching pending operation and returns no effects.
func (m *Manager) Reconcile(sessionId model.SessionId, event model.ServerEvent) []model.Effect {
	s := m.getOrCreateSession(sessionId)

	s.Lock()
	defer s.Unlock()

	switch e := event.(type) {

	case model.QueueItemAddedEvent:
		// A pending add-message with the same content means the client
		// guessed the wrong destination. Rollback, corrected apply and
		// confirm collapse into the net effect batch so no consumer can
		// observe the intermediate state.
		for i, p := range s.pending {
			op, ok := p.Operation.(model.AddMessageOperation)
			if !ok || op.Content != e.Content {
				continue
			}

			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.snapshot.Queue = append(s.snapshot.Queue, model.QueueItem{
				Id:      e.ItemId,
				Content: e.Content,
			})

			return []model.Effect{
				{
					Kind:        model.RemoveMessageEffectKind,
					SessionId:   sessionId,
					OperationId: p.Id,
				},
				{
					Kind:        model.ShowQueueItemEffectKind,
					SessionId:   sessionId,
					OperationId: model.OperationId(e.ItemId),
					ServerId:    e.ItemId,
					Content:     e.Content,
					Confirmed:   true,
				},
			}
		}

		// A pending enqueue with the same content guessed right
		for _, p := range s.pending {
			if op, ok := p.Operation.(model.EnqueueOperation); ok && op.Content == e.Content {
				return s.confirm(sessionId, p.Id, model.QueueConfirmData{ItemId: e.ItemId})
			}
		}

		return nil

	case model.MessageAddedEvent:
		for _, p := range s.pending {
			if op, ok := p.Operation.(model.AddMessageOperation); ok && op.Content == e.Content {
				return s.confirm(sessionId, p.Id, model.MessageConfirmData{MessageId: e.MessageId})
			}
		}

		return nil

	case model.QueueClearedEvent:
		// Every pending queue addition is contradicted: one rollback each
		effects := make([]model.Effect, 0)
		kept := make([]model.PendingOperation, 0, len(s.pending))
		for _, p := range s.pending {
			if _, ok := p.Operation.(model.EnqueueOperation); !ok {
				kept = append(kept, p)
				continue
			}
			effects = append(effects, model.RollbackEffects(p.Id, p.Operation)...)
		}
		s.pending = kept

		return effects

	}

	// status_changed / reply_updated contradict nothing pending
	return nil
}

// GetState returns the externally visible session state: the server snapshot
// with every surviving pending operation folded on top in insertion order.
// Pure read, no session is created.
func (m *Manager) GetState(sessionId model.SessionId) model.Snapshot {
	s := m.getSession(sessionId)
	if s == nil {
		return model.Snapshot{Status: model.StatusIdle}
	}

	s.Lock()
	defer s.Unlock()

	return model.Merge(s.snapshot, s.pending)
}

// UpdateServerState overwrites the set snapshot fields with authoritative
// data. The pending list is not touched.
func (m *Manager) UpdateServerState(sessionId model.SessionId, update model.SnapshotUpdate) {
	s := m.getOrCreateSession(sessionId)

	s.Lock()
	defer s.Unlock()

	s.snapshot = s.snapshot.Apply(update)
}

// Drop tears a session down. Sessions are long-lived by design and never
// garbage collected implicitly.
func (m *Manager) Drop(sessionId model.SessionId) {
	m.Lock()
	defer m.Unlock()

	delete(m.sessions, sessionId)
}

// getSession returns an existing session state (nil if missing).
func (m *Manager) getSession(sessionId model.SessionId) *sessionState {
	m.RLock()
	defer m.RUnlock()

	return m.sessions[sessionId]
}

// getOrCreateSession returns the session state, creating it lazily on first
// reference.
func (m *Manager) getOrCreateSession(sessionId model.SessionId) *sessionState {
	m.RLock()
	s := m.sessions[sessionId]
	m.RUnlock()
	if s != nil {
		return s
	}

	m.Lock()
	defer m.Unlock()

	if s = m.sessions[sessionId]; s == nil {
		s = &sessionState{
			snapshot: model.Snapshot{Status: model.StatusIdle},
		}
		m.sessions[sessionId] = s
	}

	return s
}

// confirm removes the pending entry and promotes it (session lock held).
func (s *sessionState) confirm(sessionId model.SessionId, id model.OperationId, data model.ConfirmData) []model.Effect {
	p, ok := s.removePending(id)
	if !ok {
		log.Printf("Manager: confirm: unknown operation (%s/%s)", sessionId, id)
		return nil
	}

	s.promote(p, data)

	return model.ConfirmEffects(id, p.Operation, data)
}

// rollback removes the pending entry (session lock held).
func (s *sessionState) rollback(sessionId model.SessionId, id model.OperationId) []model.Effect {
	p, ok := s.removePending(id)
	if !ok {
		log.Printf("Manager: rollback: unknown operation (%s/%s)", sessionId, id)
		return nil
	}

	return model.RollbackEffects(id, p.Operation)
}

// removePending cuts the matching entry, preserving order of the rest.
func (s *sessionState) removePending(id model.OperationId) (model.PendingOperation, bool) {
	for i, p := range s.pending {
		if p.Id == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return p, true
		}
	}

	return model.PendingOperation{}, false
}

// promote applies a confirmed operation to the server snapshot, replacing
// speculative fields with authoritative data when provided.
func (s *sessionState) promote(p model.PendingOperation, data model.ConfirmData) {
	switch op := p.Operation.(type) {

	case model.AddMessageOperation:
		id := string(p.Id)
		if d, ok := data.(model.MessageConfirmData); ok && d.MessageId != "" {
			id = d.MessageId
		}
		s.snapshot.Messages = append(s.snapshot.Messages, model.Message{
			Id:      id,
			Content: op.Content,
		})

	case model.EnqueueOperation:
		id := string(p.Id)
		if d, ok := data.(model.QueueConfirmData); ok && d.ItemId != "" {
			id = d.ItemId
		}
		s.snapshot.Queue = append(s.snapshot.Queue, model.QueueItem{
			Id:      id,
			Content: op.Content,
		})

	case model.DequeueOperation:
		for i, item := range s.snapshot.Queue {
			if item.Id == op.ItemId {
				s.snapshot.Queue = append(s.snapshot.Queue[:i], s.snapshot.Queue[i+1:]...)
				break
			}
		}

	}
}

// NewManager creates a new Manager object.
func NewManager(rollbackTimeout time.Duration) (*Manager, error) {
	if rollbackTimeout <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "rollbackTimeout")
	}

	return &Manager{
		rollbackTimeout: rollbackTimeout,
		sessions:        make(map[model.SessionId]*sessionState),
	}, nil
}

// Package storage keeps the server-side authoritative session state
// alongside the versioned event history used to serve diff requests.
package storage

import (
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/itiky/optimistic-sync/model"
)

type (
	// Session keeps one session's authoritative snapshot and its revision
	// history. Every mutation produces ServerEvents, applies them through
	// the same fold clients use and records them as a new revision, so a
	// snapshot at any version can be rebuilt by replay.
	Session struct {
		sync.RWMutex
		id model.SessionId
		// v0 state, the replay base
		base model.Snapshot
		// Latest version state
		snapshot  model.Snapshot
		revisions []Revision
	}

	// Revision holds the events upgrading the previous snapshot version.
	Revision struct {
		Version int
		Events  []model.ServerEvent
	}
)

// String implements the stringer interface.
func (s *Session) String() string {
	s.RLock()
	defer s.RUnlock()

	return fmt.Sprintf("Session (%s): v%d, %d messages, %d queued",
		s.id, s.latestVersion(), len(s.snapshot.Messages), len(s.snapshot.Queue))
}

// AddMessage appends a confirmed message and returns the produced event.
func (s *Session) AddMessage(content string) (model.MessageAddedEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	event := model.MessageAddedEvent{
		SessionId: s.id,
		MessageId: "msg-" + ulid.Make().String(),
		Content:   content,
	}

	version, err := s.addRevision(event)
	if err != nil {
		return model.MessageAddedEvent{}, 0, err
	}

	return event, version, nil
}

// Enqueue appends a queue item and returns the produced event.
func (s *Session) Enqueue(content string) (model.QueueItemAddedEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	event := model.QueueItemAddedEvent{
		SessionId: s.id,
		ItemId:    "queue-" + ulid.Make().String(),
		Content:   content,
	}

	version, err := s.addRevision(event)
	if err != nil {
		return model.QueueItemAddedEvent{}, 0, err
	}

	return event, version, nil
}

// Dequeue removes a queue item. Implemented as a queue rebuild: clear plus
// re-add of the surviving items, so replay stays a pure event fold.
func (s *Session) Dequeue(itemId string) ([]model.ServerEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	events := []model.ServerEvent{model.QueueClearedEvent{SessionId: s.id}}
	for _, item := range s.snapshot.Queue {
		if item.Id == itemId {
			continue
		}
		events = append(events, model.QueueItemAddedEvent{
			SessionId: s.id,
			ItemId:    item.Id,
			Content:   item.Content,
		})
	}

	version, err := s.addRevision(events...)
	if err != nil {
		return nil, 0, err
	}

	return events, version, nil
}

// DrainQueue promotes every queued item into a message and returns the
// produced events (one queue_cleared plus one message_added per item).
func (s *Session) DrainQueue() ([]model.ServerEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	events := []model.ServerEvent{model.QueueClearedEvent{SessionId: s.id}}
	for _, item := range s.snapshot.Queue {
		events = append(events, model.MessageAddedEvent{
			SessionId: s.id,
			MessageId: "msg-" + ulid.Make().String(),
			Content:   item.Content,
		})
	}

	version, err := s.addRevision(events...)
	if err != nil {
		return nil, 0, err
	}

	return events, version, nil
}

// SetStatus changes the session activity state.
func (s *Session) SetStatus(status model.SessionStatus) (model.StatusChangedEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	event := model.StatusChangedEvent{
		SessionId: s.id,
		Status:    status,
	}

	version, err := s.addRevision(event)
	if err != nil {
		return model.StatusChangedEvent{}, 0, err
	}

	return event, version, nil
}

// AppendReply grows the streaming reply text by a token.
func (s *Session) AppendReply(token string) (model.ReplyUpdatedEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	event := model.ReplyUpdatedEvent{
		SessionId: s.id,
		Reply:     s.snapshot.Reply + token,
	}

	version, err := s.addRevision(event)
	if err != nil {
		return model.ReplyUpdatedEvent{}, 0, err
	}

	return event, version, nil
}

// ResetReply clears the streaming reply text.
func (s *Session) ResetReply() (model.ReplyUpdatedEvent, int, error) {
	s.Lock()
	defer s.Unlock()

	event := model.ReplyUpdatedEvent{
		SessionId: s.id,
	}

	version, err := s.addRevision(event)
	if err != nil {
		return model.ReplyUpdatedEvent{}, 0, err
	}

	return event, version, nil
}

// Status returns the current activity state.
func (s *Session) Status() model.SessionStatus {
	s.RLock()
	defer s.RUnlock()

	return s.snapshot.Status
}

// QueueLen returns the current queue length.
func (s *Session) QueueLen() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.snapshot.Queue)
}

// addRevision applies the events to the snapshot and records them as a new
// version (session lock held).
func (s *Session) addRevision(events ...model.ServerEvent) (int, error) {
	snapshot, err := model.ApplyServerEvents(s.snapshot, events...)
	if err != nil {
		return 0, fmt.Errorf("apply events: %w", err)
	}

	s.snapshot = snapshot
	s.revisions = append(s.revisions, Revision{
		Version: s.latestVersion() + 1,
		Events:  events,
	})

	return s.latestVersion(), nil
}

// latestVersion returns the current snapshot version (lock held).
func (s *Session) latestVersion() int {
	return len(s.revisions) - 1
}

// NewSession creates a new Session object with an empty v0 revision.
func NewSession(id model.SessionId) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%s: empty", "id")
	}

	return &Session{
		id:        id,
		base:      model.Snapshot{Status: model.StatusIdle},
		snapshot:  model.Snapshot{Status: model.StatusIdle},
		revisions: []Revision{{Version: 0}},
	}, nil
}

// newSessionFromSnapshot creates a Session whose v0 revision already holds
// the given state (used for file bootstrap).
func newSessionFromSnapshot(id model.SessionId, snapshot model.Snapshot) *Session {
	return &Session{
		id:        id,
		base:      snapshot.Clone(),
		snapshot:  snapshot,
		revisions: []Revision{{Version: 0}},
	}
}

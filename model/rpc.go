package model

import (
	"fmt"

	"github.com/itiky/optimistic-sync/codec"
)

// OperationType is the wire tag of a submitted operation.
type OperationType string

const (
	AddMessageOperationType OperationType = "add_message"
	EnqueueOperationType    OperationType = "enqueue"
	DequeueOperationType    OperationType = "dequeue"
)

// EventType is the wire tag of a server event.
type EventType string

const (
	MessageAddedEventType   EventType = "message_added"
	QueueItemAddedEventType EventType = "queue_item_added"
	QueueClearedEventType   EventType = "queue_cleared"
	StatusChangedEventType  EventType = "status_changed"
	ReplyUpdatedEventType   EventType = "reply_updated"
)

// Get the session snapshot RPC request.
type (
	GetSessionRequest struct {
		// Request source
		ClientId ClientId
		// Target session
		SessionId SessionId
	}

	GetSessionResponse struct {
		// Snapshot version
		Version int
		// Snapshot data
		Snapshot Snapshot
	}
)

// Submit an operation RPC request.
type (
	SubmitOperationRequest struct {
		// Request source
		ClientId ClientId
		// Target session
		SessionId SessionId
		// Operation to perform
		Operation OperationRequest
	}

	OperationRequest struct {
		Type    OperationType
		Content string
		ItemId  string
	}

	SubmitOperationResponse struct {
		// Snapshot version after the operation
		Version int
		// Server-assigned id of the created item (if any)
		AssignedId string
		// An add_message was redirected to the queue
		Queued bool
		// Events produced by the operation
		Events []EventRecord
	}
)

// Get snapshot updates RPC request (bumps the local snapshot version).
type (
	GetUpdatesRequest struct {
		// Target session
		SessionId SessionId
		// Local snapshot version
		Version int
	}

	GetUpdatesResponse struct {
		// Snapshot version
		Version int
		// Events emitted between GetUpdatesRequest.Version and Version
		Events []EventRecord
		// Encoded transition from the requested version's snapshot to the
		// latest one
		Snapshot codec.Payload
	}
)

// EventRecord is the gob-friendly wire form of a ServerEvent.
type EventRecord struct {
	Type      EventType
	SessionId SessionId
	Id        string
	Content   string
	Status    SessionStatus
	Reply     string
}

// NewEventRecord converts a ServerEvent to its wire form.
func NewEventRecord(event ServerEvent) EventRecord {
	switch e := event.(type) {
	case MessageAddedEvent:
		return EventRecord{Type: MessageAddedEventType, SessionId: e.SessionId, Id: e.MessageId, Content: e.Content}
	case QueueItemAddedEvent:
		return EventRecord{Type: QueueItemAddedEventType, SessionId: e.SessionId, Id: e.ItemId, Content: e.Content}
	case QueueClearedEvent:
		return EventRecord{Type: QueueClearedEventType, SessionId: e.SessionId}
	case StatusChangedEvent:
		return EventRecord{Type: StatusChangedEventType, SessionId: e.SessionId, Status: e.Status}
	case ReplyUpdatedEvent:
		return EventRecord{Type: ReplyUpdatedEventType, SessionId: e.SessionId, Reply: e.Reply}
	}

	return EventRecord{}
}

// NewEventRecords converts a ServerEvent batch to its wire form.
func NewEventRecords(events ...ServerEvent) []EventRecord {
	records := make([]EventRecord, 0, len(events))
	for _, event := range events {
		records = append(records, NewEventRecord(event))
	}

	return records
}

// Event converts the wire form back to a ServerEvent.
func (r EventRecord) Event() (ServerEvent, error) {
	if r.SessionId == "" {
		return nil, fmt.Errorf("%s: empty", "SessionId")
	}

	switch r.Type {
	case MessageAddedEventType:
		return MessageAddedEvent{SessionId: r.SessionId, MessageId: r.Id, Content: r.Content}, nil
	case QueueItemAddedEventType:
		return QueueItemAddedEvent{SessionId: r.SessionId, ItemId: r.Id, Content: r.Content}, nil
	case QueueClearedEventType:
		return QueueClearedEvent{SessionId: r.SessionId}, nil
	case StatusChangedEventType:
		return StatusChangedEvent{SessionId: r.SessionId, Status: r.Status}, nil
	case ReplyUpdatedEventType:
		return ReplyUpdatedEvent{SessionId: r.SessionId, Reply: r.Reply}, nil
	}

	return nil, fmt.Errorf("unknown event type: %s", r.Type)
}

// Operation converts the wire form to a validated Operation.
func (r OperationRequest) Operation(sessionId SessionId) (Operation, error) {
	switch r.Type {
	case AddMessageOperationType:
		return NewAddMessageOperation(sessionId, r.Content)
	case EnqueueOperationType:
		return NewEnqueueOperation(sessionId, r.Content)
	case DequeueOperationType:
		return NewDequeueOperation(sessionId, r.ItemId)
	}

	return nil, fmt.Errorf("unknown operation type: %s", r.Type)
}

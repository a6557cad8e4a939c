package model

import "fmt"

type (
	// ServerEvent is an authoritative notification about a session change.
	// The variant set is closed; reconciliation switches on the concrete
	// type and ignores variants that need no correction.
	ServerEvent interface {
		// Session the event belongs to
		GetSessionId() SessionId
		isServerEvent()
	}

	// MessageAddedEvent: a message was appended to the conversation.
	MessageAddedEvent struct {
		SessionId SessionId
		MessageId string
		Content   string
	}

	// QueueItemAddedEvent: an item was appended to the queue.
	QueueItemAddedEvent struct {
		SessionId SessionId
		ItemId    string
		Content   string
	}

	// QueueClearedEvent: the queue was drained.
	QueueClearedEvent struct {
		SessionId SessionId
	}

	// StatusChangedEvent: the session activity state changed.
	StatusChangedEvent struct {
		SessionId SessionId
		Status    SessionStatus
	}

	// ReplyUpdatedEvent: the streaming reply text grew or was reset.
	ReplyUpdatedEvent struct {
		SessionId SessionId
		Reply     string
	}
)

// GetSessionId implements ServerEvent interface.
func (e MessageAddedEvent) GetSessionId() SessionId { return e.SessionId }

// GetSessionId implements ServerEvent interface.
func (e QueueItemAddedEvent) GetSessionId() SessionId { return e.SessionId }

// GetSessionId implements ServerEvent interface.
func (e QueueClearedEvent) GetSessionId() SessionId { return e.SessionId }

// GetSessionId implements ServerEvent interface.
func (e StatusChangedEvent) GetSessionId() SessionId { return e.SessionId }

// GetSessionId implements ServerEvent interface.
func (e ReplyUpdatedEvent) GetSessionId() SessionId { return e.SessionId }

func (e MessageAddedEvent) isServerEvent()   {}
func (e QueueItemAddedEvent) isServerEvent() {}
func (e QueueClearedEvent) isServerEvent()   {}
func (e StatusChangedEvent) isServerEvent()  {}
func (e ReplyUpdatedEvent) isServerEvent()   {}

// ApplyServerEvents upgrades the input Snapshot to a new version using
// ServerEvent objects applied in order.
func ApplyServerEvents(s Snapshot, events ...ServerEvent) (Snapshot, error) {
	out := s.Clone()

	for i, event := range events {
		switch e := event.(type) {

		case MessageAddedEvent:
			if e.MessageId == "" {
				return Snapshot{}, fmt.Errorf("event[%d] (message_added): messageId: empty", i)
			}
			out.Messages = append(out.Messages, Message{
				Id:      e.MessageId,
				Content: e.Content,
			})

		case QueueItemAddedEvent:
			if e.ItemId == "" {
				return Snapshot{}, fmt.Errorf("event[%d] (queue_item_added): itemId: empty", i)
			}
			out.Queue = append(out.Queue, QueueItem{
				Id:      e.ItemId,
				Content: e.Content,
			})

		case QueueClearedEvent:
			out.Queue = nil

		case StatusChangedEvent:
			if e.Status != StatusIdle && e.Status != StatusStreaming {
				return Snapshot{}, fmt.Errorf("event[%d] (status_changed): status: unknown (%s)", i, e.Status)
			}
			out.Status = e.Status

		case ReplyUpdatedEvent:
			out.Reply = e.Reply

		default:
			return Snapshot{}, fmt.Errorf("event[%d]: unknown type (%T)", i, event)

		}
	}

	return out, nil
}

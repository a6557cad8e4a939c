package model

import (
	"fmt"
	"time"
)

type (
	// Operation is a user-intended mutation submitted before server
	// confirmation. The variant set is closed: consumers switch on the
	// concrete type and treat an unknown variant as a bug.
	Operation interface {
		// Session the operation belongs to
		GetSessionId() SessionId
		isOperation()
	}

	// AddMessageOperation appends a message to the session conversation.
	AddMessageOperation struct {
		SessionId SessionId
		Content   string
	}

	// EnqueueOperation appends an item to the session queue.
	EnqueueOperation struct {
		SessionId SessionId
		Content   string
	}

	// DequeueOperation removes an item from the session queue.
	DequeueOperation struct {
		SessionId SessionId
		ItemId    string
	}

	// PendingOperation is an applied operation not yet confirmed or
	// rolled back.
	PendingOperation struct {
		Id        OperationId
		Operation Operation
		CreatedAt time.Time
	}
)

// GetSessionId implements Operation interface.
func (o AddMessageOperation) GetSessionId() SessionId { return o.SessionId }

// GetSessionId implements Operation interface.
func (o EnqueueOperation) GetSessionId() SessionId { return o.SessionId }

// GetSessionId implements Operation interface.
func (o DequeueOperation) GetSessionId() SessionId { return o.SessionId }

func (o AddMessageOperation) isOperation() {}
func (o EnqueueOperation) isOperation()    {}
func (o DequeueOperation) isOperation()    {}

// NewAddMessageOperation creates a valid AddMessageOperation object.
func NewAddMessageOperation(sessionId SessionId, content string) (AddMessageOperation, error) {
	if sessionId == "" {
		return AddMessageOperation{}, fmt.Errorf("%s: empty", "sessionId")
	}
	if content == "" {
		return AddMessageOperation{}, fmt.Errorf("%s: empty", "content")
	}

	return AddMessageOperation{
		SessionId: sessionId,
		Content:   content,
	}, nil
}

// NewEnqueueOperation creates a valid EnqueueOperation object.
func NewEnqueueOperation(sessionId SessionId, content string) (EnqueueOperation, error) {
	if sessionId == "" {
		return EnqueueOperation{}, fmt.Errorf("%s: empty", "sessionId")
	}
	if content == "" {
		return EnqueueOperation{}, fmt.Errorf("%s: empty", "content")
	}

	return EnqueueOperation{
		SessionId: sessionId,
		Content:   content,
	}, nil
}

// NewDequeueOperation creates a valid DequeueOperation object.
func NewDequeueOperation(sessionId SessionId, itemId string) (DequeueOperation, error) {
	if sessionId == "" {
		return DequeueOperation{}, fmt.Errorf("%s: empty", "sessionId")
	}
	if itemId == "" {
		return DequeueOperation{}, fmt.Errorf("%s: empty", "itemId")
	}

	return DequeueOperation{
		SessionId: sessionId,
		ItemId:    itemId,
	}, nil
}

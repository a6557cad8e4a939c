package model

import "time"

// EffectKind tags an Effect variant. The set is a stable contract for the
// rendering host, which switches on it.
type EffectKind string

const (
	ShowMessageEffectKind      EffectKind = "show_message"
	RemoveMessageEffectKind    EffectKind = "remove_message"
	ConfirmMessageEffectKind   EffectKind = "confirm_message"
	ShowQueueItemEffectKind    EffectKind = "show_queue_item"
	RemoveQueueItemEffectKind  EffectKind = "remove_queue_item"
	ConfirmQueueItemEffectKind EffectKind = "confirm_queue_item"
	ScheduleRollbackEffectKind EffectKind = "schedule_rollback"
	CancelRollbackEffectKind   EffectKind = "cancel_rollback"
)

// Effect is a declarative description of a UI / resource action. Effects are
// data: the host decides how to render a show_* / remove_* / confirm_* kind
// and owns the actual timer behind schedule_rollback / cancel_rollback.
type Effect struct {
	Kind        EffectKind
	SessionId   SessionId
	OperationId OperationId
	// Authoritative id replacing the optimistic one (confirm_* kinds)
	ServerId string
	// Item content (show_* kinds)
	Content string
	// Marks a show_* effect as already server-confirmed
	Confirmed bool
	// Rollback deadline (schedule_rollback kind)
	After time.Duration
}

type (
	// ConfirmData carries the operation-specific authoritative payload of a
	// confirmation. The variant must match the confirmed Operation tag.
	ConfirmData interface {
		isConfirmData()
	}

	// MessageConfirmData confirms an AddMessageOperation.
	MessageConfirmData struct {
		MessageId string
	}

	// QueueConfirmData confirms an EnqueueOperation or DequeueOperation.
	QueueConfirmData struct {
		ItemId string
	}
)

func (d MessageConfirmData) isConfirmData() {}
func (d QueueConfirmData) isConfirmData()   {}

// ApplyEffects derives the effects reflecting an operation speculatively:
// a provisional UI change plus a rollback scheduled in case nothing
// resolves the operation within the timeout window.
func ApplyEffects(id OperationId, op Operation, timeout time.Duration) []Effect {
	sessionId := op.GetSessionId()

	effects := make([]Effect, 0, 2)
	switch op := op.(type) {
	case AddMessageOperation:
		effects = append(effects, Effect{
			Kind:        ShowMessageEffectKind,
			SessionId:   sessionId,
			OperationId: id,
			Content:     op.Content,
		})
	case EnqueueOperation:
		effects = append(effects, Effect{
			Kind:        ShowQueueItemEffectKind,
			SessionId:   sessionId,
			OperationId: id,
			Content:     op.Content,
		})
	case DequeueOperation:
		effects = append(effects, Effect{
			Kind:        RemoveQueueItemEffectKind,
			SessionId:   sessionId,
			OperationId: id,
			ServerId:    op.ItemId,
		})
	}

	effects = append(effects, Effect{
		Kind:        ScheduleRollbackEffectKind,
		SessionId:   sessionId,
		OperationId: id,
		After:       timeout,
	})

	return effects
}

// ConfirmEffects derives the effects promoting a provisional item to
// confirmed status and releasing the scheduled rollback.
func ConfirmEffects(id OperationId, op Operation, data ConfirmData) []Effect {
	sessionId := op.GetSessionId()

	effects := make([]Effect, 0, 2)
	switch op.(type) {
	case AddMessageOperation:
		effect := Effect{
			Kind:        ConfirmMessageEffectKind,
			SessionId:   sessionId,
			OperationId: id,
		}
		if d, ok := data.(MessageConfirmData); ok {
			effect.ServerId = d.MessageId
		}
		effects = append(effects, effect)
	case EnqueueOperation:
		effect := Effect{
			Kind:        ConfirmQueueItemEffectKind,
			SessionId:   sessionId,
			OperationId: id,
		}
		if d, ok := data.(QueueConfirmData); ok {
			effect.ServerId = d.ItemId
		}
		effects = append(effects, effect)
	case DequeueOperation:
		// The item is gone for good, nothing left to promote
	}

	effects = append(effects, Effect{
		Kind:        CancelRollbackEffectKind,
		SessionId:   sessionId,
		OperationId: id,
	})

	return effects
}

// RollbackEffects derives the effects undoing a speculative UI change and
// releasing the scheduled rollback.
func RollbackEffects(id OperationId, op Operation) []Effect {
	sessionId := op.GetSessionId()

	effects := make([]Effect, 0, 2)
	switch op := op.(type) {
	case AddMessageOperation:
		effects = append(effects, Effect{
			Kind:        RemoveMessageEffectKind,
			SessionId:   sessionId,
			OperationId: id,
		})
	case EnqueueOperation:
		effects = append(effects, Effect{
			Kind:        RemoveQueueItemEffectKind,
			SessionId:   sessionId,
			OperationId: id,
		})
	case DequeueOperation:
		// Undo the speculative removal: the item is back
		effects = append(effects, Effect{
			Kind:        ShowQueueItemEffectKind,
			SessionId:   sessionId,
			OperationId: id,
			ServerId:    op.ItemId,
		})
	}

	effects = append(effects, Effect{
		Kind:        CancelRollbackEffectKind,
		SessionId:   sessionId,
		OperationId: id,
	})

	return effects
}

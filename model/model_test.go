package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test checks the merge fold: pending operations layer over the server
// snapshot in insertion order without mutating either input.
func Test_Model_Merge(t *testing.T) {
	server := Snapshot{
		Messages: []Message{{Id: "msg-1", Content: "confirmed"}},
		Queue:    []QueueItem{{Id: "queue-1", Content: "waiting"}},
		Status:   StatusStreaming,
	}

	pending := []PendingOperation{
		{Id: "optimistic-1", Operation: AddMessageOperation{SessionId: "s", Content: "hi"}},
		{Id: "optimistic-2", Operation: EnqueueOperation{SessionId: "s", Content: "later"}},
		{Id: "optimistic-3", Operation: DequeueOperation{SessionId: "s", ItemId: "queue-1"}},
	}

	merged := Merge(server, pending)

	require.Len(t, merged.Messages, 2)
	require.Equal(t, "msg-1", merged.Messages[0].Id)
	require.Equal(t, "optimistic-1", merged.Messages[1].Id)
	require.True(t, merged.Messages[1].Pending)

	// queue-1 was speculatively removed, the pending enqueue remains
	require.Len(t, merged.Queue, 1)
	require.Equal(t, "optimistic-2", merged.Queue[0].Id)
	require.True(t, merged.Queue[0].Pending)

	require.Equal(t, StatusStreaming, merged.Status)

	// Inputs untouched
	require.Len(t, server.Messages, 1)
	require.Len(t, server.Queue, 1)
	require.Len(t, pending, 3)
}

// Test checks merge over an empty pending list is a plain copy.
func Test_Model_MergeEmpty(t *testing.T) {
	server := Snapshot{
		Messages: []Message{{Id: "msg-1", Content: "hi"}},
	}

	merged := Merge(server, nil)
	require.Equal(t, server, merged)

	// The copy is deep
	merged.Messages[0].Content = "changed"
	require.Equal(t, "hi", server.Messages[0].Content)
}

// Test checks the event fold application and its validation failures.
func Test_Model_ApplyServerEvents(t *testing.T) {
	// OK
	{
		s, err := ApplyServerEvents(Snapshot{},
			MessageAddedEvent{SessionId: "s", MessageId: "msg-1", Content: "hi"},
			StatusChangedEvent{SessionId: "s", Status: StatusStreaming},
			ReplyUpdatedEvent{SessionId: "s", Reply: "thinking"},
			QueueItemAddedEvent{SessionId: "s", ItemId: "queue-1", Content: "later"},
		)
		require.NoError(t, err)

		require.Len(t, s.Messages, 1)
		require.Equal(t, "msg-1", s.Messages[0].Id)
		require.Len(t, s.Queue, 1)
		require.Equal(t, StatusStreaming, s.Status)
		require.Equal(t, "thinking", s.Reply)
	}

	// OK: queue_cleared drops earlier additions within the same fold
	{
		s, err := ApplyServerEvents(Snapshot{},
			QueueItemAddedEvent{SessionId: "s", ItemId: "queue-1", Content: "later"},
			QueueClearedEvent{SessionId: "s"},
		)
		require.NoError(t, err)
		require.Empty(t, s.Queue)
	}

	// Fail: empty message id
	{
		_, err := ApplyServerEvents(Snapshot{}, MessageAddedEvent{SessionId: "s"})
		require.Error(t, err)
	}

	// Fail: empty item id
	{
		_, err := ApplyServerEvents(Snapshot{}, QueueItemAddedEvent{SessionId: "s"})
		require.Error(t, err)
	}

	// Fail: unknown status
	{
		_, err := ApplyServerEvents(Snapshot{}, StatusChangedEvent{SessionId: "s", Status: "bogus"})
		require.Error(t, err)
	}
}

// Test checks the rollback effects mirror the apply effects for each
// operation variant.
func Test_Model_EffectSymmetry(t *testing.T) {
	checkPair := func(comment string, op Operation, applyKind, rollbackKind EffectKind) {
		applied := ApplyEffects("op-1", op, 5*time.Second)
		require.Len(t, applied, 2, comment)
		require.Equal(t, applyKind, applied[0].Kind, comment)
		require.Equal(t, ScheduleRollbackEffectKind, applied[1].Kind, comment)
		require.Equal(t, 5*time.Second, applied[1].After, comment)

		rolled := RollbackEffects("op-1", op)
		require.Len(t, rolled, 2, comment)
		require.Equal(t, rollbackKind, rolled[0].Kind, comment)
		require.Equal(t, CancelRollbackEffectKind, rolled[1].Kind, comment)
	}

	checkPair("add message",
		AddMessageOperation{SessionId: "s", Content: "hi"},
		ShowMessageEffectKind, RemoveMessageEffectKind,
	)
	checkPair("enqueue",
		EnqueueOperation{SessionId: "s", Content: "later"},
		ShowQueueItemEffectKind, RemoveQueueItemEffectKind,
	)
	checkPair("dequeue",
		DequeueOperation{SessionId: "s", ItemId: "queue-1"},
		RemoveQueueItemEffectKind, ShowQueueItemEffectKind,
	)
}

// Test checks confirm effects carry the authoritative id from the matching
// data variant.
func Test_Model_ConfirmEffects(t *testing.T) {
	// Message with server id
	{
		effects := ConfirmEffects("op-1", AddMessageOperation{SessionId: "s", Content: "hi"}, MessageConfirmData{MessageId: "msg-1"})
		require.Len(t, effects, 2)
		require.Equal(t, ConfirmMessageEffectKind, effects[0].Kind)
		require.Equal(t, "msg-1", effects[0].ServerId)
		require.Equal(t, CancelRollbackEffectKind, effects[1].Kind)
	}

	// Mismatched data variant: the confirm is still emitted, id stays empty
	{
		effects := ConfirmEffects("op-1", EnqueueOperation{SessionId: "s", Content: "later"}, MessageConfirmData{MessageId: "msg-1"})
		require.Len(t, effects, 2)
		require.Equal(t, ConfirmQueueItemEffectKind, effects[0].Kind)
		require.Empty(t, effects[0].ServerId)
	}

	// Dequeue: nothing to promote, only the rollback release
	{
		effects := ConfirmEffects("op-1", DequeueOperation{SessionId: "s", ItemId: "queue-1"}, nil)
		require.Len(t, effects, 1)
		require.Equal(t, CancelRollbackEffectKind, effects[0].Kind)
	}
}

// Test checks the partial overwrite semantics of SnapshotUpdate.
func Test_Model_SnapshotApply(t *testing.T) {
	base := Snapshot{
		Messages: []Message{{Id: "msg-1", Content: "hi"}},
		Queue:    []QueueItem{{Id: "queue-1", Content: "later"}},
		Reply:    "typing",
		Status:   StatusStreaming,
	}

	status := StatusIdle
	updated := base.Apply(SnapshotUpdate{
		Queue:  &[]QueueItem{},
		Status: &status,
	})

	// Set fields overwritten, nil fields kept
	require.Empty(t, updated.Queue)
	require.Equal(t, StatusIdle, updated.Status)
	require.Len(t, updated.Messages, 1)
	require.Equal(t, "typing", updated.Reply)

	// The receiver is untouched
	require.Len(t, base.Queue, 1)
	require.Equal(t, StatusStreaming, base.Status)
}

func Test_Model_OperationValidation(t *testing.T) {
	_, err := NewAddMessageOperation("", "hi")
	require.Error(t, err)
	_, err = NewAddMessageOperation("s", "")
	require.Error(t, err)

	_, err = NewEnqueueOperation("", "later")
	require.Error(t, err)
	_, err = NewEnqueueOperation("s", "")
	require.Error(t, err)

	_, err = NewDequeueOperation("", "queue-1")
	require.Error(t, err)
	_, err = NewDequeueOperation("s", "")
	require.Error(t, err)
}

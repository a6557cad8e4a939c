package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itiky/optimistic-sync/model"
)

const testSessionId = model.SessionId("session-1")

func newTestManager(t *testing.T) *Manager {
	m, err := NewManager(model.DefaultRollbackTimeout)
	require.NoError(t, err)

	return m
}

func newAddMessageOp(t *testing.T, content string) model.AddMessageOperation {
	op, err := model.NewAddMessageOperation(testSessionId, content)
	require.NoError(t, err)

	return op
}

func newEnqueueOp(t *testing.T, content string) model.EnqueueOperation {
	op, err := model.NewEnqueueOperation(testSessionId, content)
	require.NoError(t, err)

	return op
}

// Test applies an operation and checks the speculative effects and the
// merged view.
func Test_Manager_Apply(t *testing.T) {
	m := newTestManager(t)

	id, effects := m.Apply(newAddMessageOp(t, "hi"))
	require.Equal(t, model.OperationId("optimistic-1"), id)

	require.Len(t, effects, 2)
	require.Equal(t, model.ShowMessageEffectKind, effects[0].Kind)
	require.Equal(t, id, effects[0].OperationId)
	require.Equal(t, "hi", effects[0].Content)
	require.Equal(t, model.ScheduleRollbackEffectKind, effects[1].Kind)
	require.Equal(t, model.DefaultRollbackTimeout, effects[1].After)

	state := m.GetState(testSessionId)
	require.Len(t, state.Messages, 1)
	require.Equal(t, "hi", state.Messages[0].Content)
	require.True(t, state.Messages[0].Pending)
	require.Empty(t, state.Queue)
}

// Test checks optimistic ids stay unique under concurrent applies within
// one session.
func Test_Manager_IdUniqueness(t *testing.T) {
	const appliesCount = 100

	m := newTestManager(t)

	// Operations are built up front: assertions stay on the test goroutine
	ops := make([]model.AddMessageOperation, 0, appliesCount)
	for i := 0; i < appliesCount; i++ {
		ops = append(ops, newAddMessageOp(t, fmt.Sprintf("msg %d", i)))
	}

	idsMu := sync.Mutex{}
	ids := make(map[model.OperationId]struct{}, appliesCount)

	wg := sync.WaitGroup{}
	for _, op := range ops {
		wg.Add(1)
		go func(op model.AddMessageOperation) {
			defer wg.Done()

			id, _ := m.Apply(op)

			idsMu.Lock()
			ids[id] = struct{}{}
			idsMu.Unlock()
		}(op)
	}
	wg.Wait()

	require.Len(t, ids, appliesCount)

	state := m.GetState(testSessionId)
	require.Len(t, state.Messages, appliesCount)
}

// Test confirms an operation with authoritative data and checks the
// promotion into the snapshot.
func Test_Manager_Confirm(t *testing.T) {
	m := newTestManager(t)

	id, _ := m.Apply(newAddMessageOp(t, "hi"))

	effects := m.Confirm(testSessionId, id, model.MessageConfirmData{MessageId: "msg-1"})
	require.Len(t, effects, 2)
	require.Equal(t, model.ConfirmMessageEffectKind, effects[0].Kind)
	require.Equal(t, "msg-1", effects[0].ServerId)
	require.Equal(t, model.CancelRollbackEffectKind, effects[1].Kind)

	state := m.GetState(testSessionId)
	require.Len(t, state.Messages, 1)
	require.Equal(t, "msg-1", state.Messages[0].Id)
	require.False(t, state.Messages[0].Pending)
}

// Test checks terminal transitions are exclusive and repeatable: the second
// confirm/rollback for the same id returns no effects and does not panic.
func Test_Manager_IdempotentTerminalTransitions(t *testing.T) {
	// confirm then rollback
	{
		m := newTestManager(t)
		id, _ := m.Apply(newAddMessageOp(t, "hi"))

		require.NotEmpty(t, m.Confirm(testSessionId, id, nil))
		require.Empty(t, m.Rollback(testSessionId, id))
		require.Empty(t, m.Confirm(testSessionId, id, nil))
	}

	// rollback then confirm
	{
		m := newTestManager(t)
		id, _ := m.Apply(newAddMessageOp(t, "hi"))

		require.NotEmpty(t, m.Rollback(testSessionId, id))
		require.Empty(t, m.Confirm(testSessionId, id, nil))
		require.Empty(t, m.Rollback(testSessionId, id))

		require.Empty(t, m.GetState(testSessionId).Messages)
	}

	// unknown session
	{
		m := newTestManager(t)
		require.Empty(t, m.Confirm("ghost", "optimistic-1", nil))
		require.Empty(t, m.Rollback("ghost", "optimistic-1"))
	}
}

// Test runs the wrong-destination reconciliation end to end: an optimistic
// message matched by an authoritative queue item is corrected atomically.
func Test_Manager_ReconcileWrongDestination(t *testing.T) {
	m := newTestManager(t)

	id, effects := m.Apply(newAddMessageOp(t, "hi"))
	require.Equal(t, model.OperationId("optimistic-1"), id)
	require.Equal(t, model.ShowMessageEffectKind, effects[0].Kind)

	event := model.QueueItemAddedEvent{
		SessionId: testSessionId,
		ItemId:    "srv-1",
		Content:   "hi",
	}

	effects = m.Reconcile(testSessionId, event)
	require.Len(t, effects, 2)
	require.Equal(t, model.RemoveMessageEffectKind, effects[0].Kind)
	require.Equal(t, id, effects[0].OperationId)
	require.Equal(t, model.ShowQueueItemEffectKind, effects[1].Kind)
	require.Equal(t, model.OperationId("srv-1"), effects[1].OperationId)
	require.Equal(t, "hi", effects[1].Content)
	require.True(t, effects[1].Confirmed)

	// The item moved: queue only, no messages, nothing pending
	state := m.GetState(testSessionId)
	require.Empty(t, state.Messages)
	require.Len(t, state.Queue, 1)
	require.Equal(t, "srv-1", state.Queue[0].Id)
	require.Equal(t, "hi", state.Queue[0].Content)
	require.False(t, state.Queue[0].Pending)

	// At-least-once delivery: the duplicate finds nothing to correct
	require.Empty(t, m.Reconcile(testSessionId, event))

	// A later confirm for the reused server id is a benign no-op
	require.Empty(t, m.Confirm(testSessionId, "srv-1", model.QueueConfirmData{ItemId: "srv-1"}))
}

// Test checks a matching queue item event confirms a pending enqueue that
// guessed right.
func Test_Manager_ReconcileEnqueueConfirm(t *testing.T) {
	m := newTestManager(t)

	id, _ := m.Apply(newEnqueueOp(t, "later"))

	effects := m.Reconcile(testSessionId, model.QueueItemAddedEvent{
		SessionId: testSessionId,
		ItemId:    "srv-9",
		Content:   "later",
	})
	require.Len(t, effects, 2)
	require.Equal(t, model.ConfirmQueueItemEffectKind, effects[0].Kind)
	require.Equal(t, id, effects[0].OperationId)
	require.Equal(t, "srv-9", effects[0].ServerId)

	state := m.GetState(testSessionId)
	require.Len(t, state.Queue, 1)
	require.Equal(t, "srv-9", state.Queue[0].Id)
}

// Test checks a queue_cleared event rolls back every pending queue addition
// and nothing else.
func Test_Manager_ReconcileQueueCleared(t *testing.T) {
	m := newTestManager(t)

	msgId, _ := m.Apply(newAddMessageOp(t, "kept"))
	q1, _ := m.Apply(newEnqueueOp(t, "first"))
	q2, _ := m.Apply(newEnqueueOp(t, "second"))

	effects := m.Reconcile(testSessionId, model.QueueClearedEvent{SessionId: testSessionId})

	// One rollback (undo + cancel) per queued pending entry
	require.Len(t, effects, 4)
	require.Equal(t, model.RemoveQueueItemEffectKind, effects[0].Kind)
	require.Equal(t, q1, effects[0].OperationId)
	require.Equal(t, model.CancelRollbackEffectKind, effects[1].Kind)
	require.Equal(t, model.RemoveQueueItemEffectKind, effects[2].Kind)
	require.Equal(t, q2, effects[2].OperationId)
	require.Equal(t, model.CancelRollbackEffectKind, effects[3].Kind)

	state := m.GetState(testSessionId)
	require.Empty(t, state.Queue)
	require.Len(t, state.Messages, 1)
	require.Equal(t, string(msgId), state.Messages[0].Id)

	// The duplicate event finds nothing left
	require.Empty(t, m.Reconcile(testSessionId, model.QueueClearedEvent{SessionId: testSessionId}))
}

// Test checks a message_added event confirms the matching pending message.
func Test_Manager_ReconcileMessageAdded(t *testing.T) {
	m := newTestManager(t)

	m.Apply(newAddMessageOp(t, "hi"))

	effects := m.Reconcile(testSessionId, model.MessageAddedEvent{
		SessionId: testSessionId,
		MessageId: "msg-7",
		Content:   "hi",
	})
	require.Len(t, effects, 2)
	require.Equal(t, model.ConfirmMessageEffectKind, effects[0].Kind)
	require.Equal(t, "msg-7", effects[0].ServerId)

	state := m.GetState(testSessionId)
	require.Len(t, state.Messages, 1)
	require.Equal(t, "msg-7", state.Messages[0].Id)
	require.False(t, state.Messages[0].Pending)
}

// Test checks events that contradict nothing are no-ops.
func Test_Manager_ReconcileUnmatched(t *testing.T) {
	m := newTestManager(t)

	m.Apply(newAddMessageOp(t, "hi"))

	require.Empty(t, m.Reconcile(testSessionId, model.StatusChangedEvent{
		SessionId: testSessionId,
		Status:    model.StatusStreaming,
	}))
	require.Empty(t, m.Reconcile(testSessionId, model.ReplyUpdatedEvent{
		SessionId: testSessionId,
		Reply:     "thinking...",
	}))
	require.Empty(t, m.Reconcile(testSessionId, model.QueueItemAddedEvent{
		SessionId: testSessionId,
		ItemId:    "srv-1",
		Content:   "different content",
	}))

	require.Len(t, m.GetState(testSessionId).Messages, 1)
}

// Test checks the scheduled rollback effect: simulating the timer firing is
// equivalent to a plain rollback call.
func Test_Manager_Timeout(t *testing.T) {
	m, err := NewManager(10 * time.Second)
	require.NoError(t, err)

	id, effects := m.Apply(newAddMessageOp(t, "hi"))

	var schedule *model.Effect
	for i := range effects {
		if effects[i].Kind == model.ScheduleRollbackEffectKind {
			schedule = &effects[i]
		}
	}
	require.NotNil(t, schedule)
	require.Equal(t, id, schedule.OperationId)
	require.Equal(t, 10*time.Second, schedule.After)

	// The host timer fires: nothing resolved the operation in time
	effects = m.Rollback(testSessionId, schedule.OperationId)
	require.Len(t, effects, 2)
	require.Equal(t, model.RemoveMessageEffectKind, effects[0].Kind)
	require.Equal(t, model.CancelRollbackEffectKind, effects[1].Kind)

	require.Empty(t, m.GetState(testSessionId).Messages)
}

// Test checks snapshot overwrites leave the pending overlay untouched.
func Test_Manager_UpdateServerState(t *testing.T) {
	m := newTestManager(t)

	m.Apply(newAddMessageOp(t, "pending one"))

	status := model.StatusStreaming
	reply := "typing"
	m.UpdateServerState(testSessionId, model.SnapshotUpdate{
		Messages: &[]model.Message{{Id: "msg-1", Content: "confirmed one"}},
		Reply:    &reply,
		Status:   &status,
	})

	state := m.GetState(testSessionId)
	require.Equal(t, model.StatusStreaming, state.Status)
	require.Equal(t, "typing", state.Reply)
	require.Len(t, state.Messages, 2)
	require.Equal(t, "confirmed one", state.Messages[0].Content)
	require.False(t, state.Messages[0].Pending)
	require.Equal(t, "pending one", state.Messages[1].Content)
	require.True(t, state.Messages[1].Pending)
}

// Test checks reads do not create sessions and Drop tears one down.
func Test_Manager_SessionLifecycle(t *testing.T) {
	m := newTestManager(t)

	state := m.GetState("unknown")
	require.Equal(t, model.StatusIdle, state.Status)
	require.Empty(t, state.Messages)

	id, _ := m.Apply(newAddMessageOp(t, "hi"))
	require.Equal(t, model.OperationId("optimistic-1"), id)

	m.Drop(testSessionId)
	require.Empty(t, m.GetState(testSessionId).Messages)

	// A fresh session restarts the id counter
	id, _ = m.Apply(newAddMessageOp(t, "again"))
	require.Equal(t, model.OperationId("optimistic-1"), id)
}

func Test_Manager_Validation(t *testing.T) {
	_, err := NewManager(0)
	require.Error(t, err)

	_, err = NewManager(-time.Second)
	require.Error(t, err)
}

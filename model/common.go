package model

import "time"

type (
	// SessionId identifies one logical session (one open UI view).
	SessionId string

	// OperationId identifies one optimistic operation within a session.
	// Ids are never reused; a reconciliation correction reuses the
	// server-assigned id so later confirms line up.
	OperationId string

	// ClientId identifies a connected client instance.
	ClientId string

	// SessionStatus is the server-owned session activity state.
	SessionStatus string
)

const (
	StatusIdle      SessionStatus = "idle"
	StatusStreaming SessionStatus = "streaming"
)

// DefaultRollbackTimeout is the window an optimistic operation is given to
// resolve before the scheduled rollback effect fires.
const DefaultRollbackTimeout = 10 * time.Second

package model

type (
	// Snapshot is the last known authoritative state of one session.
	Snapshot struct {
		Messages []Message
		Queue    []QueueItem
		Reply    string
		Status   SessionStatus
	}

	// Message is a confirmed or provisional conversation entry.
	Message struct {
		Id      string
		Content string
		Pending bool
	}

	// QueueItem is an entry waiting for the session to become idle.
	QueueItem struct {
		Id      string
		Content string
		Pending bool
	}

	// SnapshotUpdate is a partial Snapshot overwrite; nil fields keep the
	// current value.
	SnapshotUpdate struct {
		Messages *[]Message
		Queue    *[]QueueItem
		Reply    *string
		Status   *SessionStatus
	}
)

// Clone returns a deep copy (slices are not shared with the receiver).
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Reply:  s.Reply,
		Status: s.Status,
	}
	if len(s.Messages) > 0 {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	if len(s.Queue) > 0 {
		out.Queue = make([]QueueItem, len(s.Queue))
		copy(out.Queue, s.Queue)
	}

	return out
}

// Apply overwrites the set fields of the update on a snapshot copy.
func (s Snapshot) Apply(u SnapshotUpdate) Snapshot {
	out := s.Clone()
	if u.Messages != nil {
		out.Messages = make([]Message, len(*u.Messages))
		copy(out.Messages, *u.Messages)
	}
	if u.Queue != nil {
		out.Queue = make([]QueueItem, len(*u.Queue))
		copy(out.Queue, *u.Queue)
	}
	if u.Reply != nil {
		out.Reply = *u.Reply
	}
	if u.Status != nil {
		out.Status = *u.Status
	}

	return out
}

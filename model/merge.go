package model

// Merge folds pending operations onto the server snapshot in insertion order
// and returns the value a consumer should render. Inputs are not mutated.
func Merge(s Snapshot, pending []PendingOperation) Snapshot {
	out := s.Clone()

	for _, p := range pending {
		switch op := p.Operation.(type) {

		case AddMessageOperation:
			out.Messages = append(out.Messages, Message{
				Id:      string(p.Id),
				Content: op.Content,
				Pending: true,
			})

		case EnqueueOperation:
			out.Queue = append(out.Queue, QueueItem{
				Id:      string(p.Id),
				Content: op.Content,
				Pending: true,
			})

		case DequeueOperation:
			for i, item := range out.Queue {
				if item.Id == op.ItemId {
					out.Queue = append(out.Queue[:i], out.Queue[i+1:]...)
					break
				}
			}

		}
	}

	return out
}

package server

import (
	"fmt"
	"log"
	"time"

	"github.com/itiky/optimistic-sync/codec"
	"github.com/itiky/optimistic-sync/model"
	"github.com/itiky/optimistic-sync/storage"
)

// SyncService implements an RPC server service: authoritative session state,
// operation intake (with the queue-while-streaming redirect) and versioned
// diff reads encoded by the codec.
type SyncService struct {
	// Config
	streamTickPeriod time.Duration
	streamTickCount  int
	// State
	store   *storage.Store
	encoder codec.AutoStrategy
	//
	stopCh chan struct{}
}

// GetSession returns the latest session snapshot.
func (s *SyncService) GetSession(req model.GetSessionRequest, res *model.GetSessionResponse) error {
	if req.ClientId == "" {
		return fmt.Errorf("%s: empty", "ClientId")
	}
	if req.SessionId == "" {
		return fmt.Errorf("%s: empty", "SessionId")
	}

	session, err := s.store.GetOrCreate(req.SessionId)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}

	version, snapshot := session.Snapshot()
	res.Version = version
	res.Snapshot = snapshot

	return nil
}

// SubmitOperation applies a client operation to the authoritative state.
// An add-message submitted while the session is streaming is redirected to
// the queue; the response tells the client so it can correct its guess.
func (s *SyncService) SubmitOperation(req model.SubmitOperationRequest, res *model.SubmitOperationResponse) error {
	if req.ClientId == "" {
		return fmt.Errorf("%s: empty", "ClientId")
	}

	op, err := req.Operation.Operation(req.SessionId)
	if err != nil {
		return fmt.Errorf("operation (%s): %w", req.Operation.Type, err)
	}

	session, err := s.store.GetOrCreate(req.SessionId)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}

	var (
		events  []model.ServerEvent
		version int
	)
	switch op := op.(type) {

	case model.AddMessageOperation:
		if session.Status() == model.StatusStreaming {
			event, v, err := session.Enqueue(op.Content)
			if err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}
			events, version = []model.ServerEvent{event}, v
			res.AssignedId = event.ItemId
			res.Queued = true
			break
		}

		event, v, err := session.AddMessage(op.Content)
		if err != nil {
			return fmt.Errorf("add message: %w", err)
		}
		events, version = []model.ServerEvent{event}, v
		res.AssignedId = event.MessageId

		// A new message starts a streaming run
		statusEvent, v, err := session.SetStatus(model.StatusStreaming)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		events, version = append(events, statusEvent), v

	case model.EnqueueOperation:
		event, v, err := session.Enqueue(op.Content)
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		events, version = []model.ServerEvent{event}, v
		res.AssignedId = event.ItemId

	case model.DequeueOperation:
		dequeueEvents, v, err := session.Dequeue(op.ItemId)
		if err != nil {
			return fmt.Errorf("dequeue: %w", err)
		}
		events, version = dequeueEvents, v
		res.AssignedId = op.ItemId

	default:
		return fmt.Errorf("unsupported operation: %T", op)
	}

	res.Version = version
	res.Events = model.NewEventRecords(events...)

	go monitor.OpsHandled(1)

	return nil
}

// GetUpdates returns the events emitted since the client's snapshot version
// plus the encoded snapshot transition to the latest version.
func (s *SyncService) GetUpdates(req model.GetUpdatesRequest, res *model.GetUpdatesResponse) error {
	start := time.Now()

	if req.SessionId == "" {
		return fmt.Errorf("%s: empty", "SessionId")
	}

	session, err := s.store.GetOrCreate(req.SessionId)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}

	version, events, from, to, err := session.Diff(req.Version)
	if err != nil {
		return fmt.Errorf("diff (v%d): %w", req.Version, err)
	}

	res.Version = version
	if version == req.Version {
		return nil
	}

	payload, err := s.encoder.Encode(from, to)
	if err != nil {
		return fmt.Errorf("encode transition (v%d -> v%d): %w", req.Version, version, err)
	}

	res.Events = model.NewEventRecords(events...)
	res.Snapshot = payload

	go monitor.DiffRequestServed(time.Since(start))

	return nil
}

// Start starts the service worker.
func (s *SyncService) Start() {
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	monitor.Start()
	go s.worker()
}

// Stop stops the service worker.
func (s *SyncService) Stop() {
	if s.stopCh == nil {
		return
	}

	close(s.stopCh)
	monitor.Stop()
}

// worker simulates the reply streaming pipeline: while a session streams,
// its reply text grows token by token; when the run completes, the reply is
// flushed and the queued messages are drained into the conversation,
// starting the next run.
func (s *SyncService) worker() {
	log.Println("SyncService: start")

	progress := make(map[model.SessionId]int)

	tickCh := time.Tick(s.streamTickPeriod)
	for {
		select {
		case <-s.stopCh:
			// Service stop
			log.Println("SyncService: stop")
			return
		case <-tickCh:
			// Advance every streaming session
			for _, id := range s.store.Ids() {
				session, err := s.store.GetOrCreate(id)
				if err != nil {
					log.Printf("SyncService: session lookup (%s): %v", id, err)
					continue
				}
				if session.Status() != model.StatusStreaming {
					continue
				}

				if progress[id] < s.streamTickCount {
					if _, _, err := session.AppendReply(replyToken(progress[id])); err != nil {
						log.Printf("SyncService: append reply (%s): %v", id, err)
						continue
					}
					progress[id]++
					go monitor.StreamTick()
					continue
				}

				// Run complete
				delete(progress, id)
				if err := s.finishStream(session); err != nil {
					log.Printf("SyncService: finish stream (%s): %v", id, err)
				}
			}
		}
	}
}

// finishStream flushes the reply, drains the queue and decides whether the
// next run starts immediately.
func (s *SyncService) finishStream(session *storage.Session) error {
	if _, _, err := session.ResetReply(); err != nil {
		return fmt.Errorf("reset reply: %w", err)
	}

	drained := session.QueueLen() > 0
	if drained {
		if _, _, err := session.DrainQueue(); err != nil {
			return fmt.Errorf("drain queue: %w", err)
		}
	}

	status := model.StatusIdle
	if drained {
		// Drained messages start the next run
		status = model.StatusStreaming
	}
	if _, _, err := session.SetStatus(status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	return nil
}

// replyToken builds the n-th streamed token.
func replyToken(n int) string {
	words := []string{"the ", "quick ", "brown ", "fox ", "jumps ", "over ", "a ", "lazy ", "dog "}
	return words[n%len(words)]
}

// NewSyncService creates a new SyncService object.
func NewSyncService(store *storage.Store, streamTickPeriod time.Duration, streamTickCount int) (*SyncService, error) {
	if store == nil {
		return nil, fmt.Errorf("%s: nil", "store")
	}
	if streamTickPeriod <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "streamTickPeriod")
	}
	if streamTickCount < 1 {
		return nil, fmt.Errorf("%s: must be GTE 1", "streamTickCount")
	}

	return &SyncService{
		store:            store,
		streamTickPeriod: streamTickPeriod,
		streamTickCount:  streamTickCount,
	}, nil
}

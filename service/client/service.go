package client

import (
	"fmt"
	"log"
	"net"
	"net/rpc"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/itiky/optimistic-sync/codec"
	"github.com/itiky/optimistic-sync/model"
	"github.com/itiky/optimistic-sync/session"
)

// Client is the reference sync client: it submits operations optimistically
// through a session.Manager, interprets the returned effects (owning the
// actual rollback timers the core only schedules as data) and keeps the
// local state consistent via confirmations, reconciliation and snapshot
// polling.
type Client struct {
	// Config
	id        model.ClientId
	sessionId model.SessionId
	submitDur time.Duration // operation submit period
	pollDur   time.Duration // snapshot update polling period
	// State
	manager *session.Manager
	decoder codec.AutoStrategy
	// Pristine server-version snapshot the payloads are decoded against
	baseVersion  int
	baseSnapshot model.Snapshot
	// Scheduled rollback timers, keyed by optimistic id
	timersMu sync.Mutex
	timers   map[model.OperationId]*time.Timer
	//
	rpcClient *rpc.Client
	stopCh    chan interface{}
}

// String implements the stringer interface.
func (c *Client) String() string {
	return fmt.Sprintf("Client (%s)", c.id)
}

// Start starts the Client worker.
func (c *Client) Start() {
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan interface{})

	monitor.Start()
	go c.worker()
}

// Stop stops the Client worker.
func (c *Client) Stop() {
	if c.stopCh == nil {
		return
	}

	close(c.stopCh)
	monitor.Stop()
}

// worker does the actual job.
func (c *Client) worker() {
	log.Printf("%s: start", c.String())
	log.Printf("%s: sessionId: %s", c.String(), c.sessionId)
	log.Printf("%s: submitDur: %v", c.String(), c.submitDur)
	log.Printf("%s: pollDur:   %v", c.String(), c.pollDur)

	if err := c.initSnapshot(); err != nil {
		log.Fatalf("%s: snapshot initialization: %v", c.String(), err)
	}

	submitCh := time.Tick(c.submitDur)
	pollCh := time.Tick(c.pollDur)
	for {
		select {
		case <-submitCh:
			// Submit an optimistic operation
			if err := c.submitMessage(); err != nil {
				log.Fatalf("%s: submitting operation: %v", c.String(), err)
			}
		case <-pollCh:
			// Update the local snapshot
			if err := c.pollUpdates(); err != nil {
				log.Fatalf("%s: polling updates: %v", c.String(), err)
			}
		case <-c.stopCh:
			// Stop the client
			log.Printf("%s: stop", c.String())
			c.cancelAllTimers()
			c.manager.Drop(c.sessionId)
			c.rpcClient.Close()
			return
		}
	}
}

// NewClient creates a new Client object.
func NewClient(id model.ClientId, sessionId model.SessionId, submitDur, pollDur time.Duration, serverUrl string) (*Client, error) {
	const (
		numOfRetries     = 120
		retryFallbackDur = 500 * time.Millisecond
	)

	if id == "" {
		return nil, fmt.Errorf("%s: empty", "id")
	}
	if sessionId == "" {
		return nil, fmt.Errorf("%s: empty", "sessionId")
	}
	if submitDur <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "submitDur")
	}
	if pollDur <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "pollDur")
	}

	manager, err := session.NewManager(model.DefaultRollbackTimeout)
	if err != nil {
		return nil, fmt.Errorf("session.NewManager: %w", err)
	}

	c := Client{
		id:        id,
		sessionId: sessionId,
		//
		submitDur: submitDur,
		pollDur:   pollDur,
		//
		manager: manager,
		timers:  make(map[model.OperationId]*time.Timer),
	}

	for retry := 0; retry < numOfRetries; retry++ {
		client, err := rpc.Dial("tcp", serverUrl)
		if err == nil {
			c.rpcClient = client
			break
		}

		if netErr, ok := err.(*net.OpError); ok {
			if sysErr, ok := netErr.Err.(*os.SyscallError); ok {
				if sysErr.Err == syscall.ECONNREFUSED {
					time.Sleep(retryFallbackDur)
					continue
				}
			}
		}

		return nil, fmt.Errorf("rpc.Dial(%s): %w", serverUrl, err)
	}
	if c.rpcClient == nil {
		return nil, fmt.Errorf("RPC connection failed after %d retries with %v fallback", numOfRetries, retryFallbackDur)
	}

	return &c, nil
}

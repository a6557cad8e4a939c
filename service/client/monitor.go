package client

import (
	"log"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

var monitor *Monitor

// Monitor keeps Client stats.
type Monitor struct {
	sync.Mutex
	submitReqDur *movingaverage.MovingAverage
	pollReqDur   *movingaverage.MovingAverage
	submitSend   int
	pollRecv     int
	payloadBytes int
	fullBytes    int
	stopCh       chan struct{}
}

// OperationSubmitted updates the operation submit metrics.
func (m *Monitor) OperationSubmitted(dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.submitSend++
	m.submitReqDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// UpdatesReceived updates the snapshot polling metrics.
func (m *Monitor) UpdatesReceived(dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.pollRecv++
	m.pollReqDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// PayloadReceived accounts the bytes actually received against the full
// snapshot bytes a value-mode transfer would have cost.
func (m *Monitor) PayloadReceived(payloadSize, fullSize int) {
	m.Lock()
	defer m.Unlock()

	m.payloadBytes += payloadSize
	m.fullBytes += fullSize
}

// Start starts the Monitor worker.
func (m *Monitor) Start() {
	if m.stopCh != nil {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker()
}

// Stop stops the Monitor worker.
func (m *Monitor) Stop() {
	if m.stopCh == nil {
		return
	}

	close(m.stopCh)
}

// worker does the actual job.
func (m *Monitor) worker() {
	const period = 5 * time.Second

	tickCh := time.Tick(period)
	for {
		select {
		case <-m.stopCh:
			// Stop the monitor
			return
		case <-tickCh:
			// Print the report
			m.Lock()

			submitsPerSec := float64(m.submitSend) / (float64(period) / float64(time.Second))
			pollsPerSec := float64(m.pollRecv) / (float64(period) / float64(time.Second))
			savedPct := 0.0
			if m.fullBytes > 0 {
				savedPct = 100.0 * float64(m.fullBytes-m.payloadBytes) / float64(m.fullBytes)
			}
			log.Printf("Monitor:")
			log.Printf("  - Submit requests / s:     %.2f", submitsPerSec)
			log.Printf("  - Poll requests / s:       %.2f", pollsPerSec)
			log.Printf("  - Submit request dur [ms]: %.2f", m.submitReqDur.Avg())
			log.Printf("  - Poll request dur [ms]:   %.2f", m.pollReqDur.Avg())
			log.Printf("  - Payload bytes saved:     %.2f%% (%d of %d)", savedPct, m.fullBytes-m.payloadBytes, m.fullBytes)
			m.submitSend = 0
			m.pollRecv = 0

			m.Unlock()
		}
	}
}

func init() {
	monitor = &Monitor{
		submitReqDur: movingaverage.New(3),
		pollReqDur:   movingaverage.New(3),
	}
}

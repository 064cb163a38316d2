/*
scheduler.go - Periodic EAC snapshot scheduler

PURPOSE:
  Records an EAC snapshot for every project on a fixed interval so the
  analytics trend has data even when nobody posts to /eac-history.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Snapshots once immediately on start
  - A failing project is logged and skipped by the service

CONFIGURATION:
  - Interval: How often to snapshot (default: 24 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSnapshotScheduler(costs)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreateSnapshot endpoint (manual snapshot)
  - costcontrol/service.go: SnapshotAll
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/project-control/costcontrol"
)

// SnapshotScheduler records EAC snapshots for all projects.
type SnapshotScheduler struct {
	Costs    *costcontrol.Service
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSnapshotScheduler creates a new scheduler.
func NewSnapshotScheduler(costs *costcontrol.Service) *SnapshotScheduler {
	return &SnapshotScheduler{
		Costs:    costs,
		Interval: 24 * time.Hour,
		Enabled:  true,
	}
}

// Start begins the scheduler.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	// A fresh stop channel per start, Stop closes it.
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan bool)
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	log.Printf("[Scheduler] Started with interval: %v", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight run.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (s *SnapshotScheduler) run(ticker *time.Ticker, stop <-chan bool) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow records one round of snapshots and returns how many were written.
func (s *SnapshotScheduler) RunNow() int {
	ctx := context.Background()
	start := time.Now()

	n, err := s.Costs.SnapshotAll(ctx)
	if err != nil {
		log.Printf("[Scheduler] Snapshot run failed after %d projects: %v", n, err)
		return n
	}
	log.Printf("[Scheduler] Recorded %d snapshots in %v", n, time.Since(start))
	return n
}

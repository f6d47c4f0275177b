/*
scheduler.go - Automated daily sync scheduler

PURPOSE:
  Periodically triggers the whole-roster sync pass so missing months are
  materialized and stale pending records promoted without anyone opening
  the app.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The engine itself enforces the once-per-day gate via the persisted
    sync marker, so the ticker can fire hourly without over-running
  - A failed pass leaves the marker unchanged and the next tick retries

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunSync endpoint (manual trigger)
  - dues/sync.go: The pass itself and its gating rules
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// SyncScheduler triggers the daily sync pass.
type SyncScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(handler *Handler) *SyncScheduler {
	return &SyncScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SyncScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SyncScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SyncScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.checkAndSync()

	for {
		select {
		case <-ss.ticker.C:
			ss.checkAndSync()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SyncScheduler) checkAndSync() {
	ctx := context.Background()

	report, err := ss.Handler.Engine.RunSync(ctx, false)
	if err != nil {
		log.Printf("[Scheduler] Sync pass failed: %v", err)
		return
	}
	if report.Skipped {
		return
	}
	log.Printf("[Scheduler] Sync pass completed: %d created, %d promoted", report.Created, report.Promoted)
}

// RunNow triggers an immediate check (for testing/admin).
func (ss *SyncScheduler) RunNow() {
	ss.checkAndSync()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ss *SyncScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}

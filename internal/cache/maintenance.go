package cache

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Sweeper proactively removes TTL-expired entries from L1 on a fixed
// interval, bounding memory even for cold keys that are never re-accessed.
// It scans in batches and yields between them so it never holds the store
// lock across a whole sweep.
type Sweeper struct {
	l1        *L1Store
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
}

// NewSweeper creates a sweeper over the given L1 store.
func NewSweeper(l1 *L1Store, interval time.Duration, batchSize int, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		l1:        l1,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start launches the background sweep loop. Calling Start on a running
// sweeper is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.loop(s.stopCh, s.stopped)
}

// Stop terminates the sweep loop and waits for it to exit. Calling Stop on a
// stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
}

func (s *Sweeper) loop(stopCh, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if removed := s.sweepOnce(); removed > 0 {
				s.logger.Debug("swept expired entries", "removed", removed)
			}
		}
	}
}

// sweepOnce scans a snapshot of the current keys in batches, removing the
// entries whose TTL elapsed. Keys inserted after the snapshot are picked up
// by the next tick.
func (s *Sweeper) sweepOnce() int {
	keys := s.l1.Keys()

	removed := 0
	for start := 0; start < len(keys); start += s.batchSize {
		end := start + s.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		removed += s.l1.DeleteExpired(keys[start:end])

		// Low-priority activity: let request goroutines in between batches.
		runtime.Gosched()
	}
	return removed
}

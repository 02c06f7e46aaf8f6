package trust

import (
	"log"
	"time"
)

// Scheduler periodically snapshots and persists a Manager's store on its own
// goroutine, decoupled from the mutation path per the single-writer,
// no-blocking-on-hot-path discipline.
type Scheduler struct {
	manager  *Manager
	path     string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler builds a Scheduler that flushes m to path every interval.
// A non-positive interval disables periodic flushing; Stop still performs
// a final flush.
func NewScheduler(m *Manager, path string, interval time.Duration) *Scheduler {
	return &Scheduler{
		manager:  m,
		path:     path,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic flush loop if an interval is configured.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		close(s.done)
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.flush(); err != nil {
					log.Printf("[governor] trust persist failed: %v", err)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the periodic loop and performs one final flush.
func (s *Scheduler) Stop() error {
	select {
	case <-s.done:
	default:
		close(s.stop)
		<-s.done
	}
	return s.flush()
}

func (s *Scheduler) flush() error {
	if !s.manager.Dirty() {
		return nil
	}
	snapshot := s.manager.Snapshot()
	return Save(s.path, snapshot)
}

package audit

import (
	"log"
	"time"
)

// retentionTick is how often the scheduler checks whether a daily
// retention sweep is due; it only acts once retentionInterval has elapsed
// since the last sweep, so the check itself can be cheap and frequent.
const retentionTick = time.Minute

// retentionInterval is how often the retention sweep actually runs, per
// the "at startup and daily" requirement; NewStore already performs the
// startup pass.
const retentionInterval = 24 * time.Hour

// Scheduler drains the Store's buffer on its own goroutine whenever the
// oldest buffered record has waited past flushInterval, decoupling file I/O
// from the append hot path per the single-writer discipline. It also runs
// the store's daily retention sweep.
type Scheduler struct {
	store *Store
	tick  time.Duration
	stop  chan struct{}
	done  chan struct{}
}

// NewScheduler builds a Scheduler polling at the given tick, which should
// be finer-grained than the Store's own flushInterval (e.g. 100ms ticks
// against a 1s flush interval).
func NewScheduler(store *Store, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Scheduler{store: store, tick: tick, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the polling loop.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		retention := time.NewTicker(retentionTick)
		defer retention.Stop()
		lastSwept := time.Now()
		for {
			select {
			case <-ticker.C:
				if s.store.DueForFlush() {
					if err := s.store.Flush(); err != nil {
						log.Printf("[governor] audit flush failed: %v", err)
					}
				}
			case <-retention.C:
				if time.Since(lastSwept) >= retentionInterval {
					s.store.ApplyRetention()
					lastSwept = time.Now()
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and performs one final unconditional flush.
func (s *Scheduler) Stop() error {
	close(s.stop)
	<-s.done
	return s.store.Flush()
}

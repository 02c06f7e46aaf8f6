package audit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/agentgov/governor/internal/chain"
	"github.com/agentgov/governor/internal/models"
)

// LedgerBridge batches (record id, hash) pairs from committed audit records
// and asynchronously commits them to an optional compliance chain.Ledger.
// It never blocks Append: a full channel drops the notification rather than
// stalling the audit hot path.
type LedgerBridge struct {
	ledger    chain.Ledger
	batchSize int
	interval  time.Duration
	ch        chan recordHash
	stop      chan struct{}
	wg        sync.WaitGroup
}

type recordHash struct {
	RecordID string
	Hash     string
}

// NewLedgerBridge builds a bridge that commits to ledger in batches of
// batchSize, or every interval, whichever comes first.
func NewLedgerBridge(ledger chain.Ledger, batchSize int, interval time.Duration) *LedgerBridge {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &LedgerBridge{
		ledger:    ledger,
		batchSize: batchSize,
		interval:  interval,
		ch:        make(chan recordHash, 500),
		stop:      make(chan struct{}),
	}
}

// Start launches the background batching goroutine.
func (b *LedgerBridge) Start() {
	b.wg.Add(1)
	go b.loop()
}

// Stop drains and commits any partial batch, then returns.
func (b *LedgerBridge) Stop() {
	close(b.stop)
	b.wg.Wait()
}

// Notify enqueues a committed record's hash for eventual ledger commitment.
// Safe to call from the audit append path; never blocks.
func (b *LedgerBridge) Notify(r models.AuditRecord) {
	select {
	case b.ch <- recordHash{RecordID: r.ID, Hash: r.Hash}:
	default:
		log.Printf("[governor] ledger bridge queue full, dropping record %s", r.ID)
	}
}

func (b *LedgerBridge) loop() {
	defer b.wg.Done()
	buf := make(map[string]string)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		batchID := "audit-" + time.Now().UTC().Format("20060102150405")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := b.ledger.AppendBatch(ctx, batchID, buf)
		cancel()
		if err != nil {
			log.Printf("[governor] compliance ledger batch commit failed (batch=%s): %v", batchID, err)
			return
		}
		buf = make(map[string]string)
	}

	for {
		select {
		case <-b.stop:
		drain:
			for {
				select {
				case rh := <-b.ch:
					buf[rh.RecordID] = rh.Hash
				default:
					break drain
				}
			}
			flush()
			return
		case rh := <-b.ch:
			buf[rh.RecordID] = rh.Hash
			if len(buf) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

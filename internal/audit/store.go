// Package audit assembles hash-chained, redacted audit records and persists
// them to per-day JSONL segments with a tamper-evident chain head.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/util"
)

const (
	defaultFlushSize     = 100
	defaultFlushInterval = time.Second
	chainStateFile        = "chain-state.json"
)

// AppendInput carries everything Append needs to assemble one record; the
// hash chain fields (Seq, PrevHash, Hash) are computed internally.
type AppendInput struct {
	AgentID            string
	Hook               models.HookKind
	ToolName           string
	Context            *models.EvaluationContext
	Verdict            models.Action
	Trust              models.TrustSnapshot
	Risk               models.RiskAssessment
	Matched            []models.MatchedPolicy
	EvaluationUs       int64
	LLMConsulted       bool
	ComplianceControls []string
}

// Query filters a segment scan by agent id, verdict, and inclusive
// timestamp range. Zero values are treated as unconstrained; Limit<=0
// means unbounded.
type Query struct {
	AgentID string
	Verdict models.Action
	After   time.Time
	Before  time.Time
	Limit   int
}

// Store owns the audit chain: buffered append, periodic flush to
// per-day JSONL segments, startup verification, and retention cleanup.
type Store struct {
	mu       sync.Mutex
	dir      string
	head     models.ChainHead
	buffer   []models.AuditRecord
	oldest   time.Time
	redactor *Redactor
	clock    util.Clock
	idGen    func() string

	flushSize     int
	flushInterval time.Duration
	retentionDays int
	readOnly      bool

	stop chan struct{}
	done chan struct{}
}

// Options configures a new Store.
type Options struct {
	Dir                string
	Redactor           *Redactor
	Clock              util.Clock
	IDGen              func() string
	FlushSize          int
	FlushInterval      time.Duration
	RetentionDays      int
	VerifyOnStartup    bool
}

// NewStore loads the chain head (if any) from dir, optionally verifies the
// full chain, and returns a ready Store. The background flush timer is run
// by a Scheduler (NewScheduler), whose Stop performs the final flush.
func NewStore(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("audit: store directory required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	if opts.FlushSize <= 0 {
		opts.FlushSize = defaultFlushSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.Clock == nil {
		opts.Clock = util.NewSystemClock()
	}
	if opts.Redactor == nil {
		opts.Redactor = NewRedactor(nil)
	}

	head, err := loadHead(opts.Dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:           opts.Dir,
		head:          head,
		redactor:      opts.Redactor,
		clock:         opts.Clock,
		idGen:         opts.IDGen,
		flushSize:     opts.FlushSize,
		flushInterval: opts.FlushInterval,
		retentionDays: opts.RetentionDays,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	if opts.VerifyOnStartup {
		if err := s.VerifyChain(); err != nil {
			var broken *ChainBrokenError
			if errors.As(err, &broken) {
				log.Printf("[governor] audit: chain verification failed (%v); continuing in read-only audit mode, no new records will be appended", err)
				s.readOnly = true
			} else {
				return nil, err
			}
		}
	}
	if opts.RetentionDays > 0 {
		s.applyRetention()
	}

	return s, nil
}

// ReadOnly reports whether the store detected a broken hash chain at
// startup and disabled appends rather than refuse to start.
func (s *Store) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

func loadHead(dir string) (models.ChainHead, error) {
	path := filepath.Join(dir, chainStateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ChainHead{LastHash: models.ZeroHash}, nil
		}
		return models.ChainHead{}, fmt.Errorf("audit: read chain state: %w", err)
	}
	var head models.ChainHead
	if err := json.Unmarshal(data, &head); err != nil {
		return models.ChainHead{}, fmt.Errorf("audit: parse chain state: %w", err)
	}
	if head.LastHash == "" {
		head.LastHash = models.ZeroHash
	}
	return head, nil
}

func saveHead(dir string, head models.ChainHead) error {
	data, err := json.MarshalIndent(head, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal chain state: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".chain-state-*.tmp")
	if err != nil {
		return fmt.Errorf("audit: chain state temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("audit: write chain state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, chainStateFile))
}

// Append assembles and buffers one audit record, flushing immediately if
// the buffer has reached flushSize.
func (s *Store) Append(in AppendInput) (models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return models.AuditRecord{}, nil
	}

	now := s.clock.Now()
	seq := s.head.Seq + 1
	prevHash := s.head.LastHash

	redacted := models.EvaluationContext{}
	if in.Context != nil {
		redacted = s.redactor.Redact(in.Context)
	}

	wallMs := now.UnixMilli()
	hash := util.SHA256Hex(
		fmt.Sprintf("%d", seq),
		fmt.Sprintf("%d", wallMs),
		string(in.Verdict),
		in.AgentID,
		string(in.Hook),
		in.ToolName,
		prevHash,
	)

	record := models.AuditRecord{
		Seq:                seq,
		ID:                 s.newID(),
		PrevHash:           prevHash,
		Hash:               hash,
		WallMs:             wallMs,
		Timestamp:          now,
		Verdict:            in.Verdict,
		AgentID:            in.AgentID,
		Hook:               in.Hook,
		ToolName:           in.ToolName,
		Context:            redacted,
		Trust:              in.Trust,
		Risk:               in.Risk,
		Matched:            in.Matched,
		EvaluationUs:       in.EvaluationUs,
		LLMConsulted:       in.LLMConsulted,
		ComplianceControls: in.ComplianceControls,
	}

	if len(s.buffer) == 0 {
		s.oldest = now
	}
	s.buffer = append(s.buffer, record)
	s.head = models.ChainHead{Seq: seq, LastHash: hash, LastTime: now, RecordCount: s.head.RecordCount + 1}

	shouldFlush := len(s.buffer) >= s.flushSize
	if shouldFlush {
		if err := s.flushLocked(); err != nil {
			return record, err
		}
	}
	return record, nil
}

func (s *Store) newID() string {
	if s.idGen != nil {
		return s.idGen()
	}
	return fmt.Sprintf("audit-%d-%d", s.head.Seq+1, s.clock.NowUs())
}

// DueForFlush reports whether the buffer's oldest record has waited longer
// than flushInterval; used by the periodic timer.
func (s *Store) DueForFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return false
	}
	return s.clock.Now().Sub(s.oldest) >= s.flushInterval
}

// Flush drains the buffer to disk regardless of size/time thresholds.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}
	byDate := make(map[string][]models.AuditRecord)
	for _, r := range s.buffer {
		date := r.Timestamp.UTC().Format("2006-01-02")
		byDate[date] = append(byDate[date], r)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if err := appendSegment(s.dir, date, byDate[date]); err != nil {
			return err
		}
	}
	if err := saveHead(s.dir, s.head); err != nil {
		return err
	}
	s.buffer = nil
	return nil
}

func appendSegment(dir, date string, records []models.AuditRecord) error {
	path := filepath.Join(dir, date+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open segment %s: %w", date, err)
	}
	defer f.Close()
	for _, r := range records {
		line, err := marshalSorted(r)
		if err != nil {
			return fmt.Errorf("audit: marshal record seq=%d: %w", r.Seq, err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("audit: write record seq=%d: %w", r.Seq, err)
		}
	}
	return nil
}

// marshalSorted serialises a record as compact JSON. encoding/json already
// emits object keys in a struct's declared field order via reflection, but
// the map-valued Context.ToolParams/Metadata fields are sorted by Go's
// stdlib (since Go 1.12) when marshaling maps, giving stable diffs.
func marshalSorted(r models.AuditRecord) ([]byte, error) {
	return json.Marshal(r)
}

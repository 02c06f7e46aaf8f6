package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentgov/governor/internal/models"
)

// Query scans the segment files overlapping [q.After, q.Before] (or all
// segments if unset) and returns matching records, oldest first, capped at
// q.Limit if positive. Buffered-but-unflushed records are included so a
// query immediately after Append sees them.
func (s *Store) Query(q Query) ([]models.AuditRecord, error) {
	s.mu.Lock()
	buffered := append([]models.AuditRecord(nil), s.buffer...)
	dir := s.dir
	s.mu.Unlock()

	segments, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	var out []models.AuditRecord
	for _, seg := range segments {
		if !dateInRange(seg, q.After, q.Before) {
			continue
		}
		records, err := readSegment(segmentPath(dir, seg))
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	out = append(out, buffered...)

	filtered := out[:0]
	for _, r := range out {
		if q.AgentID != "" && r.AgentID != q.AgentID {
			continue
		}
		if q.Verdict != "" && r.Verdict != q.Verdict {
			continue
		}
		if !q.After.IsZero() && r.Timestamp.Before(q.After) {
			continue
		}
		if !q.Before.IsZero() && r.Timestamp.After(q.Before) {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Seq < filtered[j].Seq })

	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, nil
}

func dateInRange(date string, after, before time.Time) bool {
	if after.IsZero() && before.IsZero() {
		return true
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return true // unrecognised filename, let per-record filtering decide
	}
	if !after.IsZero() && d.Before(after.Truncate(24*time.Hour)) {
		return false
	}
	if !before.IsZero() && d.After(before) {
		return false
	}
	return true
}

func segmentPath(dir, date string) string {
	return filepath.Join(dir, date+".jsonl")
}

func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("audit: list segments: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".jsonl") {
			dates = append(dates, strings.TrimSuffix(name, ".jsonl"))
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func readSegment(path string) ([]models.AuditRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: open segment: %w", err)
	}
	defer f.Close()

	var out []models.AuditRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r models.AuditRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("audit: parse segment %s: %w", path, err)
		}
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan segment %s: %w", path, err)
	}
	return out, nil
}

package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentgov/governor/internal/models"
)

// JSONStore persists each EscalationRequest as its own file at
// <dir>/<id>.json, matching the teacher's one-file-per-object layout.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore opens (creating if necessary) a directory-backed store.
func NewJSONStore(dir string) (*JSONStore, error) {
	if dir == "" {
		return nil, errors.New("escalation: store directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) path(id string) string { return filepath.Join(s.dir, id+".json") }

// Put writes obj, overwriting any existing file for the same id.
func (s *JSONStore) Put(ctx context.Context, obj *models.EscalationRequest) error {
	if obj == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(obj.ID), data, 0o644)
}

// Get reads obj by id; a missing file returns (nil, nil).
func (s *JSONStore) Get(ctx context.Context, id string) (*models.EscalationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var obj models.EscalationRequest
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

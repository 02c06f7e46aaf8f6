package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentgov/governor/internal/models"
)

// Load reads the trust store from path. A missing file yields an empty
// store. A file that fails to parse is preserved with a .corrupt-<ts>
// suffix and an empty store is returned so the engine can keep serving.
func Load(path string) (*models.TrustStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.TrustStore{Version: 1, Agents: make(map[string]*models.AgentTrust)}, nil
		}
		return nil, fmt.Errorf("trust store read: %w", err)
	}
	var store models.TrustStore
	if err := json.Unmarshal(data, &store); err != nil {
		corrupt := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
		if renameErr := os.Rename(path, corrupt); renameErr != nil {
			return nil, fmt.Errorf("trust store parse failed (%v) and could not preserve corrupt file: %w", err, renameErr)
		}
		return &models.TrustStore{Version: 1, Agents: make(map[string]*models.AgentTrust)}, nil
	}
	if store.Agents == nil {
		store.Agents = make(map[string]*models.AgentTrust)
	}
	return &store, nil
}

// Save serialises store to path via write-then-rename in the same
// directory, so a crash mid-write never leaves a truncated store visible.
func Save(path string, store models.TrustStore) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("trust store marshal: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".trust-*.tmp")
	if err != nil {
		return fmt.Errorf("trust store temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("trust store write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("trust store close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("trust store rename: %w", err)
	}
	return nil
}

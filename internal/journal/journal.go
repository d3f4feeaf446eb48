// internal/journal/journal.go

// Package journal persists the evolution log: the append-only audit trail of
// every terminal pipeline decision. The log file is best-effort durable; a
// corrupt or missing file never prevents the pipeline from starting.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Journal is the owned-by-the-orchestrator evolution log store. Multiple
// orchestrator instances get their own Journal; there is no package-level
// singleton.
type Journal struct {
	logger     *zap.Logger
	path       string
	maxEntries int

	mu      sync.Mutex
	entries []schemas.EvolutionLogEntry
}

// New creates a Journal persisting to path, truncated to maxEntries on every
// save. maxEntries <= 0 selects the default of 500.
func New(logger *zap.Logger, path string, maxEntries int) *Journal {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Journal{
		logger:     logger.Named("journal"),
		path:       path,
		maxEntries: maxEntries,
	}
}

// Load restores history from disk. Missing or corrupt files start an empty
// history.
func (j *Journal) Load() {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("Failed to read evolution log; starting empty.", zap.Error(err))
		}
		return
	}

	var entries []schemas.EvolutionLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		j.logger.Warn("Evolution log is corrupt; starting empty.", zap.Error(err))
		return
	}
	if len(entries) > j.maxEntries {
		entries = entries[len(entries)-j.maxEntries:]
	}

	j.mu.Lock()
	j.entries = entries
	j.mu.Unlock()
	j.logger.Info("Evolution log restored.", zap.Int("entries", len(entries)))
}

// Append records a terminal transition and saves the capped log. The append
// itself always succeeds in memory; only persistence can fail.
func (j *Journal) Append(entry schemas.EvolutionLogEntry) error {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	if len(j.entries) > j.maxEntries {
		j.entries = j.entries[len(j.entries)-j.maxEntries:]
	}
	snapshot := make([]schemas.EvolutionLogEntry, len(j.entries))
	copy(snapshot, j.entries)
	j.mu.Unlock()

	return j.save(snapshot)
}

func (j *Journal) save(entries []schemas.EvolutionLogEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal evolution log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write evolution log: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("failed to replace evolution log: %w", err)
	}
	return nil
}

// Entries returns a copy of the in-memory history, oldest first.
func (j *Journal) Entries() []schemas.EvolutionLogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]schemas.EvolutionLogEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len reports the current entry count.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

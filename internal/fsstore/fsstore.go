// internal/fsstore/fsstore.go

// Package fsstore implements the narrow filesystem surface the orchestrator
// consumes: whole-file reads and writes, existence checks, and derived-name
// backup copies. Writes go through a temp file and rename so a crash can
// never leave a target truncated.
package fsstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

const backupSuffix = ".seedbak"

// Store is a FileStore over the local filesystem.
type Store struct{}

var _ schemas.FileStore = (*Store)(nil)

// New returns a Store.
func New() *Store {
	return &Store{}
}

// Read returns the full content of path.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces the content of path atomically. The temp file lives in the
// same directory so the final rename stays on one filesystem.
func (s *Store) Write(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path names an existing file.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// BackupPath returns the derived backup name for path.
func (s *Store) BackupPath(path string) string {
	return path + backupSuffix
}

// Backup copies the current content of path to its derived backup name and
// returns that name. The backup itself is written atomically.
func (s *Store) Backup(path string) (string, error) {
	content, err := s.Read(path)
	if err != nil {
		return "", fmt.Errorf("failed to read for backup: %w", err)
	}
	backup := s.BackupPath(path)
	if err := s.Write(backup, content); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backup, nil
}

// Restore copies the derived backup back over path.
func (s *Store) Restore(path string) error {
	content, err := s.Read(s.BackupPath(path))
	if err != nil {
		return fmt.Errorf("failed to read backup for %s: %w", path, err)
	}
	if err := s.Write(path, content); err != nil {
		return fmt.Errorf("failed to restore %s: %w", path, err)
	}
	return nil
}

// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

// -- Oracle Mock --

// MockOracle mocks schemas.Oracle.
type MockOracle struct {
	mock.Mock
	id string
}

// NewMockOracle creates a mock with a fixed provider identifier.
func NewMockOracle(id string) *MockOracle {
	return &MockOracle{id: id}
}

func (m *MockOracle) Ask(ctx context.Context, prompt, systemPrompt string, opts schemas.AskOptions) (schemas.OracleResponse, error) {
	args := m.Called(ctx, prompt, systemPrompt, opts)
	return args.Get(0).(schemas.OracleResponse), args.Error(1)
}

func (m *MockOracle) ProviderID() string {
	if m.id != "" {
		return m.id
	}
	args := m.Called()
	return args.String(0)
}

// -- FileStore Mock --

// MockFileStore mocks schemas.FileStore.
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Read(path string) ([]byte, error) {
	args := m.Called(path)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFileStore) Write(path string, content []byte) error {
	args := m.Called(path, content)
	return args.Error(0)
}

func (m *MockFileStore) Exists(path string) bool {
	args := m.Called(path)
	return args.Bool(0)
}

func (m *MockFileStore) Backup(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) Restore(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockFileStore) BackupPath(path string) string {
	args := m.Called(path)
	return args.String(0)
}

// -- Committer Mock --

// MockCommitter mocks the orchestrator's MutationCommitter.
type MockCommitter struct {
	mock.Mock
}

func (m *MockCommitter) RecordMutation(file, description string) (string, error) {
	args := m.Called(file, description)
	return args.String(0), args.Error(1)
}

// -- In-memory FileStore --

// MemStore is a functional in-memory schemas.FileStore for tests that need
// real read-after-write behavior rather than expectation matching.
type MemStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	backups map[string][]byte

	// FailWrite, when set, makes the next Write return this error once.
	FailWrite error
	// FailRestore, when set, makes Restore always return this error.
	FailRestore error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		files:   make(map[string][]byte),
		backups: make(map[string][]byte),
	}
}

// Seed places initial content for a path.
func (s *MemStore) Seed(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), content...)
}

func (s *MemStore) Read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	if !ok {
		return nil, &fsError{op: "read", path: path}
	}
	return append([]byte(nil), b...), nil
}

func (s *MemStore) Write(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrite != nil {
		err := s.FailWrite
		s.FailWrite = nil
		return err
	}
	s.files[path] = append([]byte(nil), content...)
	return nil
}

func (s *MemStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *MemStore) Backup(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	if !ok {
		return "", &fsError{op: "backup", path: path}
	}
	s.backups[path] = append([]byte(nil), b...)
	return path + ".bak", nil
}

func (s *MemStore) Restore(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRestore != nil {
		return s.FailRestore
	}
	b, ok := s.backups[path]
	if !ok {
		return &fsError{op: "restore", path: path}
	}
	s.files[path] = append([]byte(nil), b...)
	return nil
}

func (s *MemStore) BackupPath(path string) string { return path + ".bak" }

type fsError struct {
	op   string
	path string
}

func (e *fsError) Error() string { return e.op + " " + e.path + ": no such file" }

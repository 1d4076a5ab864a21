// Package testingx provides testing utilities for the molt packages.
//
// Overview:
//   - Responsibility: Testing helpers and mocks
//   - Key Types: MockLogger capturing structured log entries
//   - Concurrency Model: MockLogger is safe for concurrent use
//   - Error Semantics: Test failures via testing.T
//   - Performance Notes: Optimized for test execution
//
// Usage:
//
//	logger := testingx.NewMockLogger(t)
//	component.Do(logger)
//	logger.AssertLogged("ERROR", "rebuild failed, previous instance retained")
package testingx

import (
	"sync"
	"testing"

	"github.com/molt-dev/molt/core/log"
)

// MockLogger is a mock logger for testing.
type MockLogger struct {
	t       *testing.T
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry represents a single captured log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  []any
	Error   error
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t *testing.T) *MockLogger {
	return &MockLogger{
		t:       t,
		entries: make([]LogEntry, 0),
	}
}

// With returns a new logger with the given fields.
func (m *MockLogger) With(kv ...any) log.Logger {
	return m // Simplified: just return self
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, kv ...any) {
	m.log("DEBUG", msg, nil, kv)
}

// Info logs an info message.
func (m *MockLogger) Info(msg string, kv ...any) {
	m.log("INFO", msg, nil, kv)
}

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, kv ...any) {
	m.log("WARN", msg, nil, kv)
}

// Error logs an error message.
func (m *MockLogger) Error(err error, msg string, kv ...any) {
	m.log("ERROR", msg, err, kv)
}

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  kv,
		Error:   err,
	})
}

// Entries returns all captured log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]LogEntry, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// AssertLogged asserts that a message was logged at the given level.
func (m *MockLogger) AssertLogged(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.Level == level && entry.Message == msg {
			return
		}
	}
	m.t.Errorf("expected %s log %q, got %d entries", level, msg, len(m.entries))
}

// AssertNotLogged asserts that no entry was logged at the given level.
func (m *MockLogger) AssertNotLogged(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.Level == level {
			m.t.Errorf("unexpected %s log %q", level, entry.Message)
			return
		}
	}
}

// Package notify publishes ingest-completed notifications so downstream
// consumers (dashboard rebuilds, alerting) can react to fresh data.
package notify

import (
	"context"
	"sync"
)

// Provider is the common interface for run notifications.
type Provider interface {
	// Publish announces that the pipeline run identified by runID completed.
	Publish(ctx context.Context, runID string) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpProvider discards notifications.
type NoOpProvider struct{}

// Publish does nothing.
func (*NoOpProvider) Publish(_ context.Context, _ string) error { return nil }

// Close does nothing.
func (*NoOpProvider) Close() error { return nil }

// MemoryProvider records notifications in memory for tests.
type MemoryProvider struct {
	mu     sync.Mutex
	runIDs []string
}

// NewMemory creates a MemoryProvider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{}
}

// Publish records the run ID.
func (m *MemoryProvider) Publish(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runIDs = append(m.runIDs, runID)
	return nil
}

// Published returns the recorded run IDs.
func (m *MemoryProvider) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.runIDs...)
}

// Close does nothing.
func (m *MemoryProvider) Close() error { return nil }

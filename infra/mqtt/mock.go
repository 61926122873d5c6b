package mqtt

import (
	"fmt"
	"sync"

	"github.com/kfloy/apron/core/heartbeat"
)

// MockPublisher is a simple in-memory publisher used in tests.
type MockPublisher struct {
	Messages []heartbeat.Progress
	FailIDs  map[string]bool
	mu       sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailIDs: make(map[string]bool)}
}

// PublishProgress records the heartbeat or returns an error if configured to fail.
func (m *MockPublisher) PublishProgress(p heartbeat.Progress) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[p.ScheduleID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Messages = append(m.Messages, p)
	return fmt.Sprintf("msg-%d", len(m.Messages)), nil
}

// Published returns a copy of the recorded heartbeats.
func (m *MockPublisher) Published() []heartbeat.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]heartbeat.Progress, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// Close is a no-op.
func (m *MockPublisher) Close() error { return nil }

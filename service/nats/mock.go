package nats

import (
	"context"
	"sync"
)

// MockPublisher records events in memory. It is safe for concurrent use.
type MockPublisher struct {
	mu           sync.RWMutex
	events       []*TransferEvent
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishTransfer records the event and returns any configured error.
func (m *MockPublisher) PublishTransfer(ctx context.Context, event *TransferEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.events = append(m.events, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of every recorded event.
func (m *MockPublisher) Events() []*TransferEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TransferEvent, len(m.events))
	copy(out, m.events)
	return out
}

// SetPublishError makes subsequent publishes fail with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether Close was called.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

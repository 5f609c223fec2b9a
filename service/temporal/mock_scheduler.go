package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is an in-memory Scheduler for tests.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]time.Duration // schedule ID -> interval
	upsertErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{schedules: make(map[string]time.Duration)}
}

// UpsertPollSchedule records the schedule.
func (m *MockScheduler) UpsertPollSchedule(ctx context.Context, account string, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.schedules[scheduleID(account)] = interval
	return nil
}

// DeletePollSchedule removes the schedule.
func (m *MockScheduler) DeletePollSchedule(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	id := scheduleID(account)
	if _, ok := m.schedules[id]; !ok {
		return fmt.Errorf("schedule %q not found", id)
	}
	delete(m.schedules, id)
	return nil
}

// Interval returns the recorded interval for account and whether it exists.
func (m *MockScheduler) Interval(account string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.schedules[scheduleID(account)]
	return d, ok
}

// SetUpsertError makes UpsertPollSchedule fail.
func (m *MockScheduler) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// SetDeleteError makes DeletePollSchedule fail.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

package mocks

import (
	"sync"

	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// RunEvent is one notification captured by MockNotifier
type RunEvent struct {
	Type string
	Run  models.ReportRun
}

// MockNotifier records run events in order. It copies each run so later
// mutation by the pipeline does not rewrite history.
type MockNotifier struct {
	mu     sync.Mutex
	events []RunEvent
}

// NewMockNotifier creates a new MockNotifier instance
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{events: make([]RunEvent, 0)}
}

// RunStarted records a run_started event
func (m *MockNotifier) RunStarted(run *models.ReportRun) {
	m.record("run_started", run)
}

// RunFinished records a run_finished event
func (m *MockNotifier) RunFinished(run *models.ReportRun) {
	m.record("run_finished", run)
}

func (m *MockNotifier) record(kind string, run *models.ReportRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, RunEvent{Type: kind, Run: *run})
}

// Events returns all recorded events
func (m *MockNotifier) Events() []RunEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunEvent, len(m.events))
	copy(out, m.events)
	return out
}

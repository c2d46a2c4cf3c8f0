package mocks

import (
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockReportArchive implements storage.ReportArchive
type MockReportArchive struct {
	mock.Mock
}

// Save stores a rendered report and returns the relative path
func (m *MockReportArchive) Save(runID string, startedAt time.Time, html string) (string, error) {
	args := m.Called(runID, startedAt, html)
	return args.String(0), args.Error(1)
}

// Get retrieves a report by its path
func (m *MockReportArchive) Get(relPath string) (io.ReadCloser, error) {
	args := m.Called(relPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Delete removes a report by its path
func (m *MockReportArchive) Delete(relPath string) error {
	args := m.Called(relPath)
	return args.Error(0)
}

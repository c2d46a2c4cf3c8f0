package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// MockReportRunRepository implements repository.ReportRunRepository
type MockReportRunRepository struct {
	mock.Mock
}

// Create records a new run
func (m *MockReportRunRepository) Create(ctx context.Context, run *models.ReportRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// Update overwrites a run
func (m *MockReportRunRepository) Update(ctx context.Context, run *models.ReportRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// GetByID retrieves a run by its ID
func (m *MockReportRunRepository) GetByID(ctx context.Context, id string) (*models.ReportRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReportRun), args.Error(1)
}

// List retrieves a page of runs, newest first
func (m *MockReportRunRepository) List(ctx context.Context, limit, offset int) ([]models.ReportRun, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.ReportRun), args.Get(1).(int64), args.Error(2)
}

// Latest retrieves the most recent run
func (m *MockReportRunRepository) Latest(ctx context.Context) (*models.ReportRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReportRun), args.Error(1)
}

// FailStale marks interrupted runs as failed
func (m *MockReportRunRepository) FailStale(ctx context.Context, message string, now time.Time) (int64, error) {
	args := m.Called(ctx, message, now)
	return args.Get(0).(int64), args.Error(1)
}

// DeleteFinishedBefore prunes old finished runs
func (m *MockReportRunRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReportRun, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReportRun), args.Error(1)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"gorm.io/gorm"
)

// ReportRunRepository defines the interface for report run history access
type ReportRunRepository interface {
	Create(ctx context.Context, run *models.ReportRun) error
	Update(ctx context.Context, run *models.ReportRun) error
	GetByID(ctx context.Context, id string) (*models.ReportRun, error)
	List(ctx context.Context, limit, offset int) ([]models.ReportRun, int64, error)
	Latest(ctx context.Context) (*models.ReportRun, error)
	FailStale(ctx context.Context, message string, now time.Time) (int64, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReportRun, error)
}

// reportRunRepository implements ReportRunRepository using GORM
type reportRunRepository struct {
	db *gorm.DB
}

// NewReportRunRepository creates a new ReportRunRepository instance
func NewReportRunRepository(db *gorm.DB) ReportRunRepository {
	return &reportRunRepository{db: db}
}

// Create inserts a new run record
func (r *reportRunRepository) Create(ctx context.Context, run *models.ReportRun) error {
	if run == nil {
		return ErrInvalidInput
	}
	result := r.db.WithContext(ctx).Create(run)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("report run '%s' already exists: %w", run.ID, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create report run: %w", result.Error)
	}
	return nil
}

// Update saves all fields of an existing run
func (r *reportRunRepository) Update(ctx context.Context, run *models.ReportRun) error {
	if run == nil || run.ID == "" {
		return ErrInvalidInput
	}
	result := r.db.WithContext(ctx).Model(&models.ReportRun{}).Where("id = ?", run.ID).Select("*").Updates(run)
	if result.Error != nil {
		return fmt.Errorf("failed to update report run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID
func (r *reportRunRepository) GetByID(ctx context.Context, id string) (*models.ReportRun, error) {
	var run models.ReportRun
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report run by ID: %w", result.Error)
	}
	return &run, nil
}

// List returns runs newest first together with the total count
func (r *reportRunRepository) List(ctx context.Context, limit, offset int) ([]models.ReportRun, int64, error) {
	var runs []models.ReportRun
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.ReportRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count report runs: %w", err)
	}

	result := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list report runs: %w", result.Error)
	}
	return runs, total, nil
}

// Latest returns the most recently started run
func (r *reportRunRepository) Latest(ctx context.Context) (*models.ReportRun, error) {
	var run models.ReportRun
	result := r.db.WithContext(ctx).Order("started_at DESC").First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest report run: %w", result.Error)
	}
	return &run, nil
}

// FailStale marks runs left in the running state by a previous process as failed
func (r *reportRunRepository) FailStale(ctx context.Context, message string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReportRun{}).
		Where("status = ?", models.RunStatusRunning).
		Updates(map[string]interface{}{
			"status":      models.RunStatusFailed,
			"message":     message,
			"finished_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark stale report runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteFinishedBefore removes finished runs that started before cutoff and
// returns them so callers can clean up their archived reports
func (r *reportRunRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReportRun, error) {
	var runs []models.ReportRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status <> ? AND started_at < ?", models.RunStatusRunning, cutoff).Find(&runs).Error; err != nil {
			return err
		}
		if len(runs) == 0 {
			return nil
		}
		ids := make([]string, 0, len(runs))
		for _, run := range runs {
			ids = append(ids, run.ID)
		}
		return tx.Where("id IN ?", ids).Delete(&models.ReportRun{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prune report runs: %w", err)
	}
	return runs, nil
}

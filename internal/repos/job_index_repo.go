package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domainscout/core/internal/domain"
)

// JobIndexRepo is the process-wide repo over the shared PostgreSQL
// job_index table: listing, pagination, and the scheduler's due-job poll.
// Never the source of truth for job state (see domain.JobIndex doc).
type JobIndexRepo interface {
	Create(ctx context.Context, row *domain.JobIndex) error
	Get(ctx context.Context, jobID uuid.UUID) (*domain.JobIndex, error)
	Upsert(ctx context.Context, row *domain.JobIndex) error

	// List returns rows ordered by most-recently-updated, optionally
	// filtered by status and client, paginated by (offset, limit).
	List(ctx context.Context, clientID string, status domain.Status, offset, limit int) ([]*domain.JobIndex, int64, error)

	Recent(ctx context.Context, limit int) ([]*domain.JobIndex, error)

	// DueForWake returns up to limit rows whose next_wake_at has passed,
	// oldest first — the scheduler's claim source (SPEC_FULL.md §2).
	DueForWake(ctx context.Context, now time.Time, limit int) ([]*domain.JobIndex, error)

	// All returns every row, oldest first.
	All(ctx context.Context) ([]*domain.JobIndex, error)
}

type jobIndexRepo struct {
	db *gorm.DB
}

func NewJobIndexRepo(db *gorm.DB) JobIndexRepo { return &jobIndexRepo{db: db} }

func (r *jobIndexRepo) Create(ctx context.Context, row *domain.JobIndex) error {
	now := time.Now()
	row.CreatedAt = now
	row.UpdatedAt = now
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *jobIndexRepo) Get(ctx context.Context, jobID uuid.UUID) (*domain.JobIndex, error) {
	var row domain.JobIndex
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.JobID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (r *jobIndexRepo) Upsert(ctx context.Context, row *domain.JobIndex) error {
	row.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *jobIndexRepo) List(ctx context.Context, clientID string, status domain.Status, offset, limit int) ([]*domain.JobIndex, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.JobIndex{})
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*domain.JobIndex
	err := q.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&rows).Error
	return rows, total, err
}

func (r *jobIndexRepo) Recent(ctx context.Context, limit int) ([]*domain.JobIndex, error) {
	var rows []*domain.JobIndex
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *jobIndexRepo) DueForWake(ctx context.Context, now time.Time, limit int) ([]*domain.JobIndex, error) {
	var rows []*domain.JobIndex
	err := r.db.WithContext(ctx).
		Where("next_wake_at IS NOT NULL AND next_wake_at <= ?", now).
		Order("next_wake_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *jobIndexRepo) All(ctx context.Context) ([]*domain.JobIndex, error) {
	var rows []*domain.JobIndex
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

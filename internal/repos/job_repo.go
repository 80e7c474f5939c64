// Package repos implements the data-access layer over both storage engines
// (internal/store): per-job SQLite repos for Job/DomainResult/SearchArtifact,
// and a JobIndex repo over the shared PostgreSQL table.
package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domainscout/core/internal/domain"
)

var ErrNotFound = errors.New("repos: not found")

// JobRepo is the transactional writer/reader for the singleton search_job
// row in one job's embedded store.
type JobRepo interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context) (*domain.Job, error)
	UpdateFields(ctx context.Context, updates map[string]any) error
	// UpdateFieldsUnlessStatus applies updates unless the row's current
	// status is in disallowed; returns whether the update took effect.
	// Mirrors the teacher's UpdateFieldsUnlessStatus guard so a terminal
	// job can never be silently resurrected by a late-arriving write.
	UpdateFieldsUnlessStatus(ctx context.Context, disallowed []domain.Status, updates map[string]any) (bool, error)
	// IncrementBatchNum atomically advances batch_num by one and returns
	// the new value (spec.md §4.2 step 1).
	IncrementBatchNum(ctx context.Context) (int, error)
	// IncrementTokens adds to the monotonic token counters (spec.md
	// Invariant 5); either delta may be zero.
	IncrementTokens(ctx context.Context, inputDelta, outputDelta int) error
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepo { return &jobRepo{db: db} }

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) Get(ctx context.Context) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).Limit(1).Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (r *jobRepo) UpdateFields(ctx context.Context, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.db.WithContext(ctx).Model(&domain.Job{}).Where("1 = 1").Updates(updates).Error
}

func (r *jobRepo) UpdateFieldsUnlessStatus(ctx context.Context, disallowed []domain.Status, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := r.db.WithContext(ctx).Model(&domain.Job{}).Where("1 = 1")
	if len(disallowed) == 1 {
		q = q.Where("status <> ?", disallowed[0])
	} else if len(disallowed) > 1 {
		q = q.Where("status NOT IN ?", disallowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) IncrementTokens(ctx context.Context, inputDelta, outputDelta int) error {
	if inputDelta == 0 && outputDelta == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.Job{}).Where("1 = 1").Updates(map[string]any{
		"total_input_tokens":  gorm.Expr("total_input_tokens + ?", inputDelta),
		"total_output_tokens": gorm.Expr("total_output_tokens + ?", outputDelta),
		"updated_at":          time.Now(),
	}).Error
}

func (r *jobRepo) IncrementBatchNum(ctx context.Context) (int, error) {
	var next int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Job{}).
			Where("1 = 1").
			Updates(map[string]any{
				"batch_num":  gorm.Expr("batch_num + 1"),
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		var job domain.Job
		if err := tx.Limit(1).Find(&job).Error; err != nil {
			return err
		}
		next = job.BatchNum
		return nil
	})
	return next, err
}

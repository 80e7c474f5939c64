package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/domainscout/core/internal/domain"
)

// ArtifactRepo writes and reads the append-only search_artifacts table
// (batch reports, strategy notes, the generated follow-up quiz).
type ArtifactRepo interface {
	Create(ctx context.Context, artifact *domain.SearchArtifact) error
	Latest(ctx context.Context, artifactType domain.ArtifactType) (*domain.SearchArtifact, error)
	ListByType(ctx context.Context, artifactType domain.ArtifactType) ([]*domain.SearchArtifact, error)
}

type artifactRepo struct {
	db *gorm.DB
}

func NewArtifactRepo(db *gorm.DB) ArtifactRepo { return &artifactRepo{db: db} }

func (r *artifactRepo) Create(ctx context.Context, artifact *domain.SearchArtifact) error {
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(artifact).Error
}

func (r *artifactRepo) Latest(ctx context.Context, artifactType domain.ArtifactType) (*domain.SearchArtifact, error) {
	var artifact domain.SearchArtifact
	err := r.db.WithContext(ctx).
		Where("artifact_type = ?", artifactType).
		Order("id DESC").
		Limit(1).
		Find(&artifact).Error
	if err != nil {
		return nil, err
	}
	if artifact.ID == 0 {
		return nil, ErrNotFound
	}
	return &artifact, nil
}

func (r *artifactRepo) ListByType(ctx context.Context, artifactType domain.ArtifactType) ([]*domain.SearchArtifact, error) {
	var rows []*domain.SearchArtifact
	err := r.db.WithContext(ctx).
		Where("artifact_type = ?", artifactType).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

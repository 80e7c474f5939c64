package repos

import (
	"context"
	"testing"

	"github.com/domainscout/core/internal/domain"
)

func TestArtifactRepo(t *testing.T) {
	db := openJobStore(t)
	repo := NewArtifactRepo(db)
	ctx := context.Background()

	if _, err := repo.Latest(ctx, domain.ArtifactBatchReport); err != ErrNotFound {
		t.Fatalf("Latest on empty table: expected ErrNotFound, got %v", err)
	}

	first := &domain.SearchArtifact{BatchNum: 1, ArtifactType: domain.ArtifactBatchReport, Content: `{"batch_num":1}`}
	second := &domain.SearchArtifact{BatchNum: 2, ArtifactType: domain.ArtifactBatchReport, Content: `{"batch_num":2}`}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create #1: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create #2: %v", err)
	}
	quiz := &domain.SearchArtifact{BatchNum: 2, ArtifactType: domain.ArtifactFollowupQuiz, Content: `{"questions":[]}`}
	if err := repo.Create(ctx, quiz); err != nil {
		t.Fatalf("Create quiz: %v", err)
	}

	latest, err := repo.Latest(ctx, domain.ArtifactBatchReport)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.BatchNum != 2 {
		t.Fatalf("Latest: expected batch 2, got %d", latest.BatchNum)
	}

	reports, err := repo.ListByType(ctx, domain.ArtifactBatchReport)
	if err != nil {
		t.Fatalf("ListByType: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("ListByType: expected 2 reports, got %d", len(reports))
	}

	followups, err := repo.ListByType(ctx, domain.ArtifactFollowupQuiz)
	if err != nil {
		t.Fatalf("ListByType(followup): %v", err)
	}
	if len(followups) != 1 {
		t.Fatalf("ListByType(followup): expected 1, got %d", len(followups))
	}
}

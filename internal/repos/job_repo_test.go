package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/domainscout/core/internal/domain"
)

func TestJobRepo(t *testing.T) {
	db := openJobStore(t)
	repo := NewJobRepo(db)
	ctx := context.Background()

	job := &domain.Job{
		ID:            uuid.New(),
		ClientID:      "client-1",
		Status:        domain.StatusRunning,
		QuizResponses: datatypes.JSON([]byte(`{"business_name":"Acme","tld_preferences":["com"],"vibe":"playful"}`)),
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != job.ID || got.Status != domain.StatusRunning {
		t.Fatalf("Get: unexpected row %+v", got)
	}

	next, err := repo.IncrementBatchNum(ctx)
	if err != nil {
		t.Fatalf("IncrementBatchNum: %v", err)
	}
	if next != 1 {
		t.Fatalf("IncrementBatchNum: expected 1, got %d", next)
	}
	next, err = repo.IncrementBatchNum(ctx)
	if err != nil {
		t.Fatalf("IncrementBatchNum #2: %v", err)
	}
	if next != 2 {
		t.Fatalf("IncrementBatchNum #2: expected 2, got %d", next)
	}

	if err := repo.IncrementTokens(ctx, 100, 50); err != nil {
		t.Fatalf("IncrementTokens: %v", err)
	}
	if err := repo.IncrementTokens(ctx, 10, 5); err != nil {
		t.Fatalf("IncrementTokens #2: %v", err)
	}
	got, err = repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get after tokens: %v", err)
	}
	if got.TotalInputTokens != 110 || got.TotalOutputTokens != 55 {
		t.Fatalf("token counters not monotonically accumulated: %+v", got)
	}

	// UpdateFieldsUnlessStatus: should refuse to move a completed job back
	// to running, but should allow the transition from running.
	if err := repo.UpdateFields(ctx, map[string]any{"status": domain.StatusComplete}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(ctx, []domain.Status{domain.StatusComplete, domain.StatusFailed, domain.StatusCancelled}, map[string]any{
		"status": domain.StatusRunning,
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: expected no-op on a disallowed status")
	}
	got, err = repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get after guarded update: %v", err)
	}
	if got.Status != domain.StatusComplete {
		t.Fatalf("UpdateFieldsUnlessStatus: status should remain complete, got %q", got.Status)
	}
}

func TestJobRepoGetNotFound(t *testing.T) {
	db := openJobStore(t)
	repo := NewJobRepo(db)
	if _, err := repo.Get(context.Background()); err != ErrNotFound {
		t.Fatalf("Get on empty store: expected ErrNotFound, got %v", err)
	}
}

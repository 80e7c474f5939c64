package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/domainscout/core/internal/domain"
)

func TestJobIndexRepo(t *testing.T) {
	db := openIndexStore(t)
	repo := NewJobIndexRepo(db)
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &domain.JobIndex{JobID: uuid.New(), ClientID: "c1", Status: domain.StatusRunning, BusinessName: "Acme", NextWakeAt: &past}
	notYetDue := &domain.JobIndex{JobID: uuid.New(), ClientID: "c1", Status: domain.StatusRunning, BusinessName: "Beta", NextWakeAt: &future}
	noWake := &domain.JobIndex{JobID: uuid.New(), ClientID: "c2", Status: domain.StatusComplete, BusinessName: "Gamma"}

	for _, row := range []*domain.JobIndex{due, notYetDue, noWake} {
		if err := repo.Create(ctx, row); err != nil {
			t.Fatalf("Create %s: %v", row.BusinessName, err)
		}
	}

	got, err := repo.Get(ctx, due.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BusinessName != "Acme" {
		t.Fatalf("Get: unexpected row %+v", got)
	}

	if _, err := repo.Get(ctx, uuid.New()); err != ErrNotFound {
		t.Fatalf("Get missing: expected ErrNotFound, got %v", err)
	}

	dueRows, err := repo.DueForWake(ctx, now, 10)
	if err != nil {
		t.Fatalf("DueForWake: %v", err)
	}
	if len(dueRows) != 1 || dueRows[0].JobID != due.JobID {
		t.Fatalf("DueForWake: expected only the past-wake row, got %v", dueRows)
	}

	got.Status = domain.StatusComplete
	got.NextWakeAt = nil
	if err := repo.Upsert(ctx, got); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	dueRows, err = repo.DueForWake(ctx, now, 10)
	if err != nil {
		t.Fatalf("DueForWake after upsert: %v", err)
	}
	if len(dueRows) != 0 {
		t.Fatalf("DueForWake after upsert: expected none due, got %v", dueRows)
	}

	rows, total, err := repo.List(ctx, "c1", "", 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("List: expected 2 rows for client c1, got total=%d len=%d", total, len(rows))
	}

	rows, total, err = repo.List(ctx, "", domain.StatusComplete, 0, 10)
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if total != 2 {
		t.Fatalf("List by status: expected 2 complete rows, got %d", total)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("All: expected 3 rows, got %d", len(all))
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent: expected 2 rows, got %d", len(recent))
	}
}

package repos

import (
	"context"
	"testing"

	"github.com/domainscout/core/internal/domain"
)

func intPtr(v int64) *int64 { return &v }

func TestDomainResultRepoUpsertIsKeyedByDomain(t *testing.T) {
	db := openJobStore(t)
	repo := NewDomainResultRepo(db)
	ctx := context.Background()

	row := &domain.DomainResult{
		BatchNum: 1,
		Domain:   "Example.COM",
		TLD:      "com",
		Status:   domain.AvailabilityUnknown,
		Score:    0.2,
	}
	if err := repo.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert #1: %v", err)
	}

	// A later batch re-checks the same domain and it resolves differently;
	// the row must be replaced in place, not duplicated (Invariant 1).
	row2 := &domain.DomainResult{
		BatchNum:   2,
		Domain:     "example.com",
		TLD:        "com",
		Status:     domain.AvailabilityAvailable,
		PriceCents: intPtr(1200),
		Score:      0.9,
	}
	if err := repo.Upsert(ctx, row2); err != nil {
		t.Fatalf("Upsert #2: %v", err)
	}

	checked, err := repo.CheckedDomains(ctx)
	if err != nil {
		t.Fatalf("CheckedDomains: %v", err)
	}
	if len(checked) != 1 || !checked["example.com"] {
		t.Fatalf("CheckedDomains: expected exactly one lowercased entry, got %v", checked)
	}

	good, err := repo.GoodCount(ctx, 0.8)
	if err != nil {
		t.Fatalf("GoodCount: %v", err)
	}
	if good != 1 {
		t.Fatalf("GoodCount: expected 1, got %d", good)
	}
}

func TestDomainResultRepoTakenTLDSummary(t *testing.T) {
	db := openJobStore(t)
	repo := NewDomainResultRepo(db)
	ctx := context.Background()

	seed := []*domain.DomainResult{
		{BatchNum: 1, Domain: "a.io", TLD: "io", Status: domain.AvailabilityRegistered, Score: 0.1},
		{BatchNum: 1, Domain: "b.io", TLD: "io", Status: domain.AvailabilityRegistered, Score: 0.1},
		{BatchNum: 1, Domain: "c.com", TLD: "com", Status: domain.AvailabilityRegistered, Score: 0.1},
		{BatchNum: 1, Domain: "d.dev", TLD: "dev", Status: domain.AvailabilityAvailable, Score: 0.9},
	}
	for _, r := range seed {
		if err := repo.Upsert(ctx, r); err != nil {
			t.Fatalf("seed upsert %s: %v", r.Domain, err)
		}
	}

	top, err := repo.TakenTLDSummary(ctx, 2)
	if err != nil {
		t.Fatalf("TakenTLDSummary: %v", err)
	}
	if len(top) != 2 || top[0] != "io" {
		t.Fatalf("TakenTLDSummary: expected [io, com], got %v", top)
	}
}

func TestDomainResultRepoTopResultsOrdering(t *testing.T) {
	db := openJobStore(t)
	repo := NewDomainResultRepo(db)
	ctx := context.Background()

	seed := []*domain.DomainResult{
		{BatchNum: 1, Domain: "cheap.com", TLD: "com", Status: domain.AvailabilityAvailable, Score: 0.9, PriceCents: intPtr(1000)},
		{BatchNum: 1, Domain: "pricey.com", TLD: "com", Status: domain.AvailabilityAvailable, Score: 0.9, PriceCents: intPtr(9000)},
		{BatchNum: 1, Domain: "best.com", TLD: "com", Status: domain.AvailabilityAvailable, Score: 0.95},
		{BatchNum: 1, Domain: "taken.com", TLD: "com", Status: domain.AvailabilityRegistered, Score: 0.99},
	}
	for _, r := range seed {
		if err := repo.Upsert(ctx, r); err != nil {
			t.Fatalf("seed upsert %s: %v", r.Domain, err)
		}
	}

	top, err := repo.TopResults(ctx, 10)
	if err != nil {
		t.Fatalf("TopResults: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("TopResults: expected 3 available rows, got %d", len(top))
	}
	if top[0].Domain != "best.com" {
		t.Fatalf("TopResults: expected best.com first (highest score), got %s", top[0].Domain)
	}
	if top[1].Domain != "cheap.com" || top[2].Domain != "pricey.com" {
		t.Fatalf("TopResults: expected price-ascending tiebreak, got %s then %s", top[1].Domain, top[2].Domain)
	}
}

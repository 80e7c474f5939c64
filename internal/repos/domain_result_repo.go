package repos

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/domainscout/core/internal/domain"
)

// DomainResultRepo is the per-job repo over domain_results. Every write is
// insert-or-replace keyed by the lowercase domain string (spec.md
// Invariant 1): a later batch may legitimately re-evaluate a domain
// discarded with status=unknown by an earlier one.
type DomainResultRepo interface {
	Upsert(ctx context.Context, row *domain.DomainResult) error
	UpsertMany(ctx context.Context, rows []*domain.DomainResult) error

	// CheckedDomains returns every domain string ever written for this job,
	// lowercased, used to deduplicate newly generated candidates.
	CheckedDomains(ctx context.Context) (map[string]bool, error)

	// TakenTLDSummary returns the top-n most frequent TLDs among
	// checked-but-registered domains (spec.md §4.2 step 2).
	TakenTLDSummary(ctx context.Context, topN int) ([]string, error)

	RecentChecked(ctx context.Context, limit int) ([]*domain.DomainResult, error)
	RecentAvailable(ctx context.Context, limit int) ([]*domain.DomainResult, error)

	// CountByStatus returns (checked, available) aggregate counts.
	CountByStatus(ctx context.Context) (checked int, available int, err error)

	// GoodCount returns the number of available results with score >= minScore
	// (spec.md §4.2's termination threshold, distinct from the 0.4 admission
	// threshold).
	GoodCount(ctx context.Context, minScore float64) (int, error)

	// TopResults returns up to limit available domains ordered by
	// score DESC, price_cents ASC NULLS LAST (spec.md §4.1 /results).
	TopResults(ctx context.Context, limit int) ([]*domain.DomainResult, error)
}

type domainResultRepo struct {
	db *gorm.DB
}

func NewDomainResultRepo(db *gorm.DB) DomainResultRepo { return &domainResultRepo{db: db} }

func (r *domainResultRepo) Upsert(ctx context.Context, row *domain.DomainResult) error {
	row.Domain = strings.ToLower(strings.TrimSpace(row.Domain))
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoUpdates: clause.AssignmentColumns([]string{"batch_num", "tld", "status", "price_cents", "score", "flags", "evaluation_data", "updated_at"}),
	}).Create(row).Error
}

func (r *domainResultRepo) UpsertMany(ctx context.Context, rows []*domain.DomainResult) error {
	for _, row := range rows {
		if err := r.Upsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *domainResultRepo) CheckedDomains(ctx context.Context) (map[string]bool, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&domain.DomainResult{}).Pluck("domain", &names).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = true
	}
	return out, nil
}

func (r *domainResultRepo) TakenTLDSummary(ctx context.Context, topN int) ([]string, error) {
	var rows []domain.DomainResult
	err := r.db.WithContext(ctx).
		Select("tld").
		Where("status = ?", domain.AvailabilityRegistered).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, row := range rows {
		counts[row.TLD]++
	}
	type kv struct {
		tld   string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].tld < kvs[j].tld
	})
	if topN > len(kvs) {
		topN = len(kvs)
	}
	out := make([]string, 0, topN)
	for _, e := range kvs[:topN] {
		out = append(out, e.tld)
	}
	return out, nil
}

func (r *domainResultRepo) RecentChecked(ctx context.Context, limit int) ([]*domain.DomainResult, error) {
	var rows []*domain.DomainResult
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *domainResultRepo) RecentAvailable(ctx context.Context, limit int) ([]*domain.DomainResult, error) {
	var rows []*domain.DomainResult
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.AvailabilityAvailable).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *domainResultRepo) CountByStatus(ctx context.Context) (int, int, error) {
	var checked int64
	if err := r.db.WithContext(ctx).Model(&domain.DomainResult{}).Count(&checked).Error; err != nil {
		return 0, 0, err
	}
	var available int64
	if err := r.db.WithContext(ctx).Model(&domain.DomainResult{}).
		Where("status = ?", domain.AvailabilityAvailable).
		Count(&available).Error; err != nil {
		return 0, 0, err
	}
	return int(checked), int(available), nil
}

func (r *domainResultRepo) GoodCount(ctx context.Context, minScore float64) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.DomainResult{}).
		Where("status = ? AND score >= ?", domain.AvailabilityAvailable, minScore).
		Count(&count).Error
	return int(count), err
}

func (r *domainResultRepo) TopResults(ctx context.Context, limit int) ([]*domain.DomainResult, error) {
	var rows []*domain.DomainResult
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.AvailabilityAvailable).
		Order("score DESC, (price_cents IS NULL) ASC, price_cents ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

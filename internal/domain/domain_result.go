package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AvailabilityStatus is the registry-lookup outcome for a checked domain.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityRegistered AvailabilityStatus = "registered"
	AvailabilityUnknown   AvailabilityStatus = "unknown"
)

// PricingCategory buckets a display price per spec.md §4.1 (/results).
type PricingCategory string

const (
	PricingBundled     PricingCategory = "bundled"
	PricingRecommended PricingCategory = "recommended"
	PricingPremium     PricingCategory = "premium"
	PricingUnknown     PricingCategory = "unknown"
)

// DomainResult is one row per (job, domain) — spec.md §3, Invariant 1: the
// pair (job store, domain) is unique; a retry replaces the prior row.
type DomainResult struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	BatchNum int       `gorm:"column:batch_num;not null;index" json:"batch_num"`
	Domain   string    `gorm:"column:domain;not null;uniqueIndex" json:"domain"`
	TLD      string    `gorm:"column:tld;not null" json:"tld"`

	Status     AvailabilityStatus `gorm:"column:status;not null;index" json:"status"`
	PriceCents *int64             `gorm:"column:price_cents" json:"price_cents,omitempty"`

	Score float64 `gorm:"column:score;not null" json:"score"`

	Flags          datatypes.JSONSlice[string] `gorm:"column:flags" json:"flags,omitempty"`
	EvaluationData datatypes.JSONMap           `gorm:"column:evaluation_data" json:"evaluation_data,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (DomainResult) TableName() string { return "domain_results" }

// ArtifactType enumerates the kinds of SearchArtifact rows (spec.md §3).
type ArtifactType string

const (
	ArtifactBatchReport   ArtifactType = "batch_report"
	ArtifactStrategyNotes ArtifactType = "strategy_notes"
	ArtifactFollowupQuiz  ArtifactType = "followup_quiz"
)

// SearchArtifact is an append-only, job-scoped diagnostic/report record.
type SearchArtifact struct {
	ID           uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchNum     int          `gorm:"column:batch_num;not null;index" json:"batch_num"`
	ArtifactType ArtifactType `gorm:"column:artifact_type;not null;index" json:"artifact_type"`
	Content      string       `gorm:"column:content;not null" json:"content"`
	CreatedAt    time.Time    `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (SearchArtifact) TableName() string { return "search_artifacts" }

// JobIndex is the process-wide relational row used for listing/routing and
// as the scheduler's ticker source (spec.md §6). Never authoritative for job
// state; rebuilt from each job's own store by /api/backfill.
type JobIndex struct {
	JobID          uuid.UUID `gorm:"column:job_id;type:text;primaryKey" json:"job_id"`
	ClientID       string    `gorm:"column:client_id;not null;index" json:"client_id"`
	Status         Status    `gorm:"column:status;not null;index" json:"status"`
	BusinessName   string    `gorm:"column:business_name;not null" json:"business_name"`
	BatchNum       int       `gorm:"column:batch_num;not null;default:0" json:"batch_num"`
	DomainsChecked int       `gorm:"column:domains_checked;not null;default:0" json:"domains_checked"`
	GoodResults    int       `gorm:"column:good_results;not null;default:0" json:"good_results"`

	// NextWakeAt mirrors Job.NextWakeAt so the scheduler can find due jobs
	// without opening every job store on every tick.
	NextWakeAt *time.Time `gorm:"column:next_wake_at;index" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (JobIndex) TableName() string { return "job_index" }

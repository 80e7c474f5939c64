// Package domain holds the gorm-mapped row types for the three per-job
// tables (search_job, domain_results, search_artifacts) and the process-wide
// job_index table, per spec.md §3 and §6.
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Status is the job lifecycle state, per spec.md §4.1's state machine.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusComplete     Status = "complete"
	StatusNeedsFollowup Status = "needs_followup"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// QuizResponses is the immutable-after-creation questionnaire input.
type QuizResponses struct {
	BusinessName    string   `json:"business_name"`
	TLDPreferences  []string `json:"tld_preferences"`
	Vibe            string   `json:"vibe"`
	DomainIdea      string   `json:"domain_idea,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	ClientEmail     string   `json:"client_email,omitempty"`
}

// FollowupResponses is set once, when resuming from needs_followup.
type FollowupResponses struct {
	Direction string `json:"followup_direction,omitempty"`
	Length    string `json:"followup_length,omitempty"`
	Keywords  string `json:"followup_keywords,omitempty"`
}

// Job is the singleton row for a job instance, persisted in that job's own
// embedded SQLite store (internal/store).
type Job struct {
	ID       uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	ClientID string    `gorm:"column:client_id;not null;index" json:"client_id"`

	Status   Status `gorm:"column:status;not null;index" json:"status"`
	BatchNum int    `gorm:"column:batch_num;not null;default:0" json:"batch_num"`

	QuizResponses     datatypes.JSON `gorm:"column:quiz_responses;not null" json:"quiz_responses"`
	FollowupResponses datatypes.JSON `gorm:"column:followup_responses" json:"followup_responses,omitempty"`

	DriverProvider string `gorm:"column:driver_provider" json:"driver_provider,omitempty"`
	SwarmProvider  string `gorm:"column:swarm_provider" json:"swarm_provider,omitempty"`

	TotalInputTokens  int64 `gorm:"column:total_input_tokens;not null;default:0" json:"total_input_tokens"`
	TotalOutputTokens int64 `gorm:"column:total_output_tokens;not null;default:0" json:"total_output_tokens"`

	Error string `gorm:"column:error" json:"error,omitempty"`

	// NextWakeAt is the persisted wake-up time the controller arms; the
	// scheduler ticker only runs a batch once this has passed. A nil value
	// means no batch is currently scheduled (terminal or awaiting resume).
	NextWakeAt *time.Time `gorm:"column:next_wake_at;index" json:"next_wake_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Job) TableName() string { return "search_job" }

// DecodeQuiz unmarshals QuizResponses from the JSON column.
func (j *Job) DecodeQuiz() (QuizResponses, error) {
	var q QuizResponses
	if len(j.QuizResponses) == 0 {
		return q, nil
	}
	err := jsonUnmarshal(j.QuizResponses, &q)
	return q, err
}

// DecodeFollowup unmarshals FollowupResponses from the JSON column, if set.
func (j *Job) DecodeFollowup() (*FollowupResponses, error) {
	if len(j.FollowupResponses) == 0 {
		return nil, nil
	}
	var f FollowupResponses
	if err := jsonUnmarshal(j.FollowupResponses, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

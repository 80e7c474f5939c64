// Package controller implements C1: job lifecycle, state transitions, timer
// arming, and the re-arm decision at the end of each batch.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domainscout/core/internal/apierr"
	"github.com/domainscout/core/internal/domain"
	"github.com/domainscout/core/internal/jobs/availability"
	"github.com/domainscout/core/internal/jobs/evaluator"
	"github.com/domainscout/core/internal/jobs/generator"
	"github.com/domainscout/core/internal/jobs/pipeline"
	"github.com/domainscout/core/internal/jobs/pricing"
	"github.com/domainscout/core/internal/notifier"
	"github.com/domainscout/core/internal/platform/config"
	"github.com/domainscout/core/internal/platform/logger"
	"github.com/domainscout/core/internal/providers"
	"github.com/domainscout/core/internal/repos"
	"github.com/domainscout/core/internal/store"
)

func inputErr(err error) error    { return apierr.Input("invalid_request", err) }
func conflictErr(err error) error { return apierr.Conflict("conflict", err) }
func notFoundErr(err error) error { return apierr.NotFound("not_found", err) }
func fatalErr(err error) error    { return apierr.Fatal("fatal", err) }

// Controller owns every transition named in spec.md §4.1 plus the §4.2
// step 11 re-arm decision. It is the only writer of job status.
type Controller struct {
	log        *logger.Logger
	stores     *store.JobStores
	index      repos.JobIndexRepo
	providers  *providers.Registry
	email      notifier.Emailer
	pricingCfg config.PricingConfig

	maxBatches    int
	targetResults int
	batchDelay    time.Duration

	checker availability.Checker
	pricer  pricing.Lookup

	streamer Streamer
}

// Streamer decouples the controller from the SSE transport: after every
// batch that does not fail the controller publishes a fresh snapshot (a
// batch that ends in fail publishes nothing), and whatever is
// listening (internal/sse's Hub, or nothing in tests) fans it out.
type Streamer interface {
	Publish(jobID string, snapshot StatusSnapshot)
}

func (c *Controller) SetStreamer(s Streamer) { c.streamer = s }

func New(
	log *logger.Logger,
	stores *store.JobStores,
	index repos.JobIndexRepo,
	reg *providers.Registry,
	email notifier.Emailer,
	pricingCfg config.PricingConfig,
	maxBatches, targetResults int,
	batchDelay time.Duration,
	checker availability.Checker,
	pricer pricing.Lookup,
) *Controller {
	return &Controller{
		log:           log,
		stores:        stores,
		index:         index,
		providers:     reg,
		email:         email,
		pricingCfg:    pricingCfg,
		maxBatches:    maxBatches,
		targetResults: targetResults,
		batchDelay:    batchDelay,
		checker:       checker,
		pricer:        pricer,
	}
}

type jobRepos struct {
	job      repos.JobRepo
	results  repos.DomainResultRepo
	artifact repos.ArtifactRepo
}

func (c *Controller) open(id uuid.UUID) (jobRepos, error) {
	db, err := c.stores.Open(id)
	if err != nil {
		return jobRepos{}, fatalErr(err)
	}
	return jobRepos{
		job:      repos.NewJobRepo(db),
		results:  repos.NewDomainResultRepo(db),
		artifact: repos.NewArtifactRepo(db),
	}, nil
}

// StartRequest is the /start RPC body (spec.md §6).
type StartRequest struct {
	JobID          uuid.UUID
	ClientID       string
	Quiz           domain.QuizResponses
	DriverProvider string
	SwarmProvider  string
}

func (c *Controller) Start(ctx context.Context, req StartRequest) (*domain.Job, error) {
	if req.JobID == uuid.Nil {
		return nil, inputErr(fmt.Errorf("job_id required"))
	}
	if req.ClientID == "" {
		return nil, inputErr(fmt.Errorf("client_id required"))
	}
	if req.Quiz.BusinessName == "" || len(req.Quiz.TLDPreferences) == 0 || req.Quiz.Vibe == "" {
		return nil, inputErr(fmt.Errorf("quiz_responses requires business_name, tld_preferences, vibe"))
	}
	if req.DriverProvider != "" {
		if _, err := c.providers.Resolve(req.DriverProvider); err != nil {
			return nil, inputErr(fmt.Errorf("unknown driver_provider: %w", err))
		}
	}
	if req.SwarmProvider != "" {
		if _, err := c.providers.Resolve(req.SwarmProvider); err != nil {
			return nil, inputErr(fmt.Errorf("unknown swarm_provider: %w", err))
		}
	}

	if c.stores.Exists(req.JobID) {
		return nil, conflictErr(fmt.Errorf("job %s already exists", req.JobID))
	}

	quizJSON, err := json.Marshal(req.Quiz)
	if err != nil {
		return nil, inputErr(err)
	}

	r, err := c.open(req.JobID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &domain.Job{
		ID:             req.JobID,
		ClientID:       req.ClientID,
		Status:         domain.StatusRunning,
		BatchNum:       0,
		QuizResponses:  quizJSON,
		DriverProvider: req.DriverProvider,
		SwarmProvider:  req.SwarmProvider,
		NextWakeAt:     &now,
	}
	if err := r.job.Create(ctx, job); err != nil {
		return nil, fatalErr(err)
	}

	if err := c.index.Create(ctx, &domain.JobIndex{
		JobID:        req.JobID,
		ClientID:     req.ClientID,
		Status:       domain.StatusRunning,
		BusinessName: req.Quiz.BusinessName,
		BatchNum:     0,
		NextWakeAt:   &now,
	}); err != nil {
		return nil, fatalErr(err)
	}

	return job, nil
}

// StatusSnapshot is the /status response (spec.md §4.1).
type StatusSnapshot struct {
	JobID             uuid.UUID     `json:"job_id"`
	Status            domain.Status `json:"status"`
	BatchNum          int           `json:"batch_num"`
	DomainsChecked    int           `json:"domains_checked"`
	DomainsAvailable  int           `json:"domains_available"`
	GoodResults       int           `json:"good_results"`
	TotalInputTokens  int64         `json:"total_input_tokens"`
	TotalOutputTokens int64         `json:"total_output_tokens"`
	Error             string        `json:"error,omitempty"`
}

func (c *Controller) Status(ctx context.Context, id uuid.UUID) (*StatusSnapshot, error) {
	if !c.stores.Exists(id) {
		return nil, notFoundErr(fmt.Errorf("job %s not found", id))
	}
	r, err := c.open(id)
	if err != nil {
		return nil, err
	}
	job, err := r.job.Get(ctx)
	if err != nil {
		return nil, notFoundErr(err)
	}
	checked, available, err := r.results.CountByStatus(ctx)
	if err != nil {
		return nil, fatalErr(err)
	}
	good, err := r.results.GoodCount(ctx, 0.8)
	if err != nil {
		return nil, fatalErr(err)
	}
	return &StatusSnapshot{
		JobID:             job.ID,
		Status:            job.Status,
		BatchNum:          job.BatchNum,
		DomainsChecked:    checked,
		DomainsAvailable:  available,
		GoodResults:       good,
		TotalInputTokens:  job.TotalInputTokens,
		TotalOutputTokens: job.TotalOutputTokens,
		Error:             job.Error,
	}, nil
}

// ResultEntry annotates a ranked DomainResult with a display price and
// pricing category (spec.md §4.1 /results).
type ResultEntry struct {
	Domain        string  `json:"domain"`
	TLD           string  `json:"tld"`
	Score         float64 `json:"score"`
	PriceCents    *int64  `json:"price_cents,omitempty"`
	DisplayPrice  string  `json:"display_price"`
	Category      string  `json:"pricing_category"`
}

// ResultsSnapshot is the /results response.
type ResultsSnapshot struct {
	Domains           []ResultEntry  `json:"domains"`
	CategoryHistogram map[string]int `json:"pricing_category_histogram"`
	TotalInputTokens  int64          `json:"total_input_tokens"`
	TotalOutputTokens int64          `json:"total_output_tokens"`
}

const resultsLimit = 50

func (c *Controller) Results(ctx context.Context, id uuid.UUID) (*ResultsSnapshot, error) {
	if !c.stores.Exists(id) {
		return nil, notFoundErr(fmt.Errorf("job %s not found", id))
	}
	r, err := c.open(id)
	if err != nil {
		return nil, err
	}
	job, err := r.job.Get(ctx)
	if err != nil {
		return nil, notFoundErr(err)
	}
	rows, err := r.results.TopResults(ctx, resultsLimit)
	if err != nil {
		return nil, fatalErr(err)
	}

	out := &ResultsSnapshot{
		CategoryHistogram: map[string]int{},
		TotalInputTokens:  job.TotalInputTokens,
		TotalOutputTokens: job.TotalOutputTokens,
	}
	for _, row := range rows {
		category := c.pricingCfg.Category(row.PriceCents)
		out.CategoryHistogram[category]++
		out.Domains = append(out.Domains, ResultEntry{
			Domain:       row.Domain,
			TLD:          row.TLD,
			Score:        row.Score,
			PriceCents:   row.PriceCents,
			DisplayPrice: displayPrice(row.PriceCents),
			Category:     category,
		})
	}
	return out, nil
}

func displayPrice(cents *int64) string {
	if cents == nil {
		return "unknown"
	}
	return fmt.Sprintf("$%.2f", float64(*cents)/100.0)
}

func (c *Controller) Followup(ctx context.Context, id uuid.UUID) (*domain.SearchArtifact, error) {
	if !c.stores.Exists(id) {
		return nil, notFoundErr(fmt.Errorf("job %s not found", id))
	}
	r, err := c.open(id)
	if err != nil {
		return nil, err
	}
	artifact, err := r.artifact.Latest(ctx, domain.ArtifactFollowupQuiz)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, notFoundErr(err)
		}
		return nil, fatalErr(err)
	}
	return artifact, nil
}

func (c *Controller) Resume(ctx context.Context, id uuid.UUID, followup domain.FollowupResponses) error {
	if !c.stores.Exists(id) {
		return notFoundErr(fmt.Errorf("job %s not found", id))
	}
	r, err := c.open(id)
	if err != nil {
		return err
	}
	followupJSON, err := json.Marshal(followup)
	if err != nil {
		return inputErr(err)
	}

	now := time.Now()
	ok, err := r.job.UpdateFieldsUnlessStatus(ctx, []domain.Status{
		domain.StatusRunning, domain.StatusComplete, domain.StatusFailed, domain.StatusCancelled, domain.StatusPending,
	}, map[string]any{
		"status":             domain.StatusRunning,
		"followup_responses": followupJSON,
		"next_wake_at":       &now,
	})
	if err != nil {
		return fatalErr(err)
	}
	if !ok {
		return inputErr(fmt.Errorf("job %s is not awaiting followup", id))
	}

	return c.syncIndex(ctx, id, func(idx *domain.JobIndex) {
		idx.Status = domain.StatusRunning
		idx.NextWakeAt = &now
	})
}

func (c *Controller) Cancel(ctx context.Context, id uuid.UUID) error {
	if !c.stores.Exists(id) {
		return notFoundErr(fmt.Errorf("job %s not found", id))
	}
	r, err := c.open(id)
	if err != nil {
		return err
	}
	ok, err := r.job.UpdateFieldsUnlessStatus(ctx, []domain.Status{
		domain.StatusComplete, domain.StatusFailed, domain.StatusCancelled, domain.StatusNeedsFollowup,
	}, map[string]any{
		"status":       domain.StatusCancelled,
		"next_wake_at": nil,
	})
	if err != nil {
		return fatalErr(err)
	}
	if !ok {
		return inputErr(fmt.Errorf("job %s is already terminal", id))
	}

	return c.syncIndex(ctx, id, func(idx *domain.JobIndex) {
		idx.Status = domain.StatusCancelled
		idx.NextWakeAt = nil
	})
}

// StreamSnapshot is the payload forwarded to SSE subscribers.
type StreamSnapshot struct {
	Status           *StatusSnapshot `json:"status"`
	RecentAvailable  []string        `json:"recent_available"`
	DomainIdeaStatus string          `json:"domain_idea_status,omitempty"`
}

func (c *Controller) Stream(ctx context.Context, id uuid.UUID) (*StreamSnapshot, error) {
	status, err := c.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := c.open(id)
	if err != nil {
		return nil, err
	}
	rows, err := r.results.RecentAvailable(ctx, 20)
	if err != nil {
		return nil, fatalErr(err)
	}
	snap := &StreamSnapshot{Status: status}
	for _, row := range rows {
		snap.RecentAvailable = append(snap.RecentAvailable, row.Domain)
	}

	job, err := r.job.Get(ctx)
	if err != nil {
		return nil, fatalErr(err)
	}
	quiz, err := job.DecodeQuiz()
	if err != nil {
		return nil, fatalErr(err)
	}
	if quiz.DomainIdea != "" {
		var idea domain.DomainResult
		db, err := c.stores.Open(id)
		if err == nil {
			_ = db.Where("domain = ?", quiz.DomainIdea).Limit(1).Find(&idea).Error
			if idea.Domain != "" {
				snap.DomainIdeaStatus = string(idea.Status)
			}
		}
	}
	return snap, nil
}

// panicError converts a recovered panic into an error suitable for
// job.error; the panic value itself is logged separately and not leaked
// into the stored message.
type panicError struct{ val any }

func (e *panicError) Error() string { return "panic: unexpected error" }

// RunBatch is invoked by the scheduler for a job whose next_wake_at has
// passed. A job not in status=running is a silent no-op (spec.md §4.1
// timer semantics): the job may have been cancelled or already finished.
//
// A panic on the batch's own goroutine (generator and pricing adapters and
// the pipeline steps included) is recovered here and turned into a failed
// job rather than taking the scheduler goroutine, and every other in-flight
// job with it, down with the process (spec.md Invariant 6: a job's state
// lives in its own store, so one job's crash must stay scoped to that job).
// Panics inside the goroutines started by the evaluator's chunk dispatch
// and by availability.CheckAll are not caught by this recover.
func (c *Controller) RunBatch(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		c.log.Error("pipeline batch panicked, marking job failed",
			"job_id", id.String(), "panic", rec)
		r, openErr := c.open(id)
		if openErr != nil {
			err = openErr
			return
		}
		err = c.fail(ctx, r, id, &panicError{val: rec})
	}()

	r, err := c.open(id)
	if err != nil {
		return err
	}
	job, err := r.job.Get(ctx)
	if err != nil {
		return err
	}
	if job.Status != domain.StatusRunning {
		return nil
	}

	driverName := job.DriverProvider
	if driverName == "" {
		driverName = c.defaultDriverProvider()
	}
	swarmName := job.SwarmProvider
	if swarmName == "" {
		swarmName = c.defaultSwarmProvider()
	}
	driver, err := c.providers.Resolve(driverName)
	if err != nil {
		return c.fail(ctx, r, id, err)
	}
	swarm, err := c.providers.Resolve(swarmName)
	if err != nil {
		return c.fail(ctx, r, id, err)
	}

	pl := pipeline.New(
		c.log,
		r.job, r.results, r.artifact,
		generator.New(driver),
		evaluator.New(swarm),
		c.checker,
		c.pricer,
		c.pricingCfg,
	)

	outcome, err := pl.RunBatch(ctx)
	if err != nil {
		return c.fail(ctx, r, id, err)
	}

	if err := c.rearm(ctx, r, id, outcome); err != nil {
		return err
	}
	c.publish(ctx, id)
	return nil
}

func (c *Controller) publish(ctx context.Context, id uuid.UUID) {
	if c.streamer == nil {
		return
	}
	snap, err := c.Status(ctx, id)
	if err != nil {
		return
	}
	c.streamer.Publish(id.String(), *snap)
}

func (c *Controller) defaultDriverProvider() string {
	if v := os.Getenv("DRIVER_PROVIDER"); v != "" {
		return v
	}
	return "claude"
}

func (c *Controller) defaultSwarmProvider() string {
	if v := os.Getenv("SWARM_PROVIDER"); v != "" {
		return v
	}
	return "deepseek"
}

func (c *Controller) fail(ctx context.Context, r jobRepos, id uuid.UUID, cause error) error {
	c.log.Error("pipeline batch failed, marking job failed", "job_id", id.String(), "error", cause.Error())
	if err := r.job.UpdateFields(ctx, map[string]any{
		"status":       domain.StatusFailed,
		"error":        cause.Error(),
		"next_wake_at": nil,
	}); err != nil {
		return err
	}
	return c.syncIndex(ctx, id, func(idx *domain.JobIndex) {
		idx.Status = domain.StatusFailed
		idx.NextWakeAt = nil
	})
}

// rearm implements spec.md §4.2 step 11.
func (c *Controller) rearm(ctx context.Context, r jobRepos, id uuid.UUID, outcome pipeline.Outcome) error {
	job, err := r.job.Get(ctx)
	if err != nil {
		return err
	}

	switch {
	case outcome.GoodCount >= c.targetResults:
		if err := r.job.UpdateFields(ctx, map[string]any{
			"status":       domain.StatusComplete,
			"next_wake_at": nil,
		}); err != nil {
			return err
		}
		if err := c.syncIndex(ctx, id, func(idx *domain.JobIndex) {
			idx.Status = domain.StatusComplete
			idx.BatchNum = outcome.BatchNum
			idx.DomainsChecked = outcome.CheckedCount
			idx.GoodResults = outcome.GoodCount
			idx.NextWakeAt = nil
		}); err != nil {
			return err
		}
		quiz, _ := job.DecodeQuiz()
		if quiz.ClientEmail != "" {
			if err := c.email.NotifyResultsReady(ctx, quiz.ClientEmail, id.String(), outcome.GoodCount); err != nil {
				c.log.Warn("results-ready notification failed", "job_id", id.String(), "error", err.Error())
			}
		}
		return nil

	case outcome.BatchNum >= c.maxBatches:
		quiz, _ := job.DecodeQuiz()
		artifact := followupQuizArtifact(outcome.BatchNum)
		if err := r.artifact.Create(ctx, artifact); err != nil {
			return err
		}
		if err := r.job.UpdateFields(ctx, map[string]any{
			"status":       domain.StatusNeedsFollowup,
			"next_wake_at": nil,
		}); err != nil {
			return err
		}
		if err := c.syncIndex(ctx, id, func(idx *domain.JobIndex) {
			idx.Status = domain.StatusNeedsFollowup
			idx.BatchNum = outcome.BatchNum
			idx.DomainsChecked = outcome.CheckedCount
			idx.GoodResults = outcome.GoodCount
			idx.NextWakeAt = nil
		}); err != nil {
			return err
		}
		if quiz.ClientEmail != "" {
			if err := c.email.NotifyFollowupNeeded(ctx, quiz.ClientEmail, id.String()); err != nil {
				c.log.Warn("followup-needed notification failed", "job_id", id.String(), "error", err.Error())
			}
		}
		return nil

	default:
		next := time.Now().Add(c.batchDelay)
		if err := r.job.UpdateFields(ctx, map[string]any{"next_wake_at": &next}); err != nil {
			return err
		}
		return c.syncIndex(ctx, id, func(idx *domain.JobIndex) {
			idx.BatchNum = outcome.BatchNum
			idx.DomainsChecked = outcome.CheckedCount
			idx.GoodResults = outcome.GoodCount
			idx.NextWakeAt = &next
		})
	}
}

func followupQuizArtifact(batchNum int) *domain.SearchArtifact {
	content := map[string]any{
		"questions": []map[string]string{
			{"key": "followup_direction", "prompt": "Should we try a different style or stick with the current one?"},
			{"key": "followup_length", "prompt": "Are longer domain names acceptable, or should we stay short?"},
			{"key": "followup_keywords", "prompt": "Any additional keywords we should incorporate?"},
		},
	}
	raw, _ := json.Marshal(content)
	return &domain.SearchArtifact{
		BatchNum:     batchNum,
		ArtifactType: domain.ArtifactFollowupQuiz,
		Content:      string(raw),
	}
}

func (c *Controller) syncIndex(ctx context.Context, id uuid.UUID, mutate func(*domain.JobIndex)) error {
	idx, err := c.index.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	mutate(idx)
	return c.index.Upsert(ctx, idx)
}

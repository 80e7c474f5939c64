// Package scheduler is the external ticker that turns a durable, idle job
// back into motion. No goroutine owns a job between batches; this is the
// only thing watching the clock, per spec.md §4.2's "re-arm, don't loop"
// design and §9's "the ticker must serialise per-job execution".
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/domainscout/core/internal/jobs/controller"
	"github.com/domainscout/core/internal/platform/logger"
	"github.com/domainscout/core/internal/repos"
)

// Scheduler polls the shared job_index for rows whose next_wake_at has
// passed and asks the controller to run one batch for each.
type Scheduler struct {
	log        *logger.Logger
	index      repos.JobIndexRepo
	controller *controller.Controller

	pollInterval time.Duration
	claimLimit   int

	// running tracks job ids currently being advanced, so a slow batch
	// can never overlap with the next tick's claim of the same job.
	mu      sync.Mutex
	running map[uuid.UUID]bool
}

func New(log *logger.Logger, index repos.JobIndexRepo, ctrl *controller.Controller, pollInterval time.Duration, claimLimit int) *Scheduler {
	return &Scheduler{
		log:          log,
		index:        index,
		controller:   ctrl,
		pollInterval: pollInterval,
		claimLimit:   claimLimit,
		running:      map[uuid.UUID]bool{},
	}
}

// Run blocks, ticking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.index.DueForWake(ctx, time.Now(), s.claimLimit)
	if err != nil {
		s.log.Error("scheduler: poll for due jobs failed", "error", err.Error())
		return
	}
	for _, row := range due {
		id := row.JobID
		s.mu.Lock()
		if s.running[id] {
			s.mu.Unlock()
			continue
		}
		s.running[id] = true
		s.mu.Unlock()

		go s.runOne(ctx, id)
	}
}

func (s *Scheduler) runOne(ctx context.Context, id uuid.UUID) {
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	if err := s.controller.RunBatch(ctx, id); err != nil {
		s.log.Error("scheduler: batch run failed", "job_id", id.String(), "error", err.Error())
	}
}

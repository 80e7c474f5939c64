// Package notifier is the email side-channel the controller fires into on the
// two trigger points spec.md §4.2 step 11 names: results ready, and
// follow-up needed. Delivery failure is an EmailUnavailable error kind
// (spec.md §7): it is logged, never mutates job status.
package notifier

import (
	"context"

	"github.com/domainscout/core/internal/platform/logger"
)

type Emailer interface {
	NotifyResultsReady(ctx context.Context, clientEmail, jobID string, goodCount int) error
	NotifyFollowupNeeded(ctx context.Context, clientEmail, jobID string) error
}

// NoopEmailer is the default when no outbound mail transport is configured;
// email is explicitly out of core scope (spec.md §1).
type NoopEmailer struct {
	log *logger.Logger
}

func NewNoop(log *logger.Logger) *NoopEmailer { return &NoopEmailer{log: log} }

func (n *NoopEmailer) NotifyResultsReady(_ context.Context, clientEmail, jobID string, goodCount int) error {
	n.log.Debug("results ready notification suppressed (no emailer configured)",
		"client_email", clientEmail, "job_id", jobID, "good_count", goodCount)
	return nil
}

func (n *NoopEmailer) NotifyFollowupNeeded(_ context.Context, clientEmail, jobID string) error {
	n.log.Debug("followup needed notification suppressed (no emailer configured)",
		"client_email", clientEmail, "job_id", jobID)
	return nil
}

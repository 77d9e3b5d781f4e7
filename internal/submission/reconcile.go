package submission

import (
	"context"

	"github.com/notifybridge/pipeline/internal/audit"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// Reconciler periodically scans the audit log for envelopes whose last
// attempt is stale with no recorded terminal state, flagging them for
// operator attention. It adds no new delivery guarantee beyond the
// at-least-once/bounded-retry contract the broker topology already
// provides.
type Reconciler struct {
	repo audit.Repository
}

// NewReconciler wraps an audit.Repository for periodic reconciliation.
func NewReconciler(repo audit.Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Run performs one reconciliation pass, returning the number of stale
// submissions it flagged.
func (r *Reconciler) Run(ctx context.Context, staleAfterHours int) (int, error) {
	logger := telemetry.LogFromContext(ctx)

	stale, err := r.repo.FindStaleSubmissions(ctx, staleAfterHours)
	if err != nil {
		return 0, err
	}
	for _, submissionID := range stale {
		logger.WithField("submission_id", submissionID).
			Warn("submission has no terminal delivery attempt within staleness window")
	}
	return len(stale), nil
}

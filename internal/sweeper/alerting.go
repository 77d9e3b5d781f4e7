package sweeper

import (
	"context"
	"fmt"

	"github.com/notifybridge/pipeline/internal/telemetry"
)

// DLQHealthAlerter watches the rate of terminal-DLQ promotions across
// sweeps and raises one Sentry alert on the first sweep that promotes
// more entries than the threshold, counting consecutive breaches after
// that without alerting again until a clean sweep resets it.
type DLQHealthAlerter struct {
	threshold      int
	consecutive    int
	alertedAlready bool
}

// NewDLQHealthAlerter constructs an alerter that fires once promoted
// entries exceed threshold in a single sweep. threshold <= 0 disables
// alerting (Observe becomes a no-op).
func NewDLQHealthAlerter(threshold int) *DLQHealthAlerter {
	return &DLQHealthAlerter{threshold: threshold}
}

// Observe records one sweep's promoted-entry count and fires a Sentry
// alert the first time it crosses the threshold, clearing on a clean
// sweep so a sustained recovery can alert again on a future regression.
func (a *DLQHealthAlerter) Observe(ctx context.Context, promoted int) {
	if a.threshold <= 0 {
		return
	}

	logger := telemetry.LogFromContext(ctx)

	if promoted <= a.threshold {
		a.consecutive = 0
		a.alertedAlready = false
		return
	}

	a.consecutive++
	if a.alertedAlready {
		return
	}

	err := fmt.Errorf("dlq promotion rate exceeded threshold: %d promoted (threshold %d)", promoted, a.threshold)
	telemetry.CaptureErrorWithContext(ctx, err, map[string]string{
		"component": "retry_sweeper",
	}, map[string]interface{}{
		"promoted":            promoted,
		"threshold":           a.threshold,
		"consecutive_breaches": a.consecutive,
	})
	logger.Warnf("dlq health alert raised: %v", err)
	a.alertedAlready = true
}

package sweeper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLQHealthAlerter_DisabledWhenThresholdNonPositive(t *testing.T) {
	alerter := NewDLQHealthAlerter(0)
	// Must not panic even with no sentry/logger initialized.
	alerter.Observe(context.Background(), 1000)
	assert.Equal(t, 0, alerter.consecutive)
}

func TestDLQHealthAlerter_TracksConsecutiveBreaches(t *testing.T) {
	alerter := NewDLQHealthAlerter(5)

	alerter.Observe(context.Background(), 3)
	assert.Equal(t, 0, alerter.consecutive)
	assert.False(t, alerter.alertedAlready)

	alerter.Observe(context.Background(), 10)
	assert.Equal(t, 1, alerter.consecutive)
	assert.True(t, alerter.alertedAlready)

	alerter.Observe(context.Background(), 12)
	assert.Equal(t, 2, alerter.consecutive)
	assert.True(t, alerter.alertedAlready)
}

func TestDLQHealthAlerter_ResetsAfterCleanSweep(t *testing.T) {
	alerter := NewDLQHealthAlerter(5)

	alerter.Observe(context.Background(), 10)
	assert.True(t, alerter.alertedAlready)

	alerter.Observe(context.Background(), 2)
	assert.Equal(t, 0, alerter.consecutive)
	assert.False(t, alerter.alertedAlready)
}

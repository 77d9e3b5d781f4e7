package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifybridge/pipeline/internal/apperrors"
)

func TestExecute_Success(t *testing.T) {
	b := New(DefaultSettings("profile-service"))

	result, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestExecute_NonTrippingErrorPassesThroughWithoutOpening(t *testing.T) {
	b := New(Settings{Name: "template-service", ConsecutiveFailures: 2, OpenTimeout: 60 * time.Second, HalfOpenMaxRequests: 1})
	notFound := apperrors.NewNotFound("template")

	for i := 0; i < 5; i++ {
		_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, notFound
		})
		assert.Equal(t, notFound, err)
	}

	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestExecute_TrippingErrorOpensBreakerAfterThreshold(t *testing.T) {
	b := New(Settings{Name: "push-provider", ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenMaxRequests: 1})
	boom := errors.New("connection refused")

	_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	_, err = b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	result, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		t.Fatal("fn must not be invoked while breaker is open")
		return nil, nil
	})
	assert.Nil(t, result)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindCircuitOpen, appErr.Kind)
}

func TestCountsAsFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"not found is excluded", apperrors.NewNotFound("profile"), false},
		{"missing template data is excluded", apperrors.NewMissingTemplateData("name"), false},
		{"validation is excluded", apperrors.NewValidation("email", "required"), false},
		{"transport timeout counts", apperrors.NewTransportTimeout("call", errors.New("timeout")), true},
		{"broker unavailable counts", apperrors.NewBrokerUnavailable("publish", errors.New("down")), true},
		{"unclassified error counts", errors.New("raw transport error"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CountsAsFailure(tt.err))
		})
	}
}

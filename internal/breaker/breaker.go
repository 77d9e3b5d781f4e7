// Package breaker wraps a remote capability call in a three-state circuit
// breaker: closed, open, half-open. It is an explicit object whose Execute
// method is invoked around a call, not a decorator injected by
// metaprogramming.
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/notifybridge/pipeline/internal/apperrors"
)

// Settings configures a Breaker. Defaults: closed to open after 5
// consecutive connection-class failures, 60s open, one half-open probe.
type Settings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenMaxRequests uint32
}

// DefaultSettings returns the standard breaker policy for a named
// capability.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         60 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Breaker mediates calls to one remote capability.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New constructs a Breaker from Settings.
func New(s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenMaxRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
	})
	return &Breaker{name: s.Name, cb: cb}
}

// CountsAsFailure classifies whether an error should count against the
// breaker's failure budget. Well-formed upstream error responses (404,
// 400, and similar, including other 4xx statuses the clients report as
// KindInternal) are excluded; only connection-class failures (transport
// errors, timeouts, 5xx) count.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := apperrors.KindOf(err)
	if !ok {
		// An unclassified error is assumed to be a connection-class
		// failure (e.g. a raw net/http transport error).
		return true
	}
	switch kind {
	case apperrors.KindNotFound, apperrors.KindMissingTemplateData, apperrors.KindValidation, apperrors.KindInternal:
		return false
	default:
		return true
	}
}

// Execute runs fn through the breaker. If the breaker is open, it fails
// fast with KindCircuitOpen without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		res, callErr := fn(ctx)
		if CountsAsFailure(callErr) {
			return res, callErr
		}
		// Non-connection-class errors (404/400) must not trip the
		// breaker, but gobreaker counts any non-nil error as a
		// failure. Report success to gobreaker and let the caller
		// see the original error via the wrapped sentinel below.
		return nonTrippingError{res, callErr}, nil
	})
	if wrapped, ok := result.(nonTrippingError); ok {
		return wrapped.result, wrapped.err
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, apperrors.NewCircuitOpen(b.name)
	}
	return result, err
}

type nonTrippingError struct {
	result interface{}
	err    error
}

// State reports the breaker's current state, primarily for health checks
// and tests.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

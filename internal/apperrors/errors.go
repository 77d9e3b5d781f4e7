// Package apperrors implements the delivery pipeline's error-kind taxonomy.
// A result value carries its kind explicitly instead of raising a typed
// exception; the HTTP layer is the only translator from kind to status
// code, so deep helpers never need to know which transport surfaces them.
package apperrors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Kind is one of the error classes in the delivery pipeline's error table.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindMissingTemplateData Kind = "missing_template_data"
	KindCircuitOpen        Kind = "circuit_open"
	KindTransportTimeout   Kind = "transport_timeout"
	KindBrokerUnavailable  Kind = "broker_unavailable"
	KindIdempotencyBackend Kind = "idempotency_backend"
	KindProviderTransient  Kind = "provider_transient"
	KindProviderTerminal   Kind = "provider_terminal"
	KindAuditWriteError    Kind = "audit_write_error"
	KindInternal           Kind = "internal"
)

// AppError is a structured application error carrying the information the
// HTTP layer needs to translate it into a status code.
type AppError struct {
	Kind          Kind                   `json:"kind"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
	HTTPStatus    int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// ToJSON serializes the error for an HTTP response body.
func (e *AppError) ToJSON() ([]byte, error) { return json.Marshal(e) }

// New creates an AppError of the given kind with the kind's default HTTP status.
func New(kind Kind, code, message string) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: defaultHTTPStatus(kind),
	}
}

// Wrap creates an AppError with an underlying cause attached as Details.
func Wrap(kind Kind, code, message string, cause error) *AppError {
	err := New(kind, code, message)
	err.Cause = cause
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func (e *AppError) WithCorrelationID(id string) *AppError { e.CorrelationID = id; return e }
func (e *AppError) WithDetails(d string) *AppError        { e.Details = d; return e }
func (e *AppError) WithMetadata(k string, v interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[k] = v
	return e
}
func (e *AppError) WithHTTPStatus(status int) *AppError { e.HTTPStatus = status; return e }

// defaultHTTPStatus is the only place kind maps to a status code.
func defaultHTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindMissingTemplateData:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCircuitOpen, KindTransportTimeout, KindBrokerUnavailable:
		return http.StatusServiceUnavailable
	case KindIdempotencyBackend, KindAuditWriteError:
		// Absorbed kinds never surface to a client; this status is only
		// used if one is mistakenly returned from a handler.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Constructors for the kinds this pipeline actually raises.

func NewValidation(field, message string) *AppError {
	return New(KindValidation, "VALIDATION_ERROR", message).WithMetadata("field", field)
}

func NewNotFound(resource string) *AppError {
	return New(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource)).
		WithMetadata("resource", resource)
}

func NewMissingTemplateData(placeholder string) *AppError {
	return New(KindMissingTemplateData, "MISSING_TEMPLATE_DATA",
		fmt.Sprintf("template placeholder %q has no value in data", placeholder)).
		WithMetadata("placeholder", placeholder)
}

func NewCircuitOpen(capability string) *AppError {
	return New(KindCircuitOpen, "CIRCUIT_OPEN", fmt.Sprintf("%s breaker is open", capability)).
		WithMetadata("capability", capability)
}

func NewTransportTimeout(operation string, cause error) *AppError {
	return Wrap(KindTransportTimeout, "TRANSPORT_TIMEOUT",
		fmt.Sprintf("%s timed out", operation), cause).
		WithMetadata("operation", operation)
}

func NewBrokerUnavailable(operation string, cause error) *AppError {
	return Wrap(KindBrokerUnavailable, "BROKER_UNAVAILABLE",
		fmt.Sprintf("broker %s failed", operation), cause).
		WithMetadata("operation", operation)
}

func NewIdempotencyBackend(operation string, cause error) *AppError {
	return Wrap(KindIdempotencyBackend, "IDEMPOTENCY_BACKEND_ERROR",
		fmt.Sprintf("idempotency store %s failed", operation), cause)
}

func NewProviderTransient(channel string, cause error) *AppError {
	return Wrap(KindProviderTransient, "PROVIDER_TRANSIENT",
		fmt.Sprintf("%s provider call failed", channel), cause).
		WithMetadata("channel", channel)
}

func NewProviderTerminal(channel, reason string) *AppError {
	return New(KindProviderTerminal, "PROVIDER_TERMINAL", reason).
		WithMetadata("channel", channel)
}

func NewAuditWriteError(operation string, cause error) *AppError {
	return Wrap(KindAuditWriteError, "AUDIT_WRITE_ERROR",
		fmt.Sprintf("audit %s failed", operation), cause)
}

func NewInternal(message string, cause error) *AppError {
	return Wrap(KindInternal, "INTERNAL_ERROR", message, cause)
}

// Is reports whether err is an *AppError of the given kind.
func Is(err error, kind Kind) bool {
	if ae, ok := err.(*AppError); ok {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err if it is an *AppError.
func KindOf(err error) (Kind, bool) {
	if ae, ok := err.(*AppError); ok {
		return ae.Kind, true
	}
	return "", false
}

// Package notifypipe holds the shared data model for the delivery
// pipeline: the envelope that crosses the ingress queue, the
// per-channel messages the router produces, the audit record of each
// delivery attempt, and the dead-letter wrapper used on the fail queue.
package notifypipe

import (
	"encoding/json"
	"time"
)

// SubmissionRequest is the client-owned body of POST /v1/notifications.
type SubmissionRequest struct {
	RecipientID string                 `json:"recipient_id"`
	TemplateKey string                 `json:"template_key"`
	Data        map[string]interface{} `json:"data"`
}

// DeliveryTargets names the channels available for a recipient.
type DeliveryTargets struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	PushToken string `json:"push_token,omitempty"`
}

// HasAnyTarget reports whether at least one deliverable channel is present.
func (t DeliveryTargets) HasAnyTarget() bool {
	return t.Email != "" || t.Phone != "" || t.PushToken != ""
}

// RenderedContent is the rendered template triple. Its UnmarshalJSON
// tolerates field-name drift from the template service: `html`,
// `html_body`, or `content` are all accepted for the HTML body during a
// migration window, normalized here to BodyHTML.
type RenderedContent struct {
	Subject  string `json:"subject"`
	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html"`
}

func (r *RenderedContent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Subject  string `json:"subject"`
		BodyText string `json:"body_text"`
		BodyHTML string `json:"body_html"`
		HTML     string `json:"html"`
		HTMLBody string `json:"html_body"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Subject = raw.Subject
	r.BodyText = raw.BodyText
	r.BodyHTML = firstNonEmpty(raw.BodyHTML, raw.HTML, raw.HTMLBody, raw.Content)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// EnvelopeMetadata carries routing/audit context alongside a published envelope.
type EnvelopeMetadata struct {
	TemplateKey    string `json:"template_key"`
	Language       string `json:"language,omitempty"`
	SubmissionID   string `json:"submission_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Envelope is the ingress-queue payload produced by the Submission API and
// consumed exactly once by the Router Worker.
type Envelope struct {
	RecipientID     string                 `json:"recipient_id"`
	DeliveryTargets DeliveryTargets        `json:"delivery_targets"`
	Preferences     map[string]interface{} `json:"preferences,omitempty"`
	Rendered        RenderedContent        `json:"rendered"`
	Metadata        EnvelopeMetadata       `json:"metadata"`
}

// Validate enforces invariant 1: non-empty subject and at least one
// delivery target.
func (e *Envelope) Validate() error {
	if e.Rendered.Subject == "" {
		return errEmptySubject
	}
	if !e.DeliveryTargets.HasAnyTarget() {
		return errNoDeliveryTarget
	}
	return nil
}

var (
	errEmptySubject     = simpleErr("envelope has empty rendered.subject")
	errNoDeliveryTarget = simpleErr("envelope has no delivery target (email, push_token, or phone)")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// EmailMessage is the per-channel message the router publishes to
// email.queue.
type EmailMessage struct {
	NotificationID string                 `json:"notification_id"`
	UserID         string                 `json:"user_id"`
	To             string                 `json:"to"`
	Subject        string                 `json:"subject"`
	Content        string                 `json:"content"`
	TemplateID     string                 `json:"template_id,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// PushMessage is the per-channel message the router publishes to
// push.queue.
type PushMessage struct {
	NotificationID string                 `json:"notification_id"`
	UserID         string                 `json:"user_id"`
	Target         string                 `json:"target"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// AttemptStatus is the terminal state of one delivery attempt.
type AttemptStatus string

const (
	AttemptSent   AttemptStatus = "sent"
	AttemptFailed AttemptStatus = "failed"
)

// Channel identifies which channel worker produced a DeliveryAttempt.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// DeliveryAttempt is one append-only audit row.
type DeliveryAttempt struct {
	SubmissionID        string        `json:"submission_id"`
	RecipientID         string        `json:"recipient_id"`
	Channel             Channel       `json:"channel"`
	Status              AttemptStatus `json:"status"`
	ProviderMessageID   string        `json:"provider_message_id,omitempty"`
	ProviderStatusCode  int           `json:"provider_status_code,omitempty"`
	RetryCount          int           `json:"retry_count"`
	Error               string        `json:"error,omitempty"`
	AttemptAt           time.Time     `json:"attempt_at"`
}

// FailedEnvelope is a ChannelMessage re-wrapped with retry headers once it
// lands on the shared fail queue.
type FailedEnvelope struct {
	Channel    Channel         `json:"channel"`
	Body       json.RawMessage `json:"body"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error"`
	FailedAt   int64           `json:"failed_at"`
}

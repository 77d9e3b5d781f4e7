// Package submission implements the Submission API: HTTP ingress that
// validates, enforces idempotency, orchestrates the profile and template
// clients, and enqueues an envelope on the ingress queue (validate ->
// idempotency -> dependency calls -> build -> publish -> persist
// idempotency).
package submission

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/clients"
	"github.com/notifybridge/pipeline/internal/idempotency"
	"github.com/notifybridge/pipeline/internal/notifypipe"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// idempotencyTTL is how long a cached response stays replayable for a
// repeated Idempotency-Key.
const idempotencyTTL = 24 * time.Hour

// Response is the body returned for a successful submission: 202 with
// { submission_id, ...echo }.
type Response struct {
	SubmissionID string `json:"submission_id"`
	RecipientID  string `json:"recipient_id"`
	TemplateKey  string `json:"template_key"`
}

// Service orchestrates the Submission API's single operation.
type Service struct {
	profile     *clients.ProfileClient
	template    *clients.TemplateClient
	idempotency idempotency.Store
	publisher   *broker.Publisher
}

// NewService wires the Submission API's dependencies.
func NewService(profile *clients.ProfileClient, template *clients.TemplateClient, store idempotency.Store, publisher *broker.Publisher) *Service {
	return &Service{
		profile:     profile,
		template:    template,
		idempotency: store,
		publisher:   publisher,
	}
}

// Submit runs the full ingress pipeline for one SubmissionRequest.
func (s *Service) Submit(ctx context.Context, req notifypipe.SubmissionRequest, idempotencyKey string) (*Response, error) {
	logger := telemetry.LogFromContext(ctx).WithField("recipient_id", req.RecipientID)

	if err := validate(req); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		if rec, err := s.idempotency.Get(ctx, idempotencyKey); err == nil && rec != nil {
			var cached Response
			if err := json.Unmarshal(rec.ResponseSnapshot, &cached); err == nil {
				logger.WithField("idempotency_key", idempotencyKey).Info("idempotent resubmission, returning cached response")
				return &cached, nil
			}
		}
	}

	profile, err := s.profile.GetProfile(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}

	rendered, err := s.template.Render(ctx, req.TemplateKey, req.Data)
	if err != nil {
		return nil, err
	}

	submissionID := uuid.New().String()
	targets := profile.ToDeliveryTargets()
	if !targets.HasAnyTarget() {
		logger.Warn("envelope has no email, push_token, or phone target; enqueuing anyway")
	}

	envelope := notifypipe.Envelope{
		RecipientID:     req.RecipientID,
		DeliveryTargets: targets,
		Preferences:     profile.Preferences,
		Rendered:        *rendered,
		Metadata: notifypipe.EnvelopeMetadata{
			TemplateKey:    req.TemplateKey,
			Language:       profile.Language,
			SubmissionID:   submissionID,
			IdempotencyKey: idempotencyKey,
		},
	}

	if envelope.Rendered.Subject == "" {
		return nil, apperrors.NewInternal("rendered envelope missing subject", nil)
	}

	if err := s.publisher.PublishJSON(ctx, "", broker.QueueIngress, envelope, nil); err != nil {
		return nil, apperrors.NewBrokerUnavailable("publish envelope", err)
	}

	resp := &Response{
		SubmissionID: submissionID,
		RecipientID:  req.RecipientID,
		TemplateKey:  req.TemplateKey,
	}

	if idempotencyKey != "" {
		snapshot, marshalErr := json.Marshal(resp)
		if marshalErr == nil {
			_ = s.idempotency.Put(ctx, idempotencyKey, &idempotency.Record{
				Key:              idempotencyKey,
				ResponseSnapshot: snapshot,
				StoredAt:         time.Now().UTC(),
			}, idempotencyTTL)
		}
	}

	return resp, nil
}

func validate(req notifypipe.SubmissionRequest) error {
	if req.RecipientID == "" {
		return apperrors.NewValidation("recipient_id", "recipient_id is required")
	}
	if req.TemplateKey == "" {
		return apperrors.NewValidation("template_key", "template_key is required")
	}
	return nil
}

package submission

import (
	"github.com/gofiber/fiber/v2"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/notifypipe"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// Handler adapts Service.Submit to a Fiber route. It is the sole
// translator from an apperrors.Kind to an HTTP status code.
type Handler struct {
	service *Service
	stats   *StatsProvider
}

// NewHandler wraps a Service for HTTP. stats may be nil, in which case
// GET /v1/stats reports a 503 rather than panicking (e.g. in tests that
// construct a Handler without a live broker connection).
func NewHandler(service *Service, stats *StatsProvider) *Handler {
	return &Handler{service: service, stats: stats}
}

// Register mounts the Submission API's routes on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.handleHealth)
	app.Post("/v1/notifications", h.handleSubmit)
	app.Get("/v1/stats", h.handleStats)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "service": "submission-api"})
}

func (h *Handler) handleSubmit(c *fiber.Ctx) error {
	ctx := c.Context()
	correlationID := c.Get("X-Correlation-ID")
	reqCtx := telemetry.WithCorrelationID(ctx, correlationID)

	var req notifypipe.SubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewValidation("body", "request body must be valid JSON"))
	}

	idempotencyKey := c.Get("X-Idempotency-Key")

	resp, err := h.service.Submit(reqCtx, req, idempotencyKey)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *Handler) handleStats(c *fiber.Ctx) error {
	if h.stats == nil {
		return writeError(c, apperrors.NewBrokerUnavailable("queue_stats", nil))
	}
	resp, err := h.stats.Stats(telemetry.WithCorrelationID(c.Context(), c.Get("X-Correlation-ID")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

func writeError(c *fiber.Ctx, err error) error {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.NewInternal("unexpected error", err)
	}
	return c.Status(appErr.HTTPStatus).JSON(appErr)
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/upscalehq/payment-service/internal/config"
	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/model"
	"github.com/upscalehq/payment-service/internal/domain/repository"
	"github.com/upscalehq/payment-service/internal/usecase"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes bounds inbound payloads; Stripe events are far smaller.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler is the dispatcher for POST /webhooks/payments: verify,
// claim, route, finalize. The HTTP status code is the retry contract with
// Stripe — 2xx acknowledges, anything else solicits redelivery.
type WebhookHandler struct {
	service   config.ServiceConfig
	events    repository.WebhookEventRepository
	processor *usecase.EventProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(
	service config.ServiceConfig,
	events repository.WebhookEventRepository,
	processor *usecase.EventProcessor,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		service:   service,
		events:    events,
		processor: processor,
		logger:    logger,
	}
}

// HandleWebhook processes one Stripe webhook delivery.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	// Config validation refuses this at startup; the runtime guard covers
	// reloads or test harnesses that bypass LoadConfig.
	if h.service.Mode == config.ModeProduction && config.IsPlaceholderWebhookSecret(h.service.StripeWebhookSecret) {
		h.logger.Error("Webhook secret is a placeholder in production mode")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "webhook endpoint is not configured",
		})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
	}

	event, verr := h.verifyEvent(c, body)
	if verr != nil {
		h.logger.Warn("Webhook verification failed", zap.Error(verr.err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.message})
	}

	var payload model.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unparseable event body"})
	}

	record := &model.WebhookEvent{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		Payload:       payload,
	}
	if event.Created > 0 {
		t := time.Unix(event.Created, 0)
		record.StripeCreatedAt = &t
	}

	claim, err := h.events.Claim(ctx, record)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record event"})
	}
	if !claim.Claimed {
		h.logger.Info("Duplicate webhook delivery skipped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("existing_status", string(claim.ExistingStatus)))
		return c.JSON(http.StatusOK, echo.Map{
			"received": true,
			"skipped":  true,
			"reason":   "event already " + string(claim.ExistingStatus),
		})
	}

	outcome, perr := h.processor.Process(ctx, event)

	if perr != nil {
		if errors.Is(perr, domainErrors.ErrUnhandledEventType) {
			h.logger.Warn("Unhandled webhook event type",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
			if err := h.events.MarkUnrecoverable(ctx, event.ID, perr.Error()); err != nil {
				h.logger.Error("Failed to mark event unrecoverable",
					zap.String("event_id", event.ID), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to finalize event"})
			}
			return c.JSON(http.StatusOK, echo.Map{
				"received": true,
				"warning":  "unhandled event type " + string(event.Type),
			})
		}

		h.logger.Error("Webhook handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(perr))
		if err := h.events.MarkFailed(ctx, event.ID, perr); err != nil {
			h.logger.Error("Failed to mark event failed",
				zap.String("event_id", event.ID), zap.Error(err))
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event processing failed"})
	}

	if err := h.events.MarkCompleted(ctx, event.ID); err != nil {
		h.logger.Error("Failed to mark event completed",
			zap.String("event_id", event.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to finalize event"})
	}

	if !outcome.Processed {
		return c.JSON(http.StatusOK, echo.Map{
			"received": true,
			"skipped":  true,
			"reason":   outcome.Reason,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

type verifyError struct {
	message string
	err     error
}

// verifyEvent authenticates the delivery. Production mode requires a valid
// Stripe-Signature; test mode trusts the body so integration tests can post
// events without signing them.
func (h *WebhookHandler) verifyEvent(c echo.Context, body []byte) (stripe.Event, *verifyError) {
	if h.service.Mode != config.ModeProduction {
		var event stripe.Event
		if err := json.Unmarshal(body, &event); err != nil {
			return stripe.Event{}, &verifyError{message: "unparseable event body", err: err}
		}
		if event.ID == "" {
			return stripe.Event{}, &verifyError{message: "event id is required", err: errors.New("missing event id")}
		}
		return event, nil
	}

	sigHeader := c.Request().Header.Get("Stripe-Signature")
	if sigHeader == "" {
		return stripe.Event{}, &verifyError{message: "missing stripe-signature header", err: errors.New("missing signature header")}
	}

	event, err := webhook.ConstructEventWithOptions(body, sigHeader, h.service.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, &verifyError{message: "signature verification failed", err: err}
	}
	return event, nil
}

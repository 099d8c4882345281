package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/studio"
	"github.com/gofiber/fiber/v2"
)

// StripeEventParser verifies and decodes a Stripe webhook delivery.
type StripeEventParser interface {
	ParseWebhook(payload []byte, signature string) (*services.SubscriptionEvent, error)
}

type WebhookHandler struct {
	parser         StripeEventParser
	billing        *services.BillingService
	studio         *services.StudioService
	callbackSecret string
}

func NewWebhookHandler(parser StripeEventParser, billing *services.BillingService, studioService *services.StudioService, callbackSecret string) *WebhookHandler {
	return &WebhookHandler{
		parser:         parser,
		billing:        billing,
		studio:         studioService,
		callbackSecret: callbackSecret,
	}
}

// HandleStripe mirrors subscription changes pushed by Stripe.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	event, err := h.parser.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		metrics.StripeWebhooks.WithLabelValues("invalid").Inc()
		slog.Warn("stripe webhook rejected", "error", err)
		return errorJSON(c, fiber.StatusBadRequest, "Invalid webhook signature")
	}
	metrics.StripeWebhooks.WithLabelValues(event.Type).Inc()

	if err := h.billing.HandleSubscriptionEvent(c.UserContext(), event); err != nil {
		slog.Error("stripe webhook processing failed", "event_type", event.Type, "customer_id", event.CustomerID, "operation", "stripe_webhook", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to process webhook event")
	}
	return c.JSON(dto.WebhookAck{Received: true})
}

// HandleStudio records a task update pushed by the audio provider.
func (h *WebhookHandler) HandleStudio(c *fiber.Ctx) error {
	if h.callbackSecret == "" {
		return errorJSON(c, fiber.StatusNotFound, "Webhooks not configured")
	}
	signature := c.Get("X-Studio-Signature")
	if subtle.ConstantTimeCompare([]byte(signature), []byte(h.callbackSecret)) != 1 {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var payload studio.TaskPayload
	if err := c.BodyParser(&payload); err != nil || payload.TaskID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid webhook payload")
	}

	if err := h.studio.ApplyCallback(c.UserContext(), payload.ToProviderTask()); err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			slog.Info("studio callback for unknown task ignored", "provider_task_id", payload.TaskID)
			return c.JSON(dto.WebhookAck{Received: true})
		}
		slog.Error("studio callback processing failed", "provider_task_id", payload.TaskID, "operation", "studio_webhook", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to process webhook event")
	}
	return c.JSON(dto.WebhookAck{Received: true})
}

package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/ingest"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

// headers never stored with a delivery
var skippedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-api-key":     true,
}

// WebhookController receives provider notifications
type WebhookController struct {
	pipeline *ingest.Pipeline
	timeout  time.Duration
}

// NewWebhookController creates a new webhook controller
func NewWebhookController(pipeline *ingest.Pipeline) *WebhookController {
	return &WebhookController{pipeline: pipeline, timeout: ingest.RequestTimeout}
}

// HandleRazorpayWebhook verifies, records and reconciles one delivery. It
// answers 200 for every delivery that was recorded with a final outcome and
// 503 with Retry-After when the provider should deliver again.
func (wc *WebhookController) HandleRazorpayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ctx, cancel := context.WithTimeout(context.Background(), wc.timeout)
	defer cancel()

	ev, err := wc.pipeline.Handle(ctx, eventstore.Delivery{
		Provider:          models.ProviderRazorpay,
		EventID:           strings.TrimSpace(c.Get(EventIDHeader)),
		RawPayload:        rawBody,
		ReceivedSignature: strings.TrimSpace(c.Get(SignatureHeader)),
		Headers:           requestHeaders(c),
		SourceIP:          GetClientIP(c),
		ReceivedAt:        time.Now().UTC(),
	})
	if err != nil {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		body := fiber.Map{"ok": false}
		switch {
		case errors.Is(err, secrets.ErrConfigurationMissing):
			body["error"] = "configuration_missing"
		case errors.Is(err, reconcile.ErrLockTimeout):
			body["error"] = "order_busy"
		default:
			body["error"] = "temporarily_unavailable"
		}
		if ev != nil {
			body["id"] = ev.ID
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"id":           ev.ID,
		"verification": ev.Verification,
		"outcome":      ev.ProcessingOutcome,
	})
}

func requestHeaders(c *fiber.Ctx) map[string]string {
	out := map[string]string{}
	for name, values := range c.GetReqHeaders() {
		if skippedHeaders[strings.ToLower(name)] {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// ============================================================================
// GLOBAL WEBHOOK CONTROLLER INSTANCE - Singleton Pattern
// ============================================================================

var webhookController *WebhookController

// InitializeWebhookController initializes the global webhook controller
func InitializeWebhookController(pipeline *ingest.Pipeline) {
	webhookController = NewWebhookController(pipeline)
}

// GetWebhookController returns the global webhook controller instance
func GetWebhookController() *WebhookController {
	if webhookController == nil {
		panic("Webhook controller not initialized. Call InitializeWebhookController first.")
	}
	return webhookController
}

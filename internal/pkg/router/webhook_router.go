package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PayDemo/app/controllers"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
)

type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	hooks := app.Group("/webhooks", limiter.New(limiter.Config{
		Max:        env.GetInt("WEBHOOK_RATE_LIMIT", 300),
		Expiration: time.Minute,
		Storage:    limiterStorage(),
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"ok": false, "error": "rate_limited"})
		},
	}))

	hooks.Post("/razorpay", controllers.GetWebhookController().HandleRazorpayWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}

package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PayDemo/app/controllers"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
	"github.com/ManuelReschke/PayDemo/internal/pkg/middleware"
)

type ApiRouter struct {
	keys []middleware.OperatorKey
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetInt("API_RATE_LIMIT", 120),
		Expiration: time.Minute,
		Storage:    limiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes, operator key required
	v1 := api.Group("/v1", middleware.OperatorKeyAuthMiddleware(h.keys), middleware.RequireOperator)

	webhooks := controllers.GetAdminWebhookController()
	v1.Get("/webhooks/events", webhooks.HandleListEvents)
	v1.Get("/webhooks/events/:id", webhooks.HandleGetEvent)
	v1.Post("/webhooks/events/:id/replay", middleware.RequirePrivileged, webhooks.HandleReplayEvent)

	config := controllers.GetDeveloperConfigController()
	v1.Get("/developer-config", middleware.RequirePrivileged, config.HandleGetConfig)
	v1.Put("/developer-config", middleware.RequirePrivileged, config.HandleUpdateConfig)
	v1.Get("/developer-config/history", middleware.RequirePrivileged, config.HandleConfigHistory)

	v1.Post("/orders", middleware.RequirePrivileged, controllers.GetOrderController().HandleCreateOrder)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{keys: middleware.OperatorKeysFromEnv()}
}

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayDemo/internal/pkg/payments"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, services *payments.Services) {
	// Controllers are initialized once here, both routers read the globals.
	initializeControllers(services)
	setup(app, NewWebhookRouter(), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

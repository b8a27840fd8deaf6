package router

import (
	"github.com/ManuelReschke/PayDemo/app/controllers"
	"github.com/ManuelReschke/PayDemo/internal/pkg/payments"
)

func initializeControllers(s *payments.Services) {
	controllers.InitializeWebhookController(s.Pipeline)
	controllers.InitializeAdminWebhookController(s.Inspector, s.Replay)
	controllers.InitializeDeveloperConfigController(s.Config)
	controllers.InitializeOrderController(s.Checkout)
}

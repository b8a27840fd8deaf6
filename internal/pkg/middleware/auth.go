package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// RequireOperator ensures an authenticated operator; returns JSON 401 otherwise.
func RequireOperator(c *fiber.Ctx) error {
	if !usercontext.GetCapability(c).CanInspect() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "operator key required",
		})
	}
	return c.Next()
}

// RequirePrivileged ensures an admin operator; returns JSON 403 otherwise.
func RequirePrivileged(c *fiber.Ctx) error {
	cap := usercontext.GetCapability(c)
	if !cap.CanInspect() {
		return RequireOperator(c)
	}
	if !cap.CanReplay() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin operator required",
		})
	}
	return c.Next()
}

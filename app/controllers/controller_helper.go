package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/internal/pkg/checkout"
	"github.com/ManuelReschke/PayDemo/internal/pkg/devconfig"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/inspector"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// retryAfterSeconds is what the provider is told to wait before redelivering.
const retryAfterSeconds = "30"

// GetClientIP determines the client address considering proxies. The first
// entry of CF-Connecting-IP, X-Forwarded-For or X-Real-IP wins, in that
// order, then the connection address.
func GetClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		// the first one is the original client
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}

	ip := c.IP()
	// IPv4-mapped IPv6 (::ffff:192.168.1.1)
	if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
		return strings.TrimPrefix(ip, "::ffff:")
	}
	return ip
}

// operatorError maps service errors of the operator API onto JSON responses.
func operatorError(c *fiber.Ctx, err error) error {
	return operatorErrorWith(c, err, nil)
}

// operatorErrorWith is operatorError with extra fields in the response body.
func operatorErrorWith(c *fiber.Ctx, err error, extra fiber.Map) error {
	status, body := classifyOperatorError(err)
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
	}
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func classifyOperatorError(err error) (int, fiber.Map) {
	switch {
	case errors.Is(err, usercontext.ErrUnauthorized):
		return fiber.StatusForbidden, fiber.Map{"error": "forbidden", "message": "operator lacks the required capability"}
	case errors.Is(err, eventstore.ErrNotFound):
		return fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": err.Error()}
	case errors.Is(err, inspector.ErrInvalidQuery),
		errors.Is(err, eventstore.ErrInvalidCursor),
		errors.Is(err, devconfig.ErrInvalidConfig),
		errors.Is(err, checkout.ErrInvalidOrder):
		return fiber.StatusBadRequest, fiber.Map{"error": "bad_request", "message": err.Error()}
	case errors.Is(err, secrets.ErrConfigurationMissing):
		return fiber.StatusConflict, fiber.Map{"error": "configuration_missing", "message": err.Error()}
	case errors.Is(err, reconcile.ErrLockTimeout):
		return fiber.StatusServiceUnavailable, fiber.Map{"error": "order_busy", "message": err.Error()}
	}
	return fiber.StatusInternalServerError, fiber.Map{"error": "internal_server_error", "message": "request failed"}
}

package controllers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayDemo/internal/pkg/inspector"
	"github.com/ManuelReschke/PayDemo/internal/pkg/replay"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// AdminWebhookController exposes the delivery log to operators
type AdminWebhookController struct {
	inspector *inspector.Inspector
	replay    *replay.Controller
}

// NewAdminWebhookController creates a new admin webhook controller
func NewAdminWebhookController(insp *inspector.Inspector, rc *replay.Controller) *AdminWebhookController {
	return &AdminWebhookController{inspector: insp, replay: rc}
}

// HandleListEvents lists deliveries newest first.
// Query: event_type, outcome, verification, order_ref, from, to, cursor, limit.
func (ac *AdminWebhookController) HandleListEvents(c *fiber.Ctx) error {
	q, err := parseEventQuery(c)
	if err != nil {
		return operatorError(c, err)
	}
	listing, err := ac.inspector.List(c.UserContext(), usercontext.GetCapability(c), q)
	if err != nil {
		return operatorError(c, err)
	}
	return c.JSON(listing)
}

// HandleGetEvent returns one delivery with its raw payload.
func (ac *AdminWebhookController) HandleGetEvent(c *fiber.Ctx) error {
	id, ok := parseRecordID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid record id"})
	}
	detail, err := ac.inspector.Get(c.UserContext(), usercontext.GetCapability(c), id)
	if err != nil {
		return operatorError(c, err)
	}
	return c.JSON(detail)
}

// HandleReplayEvent re-verifies and re-applies one delivery.
func (ac *AdminWebhookController) HandleReplayEvent(c *fiber.Ctx) error {
	id, ok := parseRecordID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid record id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	res, err := ac.replay.Replay(ctx, id, usercontext.GetCapability(c))
	if err != nil {
		if res.EventID != 0 {
			// the record was updated, show what was stored
			return operatorErrorWith(c, err, fiber.Map{"result": res})
		}
		return operatorError(c, err)
	}
	return c.JSON(res)
}

func parseRecordID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func parseEventQuery(c *fiber.Ctx) (inspector.Query, error) {
	q := inspector.Query{
		EventType:         strings.TrimSpace(c.Query("event_type")),
		ProcessingOutcome: strings.TrimSpace(c.Query("outcome")),
		Verification:      strings.TrimSpace(c.Query("verification")),
		ProviderOrderRef:  strings.TrimSpace(c.Query("order_ref")),
		Cursor:            strings.TrimSpace(c.Query("cursor")),
		Limit:             c.QueryInt("limit", 0),
	}

	var err error
	if q.From, err = parseQueryTime(c.Query("from"), false); err != nil {
		return q, err
	}
	if q.To, err = parseQueryTime(c.Query("to"), true); err != nil {
		return q, err
	}
	return q, nil
}

// parseQueryTime accepts RFC 3339 or a plain date. A plain date used as an
// upper bound covers the whole day.
func parseQueryTime(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse time %q", inspector.ErrInvalidQuery, v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// ============================================================================
// GLOBAL ADMIN WEBHOOK CONTROLLER INSTANCE - Singleton Pattern
// ============================================================================

var adminWebhookController *AdminWebhookController

// InitializeAdminWebhookController initializes the global admin webhook controller
func InitializeAdminWebhookController(insp *inspector.Inspector, rc *replay.Controller) {
	adminWebhookController = NewAdminWebhookController(insp, rc)
}

// GetAdminWebhookController returns the global admin webhook controller instance
func GetAdminWebhookController() *AdminWebhookController {
	if adminWebhookController == nil {
		panic("Admin webhook controller not initialized. Call InitializeAdminWebhookController first.")
	}
	return adminWebhookController
}

package usercontext

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrUnauthorized is returned by operator surfaces when the caller's
// capability does not cover the requested action.
var ErrUnauthorized = errors.New("unauthorized")

// Capability is the explicit authority a request carries into the operator
// surfaces. The zero value grants nothing.
type Capability struct {
	Operator   string `json:"operator"`
	Privileged bool   `json:"privileged"`
}

// CanInspect reports whether the holder may read webhook records.
func (c Capability) CanInspect() bool {
	return c.Operator != ""
}

// CanReplay reports whether the holder may replay events and manage the
// developer configuration.
func (c Capability) CanReplay() bool {
	return c.Operator != "" && c.Privileged
}

// RequireInspect returns ErrUnauthorized unless the holder may inspect.
func (c Capability) RequireInspect() error {
	if !c.CanInspect() {
		return ErrUnauthorized
	}
	return nil
}

// RequirePrivileged returns ErrUnauthorized unless the holder is privileged.
func (c Capability) RequirePrivileged() error {
	if !c.CanReplay() {
		return ErrUnauthorized
	}
	return nil
}

// GetCapability retrieves the capability set by the operator middleware.
// Returns the empty capability if none is set.
func GetCapability(c *fiber.Ctx) Capability {
	if v, ok := c.Locals(KeyCapability).(Capability); ok {
		return v
	}
	return Capability{}
}

// SetCapability stores cap on the request.
func SetCapability(c *fiber.Ctx, cap Capability) {
	c.Locals(KeyCapability, cap)
	c.Locals(KeyOperator, cap.Operator)
}

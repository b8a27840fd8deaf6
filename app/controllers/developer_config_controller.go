package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayDemo/internal/pkg/devconfig"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// DeveloperConfigController handles the operator-editable provider settings
type DeveloperConfigController struct {
	service *devconfig.Service
}

// NewDeveloperConfigController creates a new developer config controller
func NewDeveloperConfigController(service *devconfig.Service) *DeveloperConfigController {
	return &DeveloperConfigController{service: service}
}

// HandleGetConfig returns the active configuration with secrets masked.
func (dc *DeveloperConfigController) HandleGetConfig(c *fiber.Ctx) error {
	view, err := dc.service.Get(c.UserContext(), usercontext.GetCapability(c))
	if err != nil {
		return operatorError(c, err)
	}
	return c.JSON(view)
}

// HandleUpdateConfig stores a new revision. Omitted fields keep their value.
func (dc *DeveloperConfigController) HandleUpdateConfig(c *fiber.Ctx) error {
	var req devconfig.Update
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	view, err := dc.service.Update(c.UserContext(), usercontext.GetCapability(c), req)
	if err != nil {
		return operatorError(c, err)
	}
	return c.JSON(view)
}

// HandleConfigHistory lists past revisions without their secrets.
func (dc *DeveloperConfigController) HandleConfigHistory(c *fiber.Ctx) error {
	entries, err := dc.service.History(c.UserContext(), usercontext.GetCapability(c), c.QueryInt("limit", 20))
	if err != nil {
		return operatorError(c, err)
	}
	return c.JSON(fiber.Map{"revisions": entries})
}

var developerConfigController *DeveloperConfigController

// InitializeDeveloperConfigController initializes the global developer config controller
func InitializeDeveloperConfigController(service *devconfig.Service) {
	developerConfigController = NewDeveloperConfigController(service)
}

// GetDeveloperConfigController returns the global developer config controller instance
func GetDeveloperConfigController() *DeveloperConfigController {
	if developerConfigController == nil {
		panic("Developer config controller not initialized. Call InitializeDeveloperConfigController first.")
	}
	return developerConfigController
}

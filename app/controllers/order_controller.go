package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayDemo/internal/pkg/checkout"
)

// OrderController creates orders for operators and demos
type OrderController struct {
	checkout *checkout.Service
}

// NewOrderController creates a new order controller
func NewOrderController(svc *checkout.Service) *OrderController {
	return &OrderController{checkout: svc}
}

// HandleCreateOrder creates a local order and its provider counterpart.
func (oc *OrderController) HandleCreateOrder(c *fiber.Ctx) error {
	var req checkout.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	created, err := oc.checkout.CreateOrder(c.UserContext(), req)
	if err != nil {
		return operatorError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

var orderController *OrderController

// InitializeOrderController initializes the global order controller
func InitializeOrderController(svc *checkout.Service) {
	orderController = NewOrderController(svc)
}

// GetOrderController returns the global order controller instance
func GetOrderController() *OrderController {
	if orderController == nil {
		panic("Order controller not initialized. Call InitializeOrderController first.")
	}
	return orderController
}

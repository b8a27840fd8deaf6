package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/provider"
)

var ErrInvalidOrder = errors.New("invalid order")

// OrderCreator registers a local order with the payment provider.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order *models.Order) (*provider.ProviderOrder, error)
}

// Request is a new order as submitted by an operator.
type Request struct {
	AmountCents   int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"omitempty,len=3,alpha"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email,max=255"`
}

// Created is the correlated pair of local and provider order.
type Created struct {
	Order         *models.Order           `json:"order"`
	ProviderOrder *provider.ProviderOrder `json:"provider_order"`
}

// Service creates orders and correlates them with the provider.
type Service struct {
	orders   repository.OrderRepository
	creator  OrderCreator
	validate *validator.Validate
}

func NewService(orders repository.OrderRepository, creator OrderCreator) *Service {
	return &Service{orders: orders, creator: creator, validate: validator.New()}
}

// CreateOrder stores a new order in status created and records the
// provider's order reference on it. When the provider call fails the local
// order stays without a reference.
func (s *Service) CreateOrder(ctx context.Context, req Request) (*Created, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	order := &models.Order{
		Status:           models.OrderStatusCreated,
		TotalAmountCents: req.AmountCents,
		Currency:         strings.ToUpper(strings.TrimSpace(req.Currency)),
		CustomerEmail:    strings.TrimSpace(req.CustomerEmail),
	}
	if order.Currency == "" {
		order.Currency = "INR"
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	po, err := s.creator.CreateOrder(ctx, order)
	if err != nil {
		log.Errorf("[Checkout] Provider order creation for %s failed: %v", order.ID, err)
		return nil, fmt.Errorf("create provider order: %w", err)
	}
	if err := s.orders.SetProviderOrderID(ctx, order.ID, po.ID); err != nil {
		return nil, fmt.Errorf("store provider order id: %w", err)
	}
	ref := po.ID
	order.ProviderOrderID = &ref

	log.Infof("[Checkout] Order %s correlated with provider order %s", order.ID, po.ID)
	return &Created{Order: order, ProviderOrder: po}, nil
}

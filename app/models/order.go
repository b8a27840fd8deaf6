package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order status values. Transitions follow the graph in orderTransitions.
const (
	OrderStatusCreated         = "created"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusFailed          = "failed"
	OrderStatusRefunded        = "refunded"
)

// orderTransitions lists the statuses reachable in one step from each status.
// created -> paid is allowed because a capture may arrive without a prior
// authorization notification.
var orderTransitions = map[string][]string{
	OrderStatusCreated:         {OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusFailed},
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:            {OrderStatusRefunded},
	OrderStatusFailed:          {},
	OrderStatusRefunded:        {},
}

// Order is a checkout order correlated with a provider-side payment order.
type Order struct {
	ID                string     `gorm:"type:char(36);primaryKey" json:"id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	TotalAmountCents  int64      `gorm:"not null" json:"total_amount_cents"`
	Currency          string     `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	CustomerEmail     string     `gorm:"type:varchar(255)" json:"customer_email"`
	ProviderOrderID   *string    `gorm:"type:varchar(64);uniqueIndex" json:"provider_order_id"`
	ProviderPaymentID *string    `gorm:"type:varchar(64);index" json:"provider_payment_id"`
	PaidAt            *time.Time `gorm:"default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was set.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusCreated
	}
	return nil
}

// CanTransitionTo reports whether the order may move from its current status
// to target in a single step.
func (o *Order) CanTransitionTo(target string) bool {
	return CanTransitionOrderStatus(o.Status, target)
}

// CanTransitionOrderStatus reports whether from -> to is an edge of the order
// status graph.
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidOrderStatus reports whether s is a known order status.
func IsValidOrderStatus(s string) bool {
	_, ok := orderTransitions[s]
	return ok
}

package models

import "time"

const (
	TransactionStatusPending = "pending"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

const ProviderRazorpay = "razorpay"

// Transaction is a provider-side money movement tied to an order: a payment
// attempt, a capture or a refund. Rows are keyed by provider reference so a
// repeated notification updates instead of duplicating.
type Transaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        string    `gorm:"type:char(36);not null;index" json:"order_id"`
	Provider       string    `gorm:"type:varchar(20);not null;index:ux_transactions_provider_reference,unique,priority:1" json:"provider"`
	Reference      string    `gorm:"type:varchar(191);not null;index:ux_transactions_provider_reference,unique,priority:2" json:"reference"`
	Kind           string    `gorm:"type:varchar(20);not null" json:"kind"`
	AmountCents    int64     `gorm:"not null;default:0" json:"amount_cents"`
	Status         string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	WebhookEventID uint      `gorm:"index" json:"webhook_event_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	TransactionKindPayment = "payment"
	TransactionKindRefund  = "refund"
)

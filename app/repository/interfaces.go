package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
)

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Order, error)
	SetProviderOrderID(ctx context.Context, id, providerOrderID string) error
	Save(ctx context.Context, order *models.Order) error
}

// TransactionRepository defines the interface for provider transaction rows
type TransactionRepository interface {
	Upsert(ctx context.Context, txn *models.Transaction) error
	ListByOrderID(ctx context.Context, orderID string) ([]models.Transaction, error)
}

// WebhookEventFilter narrows a webhook event listing. Zero values match all.
type WebhookEventFilter struct {
	EventType         string
	ProcessingOutcome string
	Verification      string
	ProviderOrderRef  string
	ReceivedFrom      *time.Time
	ReceivedTo        *time.Time
}

// WebhookEventCursor marks the last row of a previous page in
// (received_at desc, id desc) order.
type WebhookEventCursor struct {
	ReceivedAt time.Time
	ID         uint
}

// WebhookEventRepository defines the interface for the webhook delivery log
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error)
	List(ctx context.Context, filter WebhookEventFilter, after *WebhookEventCursor, limit int) ([]models.WebhookEvent, error)
	Count(ctx context.Context, filter WebhookEventFilter) (int64, error)
	UpdateOutcome(ctx context.Context, id uint, outcome WebhookOutcome) error
	IncrementReplayCount(ctx context.Context, id uint) (int, error)
	ListStalePending(ctx context.Context, receivedBefore time.Time, limit int) ([]models.WebhookEvent, error)
}

// WebhookOutcome is the mutable verification and processing state of a
// delivery record.
type WebhookOutcome struct {
	Verification      string
	ComputedSignature string
	ProcessingOutcome string
	Diagnostic        string
}

// DeveloperConfigRepository defines the interface for operator-managed
// provider configuration
type DeveloperConfigRepository interface {
	Latest(ctx context.Context) (*models.DeveloperConfig, error)
	Append(ctx context.Context, cfg *models.DeveloperConfig) error
	History(ctx context.Context, limit int) ([]models.DeveloperConfig, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Order           OrderRepository
	Transaction     TransactionRepository
	WebhookEvent    WebhookEventRepository
	DeveloperConfig DeveloperConfigRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:           NewOrderRepository(db),
		Transaction:     NewTransactionRepository(db),
		WebhookEvent:    NewWebhookEventRepository(db),
		DeveloperConfig: NewDeveloperConfigRepository(db),
	}
}

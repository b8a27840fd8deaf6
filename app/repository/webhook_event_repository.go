package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) List(ctx context.Context, filter WebhookEventFilter, after *WebhookEventCursor, limit int) ([]models.WebhookEvent, error) {
	q := applyWebhookEventFilter(r.db.WithContext(ctx).Model(&models.WebhookEvent{}), filter)
	if after != nil {
		q = q.Where("(received_at < ?) OR (received_at = ? AND id < ?)", after.ReceivedAt, after.ReceivedAt, after.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var events []models.WebhookEvent
	err := q.Order("received_at DESC").Order("id DESC").Find(&events).Error
	return events, err
}

func (r *webhookEventRepository) Count(ctx context.Context, filter WebhookEventFilter) (int64, error) {
	var n int64
	err := applyWebhookEventFilter(r.db.WithContext(ctx).Model(&models.WebhookEvent{}), filter).Count(&n).Error
	return n, err
}

// UpdateOutcome overwrites the verification and processing state. The raw
// payload column is never part of the update.
func (r *webhookEventRepository) UpdateOutcome(ctx context.Context, id uint, outcome WebhookOutcome) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"verification":       outcome.Verification,
		"computed_signature": outcome.ComputedSignature,
		"processing_outcome": outcome.ProcessingOutcome,
		"diagnostic":         outcome.Diagnostic,
		"last_processed_at":  &now,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// IncrementReplayCount bumps replay_count in a single statement and returns
// the new value.
func (r *webhookEventRepository) IncrementReplayCount(ctx context.Context, id uint) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WebhookEvent{}).
			Where("id = ?", id).
			UpdateColumn("replay_count", gorm.Expr("replay_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.WebhookEvent{}).Where("id = ?", id).Pluck("replay_count", &count).Error
	})
	return count, err
}

// ListStalePending returns verified deliveries still pending that were
// received before the given time, oldest first.
func (r *webhookEventRepository) ListStalePending(ctx context.Context, receivedBefore time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	q := r.db.WithContext(ctx).
		Where("verification = ? AND processing_outcome = ? AND received_at < ?",
			models.VerificationVerified, models.ProcessingPending, receivedBefore).
		Order("received_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

func applyWebhookEventFilter(q *gorm.DB, filter WebhookEventFilter) *gorm.DB {
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.ProcessingOutcome != "" {
		q = q.Where("processing_outcome = ?", filter.ProcessingOutcome)
	}
	if filter.Verification != "" {
		q = q.Where("verification = ?", filter.Verification)
	}
	if filter.ProviderOrderRef != "" {
		q = q.Where("provider_order_ref = ?", filter.ProviderOrderRef)
	}
	if filter.ReceivedFrom != nil {
		q = q.Where("received_at >= ?", *filter.ReceivedFrom)
	}
	if filter.ReceivedTo != nil {
		q = q.Where("received_at <= ?", *filter.ReceivedTo)
	}
	return q
}

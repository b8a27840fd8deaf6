package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PayDemo/app/models"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Upsert inserts txn or, when a row with the same provider reference exists,
// refreshes its status, amount and source event.
func (r *transactionRepository) Upsert(ctx context.Context, txn *models.Transaction) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "reference"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"amount_cents",
			"webhook_event_id",
			"updated_at",
		}),
	}).Create(txn).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("provider = ? AND reference = ?", txn.Provider, txn.Reference).First(txn).Error
}

func (r *transactionRepository) ListByOrderID(ctx context.Context, orderID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&txns).Error
	return txns, err
}

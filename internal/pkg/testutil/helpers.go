package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/database"
)

// SetupTestDB returns a migrated in-memory SQLite database private to the
// calling test. A single connection keeps the memory database alive and
// serializes access the way row locks would on MySQL.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateTestOrder inserts an order in status created correlated with
// providerOrderID.
func CreateTestOrder(t *testing.T, db *gorm.DB, providerOrderID string, amountCents int64) *models.Order {
	t.Helper()

	order := &models.Order{
		Status:           models.OrderStatusCreated,
		TotalAmountCents: amountCents,
		Currency:         "INR",
	}
	if providerOrderID != "" {
		ref := providerOrderID
		order.ProviderOrderID = &ref
	}
	require.NoError(t, db.WithContext(context.Background()).Create(order).Error)
	return order
}

// ReloadOrder reads the current state of an order.
func ReloadOrder(t *testing.T, db *gorm.DB, id string) *models.Order {
	t.Helper()

	var order models.Order
	require.NoError(t, db.Where("id = ?", id).First(&order).Error)
	return &order
}

// PaymentPayload builds a provider notification body for a payment event.
func PaymentPayload(event, providerOrderID, paymentID, status string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","account_id":"acc_test","event":%q,"contains":["payment"],"payload":{"payment":{"entity":{"id":%q,"entity":"payment","amount":%d,"currency":"INR","status":%q,"order_id":%q}}},"created_at":%d}`,
		event, paymentID, amount, status, providerOrderID, time.Now().Unix(),
	))
}

// OrderPaidPayload builds an order.paid notification body.
func OrderPaidPayload(providerOrderID string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","event":"order.paid","contains":["order"],"payload":{"order":{"entity":{"id":%q,"entity":"order","amount":%d,"amount_paid":%d,"status":"paid"}}}}`,
		providerOrderID, amount, amount,
	))
}

// RefundPayload builds a refund notification body.
func RefundPayload(event, paymentID, refundID string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","event":%q,"contains":["refund"],"payload":{"refund":{"entity":{"id":%q,"entity":"refund","amount":%d,"payment_id":%q,"status":"processed"}}}}`,
		event, refundID, amount, paymentID,
	))
}

// RandomRef returns a provider-style reference with the given prefix.
func RandomRef(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

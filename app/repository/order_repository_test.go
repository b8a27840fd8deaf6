package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/testutil"
)

func TestOrderRepository_Lookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)
	ctx := context.Background()

	order := &models.Order{TotalAmountCents: 49900}
	require.NoError(t, repo.Create(ctx, order))
	assert.Len(t, order.ID, 36)
	assert.Equal(t, models.OrderStatusCreated, order.Status)

	require.NoError(t, repo.SetProviderOrderID(ctx, order.ID, "order_abc"))

	byRef, err := repo.GetByProviderOrderID(ctx, "order_abc")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byRef.ID)

	pay := "pay_1"
	byRef.ProviderPaymentID = &pay
	byRef.Status = models.OrderStatusPaid
	require.NoError(t, repo.Save(ctx, byRef))

	byPayment, err := repo.GetByProviderPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, byPayment.Status)

	locked, err := repo.GetByIDForUpdate(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, locked.ID)

	_, err = repo.GetByProviderOrderID(ctx, "order_missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestTransactionRepository_UpsertByReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewTransactionRepository(db)
	ctx := context.Background()
	order := testutil.CreateTestOrder(t, db, "order_txn", 1000)

	first := &models.Transaction{
		OrderID:     order.ID,
		Provider:    models.ProviderRazorpay,
		Reference:   "pay_1",
		Kind:        models.TransactionKindPayment,
		AmountCents: 1000,
		Status:      models.TransactionStatusPending,
	}
	require.NoError(t, repo.Upsert(ctx, first))
	require.NotZero(t, first.ID)

	second := &models.Transaction{
		OrderID:     order.ID,
		Provider:    models.ProviderRazorpay,
		Reference:   "pay_1",
		Kind:        models.TransactionKindPayment,
		AmountCents: 1000,
		Status:      models.TransactionStatusSuccess,
	}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	txns, err := repo.ListByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionStatusSuccess, txns[0].Status)
}

func TestDeveloperConfigRepository_LatestWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDeveloperConfigRepository(db)
	ctx := context.Background()

	none, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.Append(ctx, &models.DeveloperConfig{WebhookSecret: "one", UpdatedBy: "op"}))
	require.NoError(t, repo.Append(ctx, &models.DeveloperConfig{WebhookSecret: "two", UpdatedBy: "op"}))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", latest.WebhookSecret)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

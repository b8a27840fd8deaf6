package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (r *recordingNotifier) NotifyPaid(ctx context.Context, order *models.Order, txn *models.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order.ID)
}

func storeVerified(t *testing.T, db *gorm.DB, payload []byte) *models.WebhookEvent {
	t.Helper()
	ev := &models.WebhookEvent{
		Provider:          models.ProviderRazorpay,
		ProviderEventID:   testutil.RandomRef("evt"),
		RawPayload:        payload,
		Verification:      models.VerificationVerified,
		ProcessingOutcome: models.ProcessingPending,
		ReceivedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.Create(ev).Error)
	return ev
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	db := testutil.SetupTestDB(t)
	return NewEngine(db, NewLocalLocker(), 2*time.Second), db
}

func TestEngine_AuthorizeCaptureReplayScenario(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	order := testutil.CreateTestOrder(t, db, "order_A", 49900)

	authorized := storeVerified(t, db, testutil.PaymentPayload("payment.authorized", "order_A", "pay_1", "authorized", 49900))
	res, err := engine.Apply(ctx, authorized)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingApplied, res.Outcome)
	assert.Equal(t, models.OrderStatusAwaitingPayment, testutil.ReloadOrder(t, db, order.ID).Status)

	captured := storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_A", "pay_1", "captured", 49900))
	res, err = engine.Apply(ctx, captured)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingApplied, res.Outcome)
	assert.Equal(t, models.OrderStatusAwaitingPayment, res.PreviousStatus)

	reloaded := testutil.ReloadOrder(t, db, order.ID)
	assert.Equal(t, models.OrderStatusPaid, reloaded.Status)
	require.NotNil(t, reloaded.ProviderPaymentID)
	assert.Equal(t, "pay_1", *reloaded.ProviderPaymentID)
	assert.NotNil(t, reloaded.PaidAt)

	// authorization again after capture
	res, err = engine.Apply(ctx, authorized)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingAppliedNoop, res.Outcome)
	assert.Equal(t, DiagStaleTransition, res.Diagnostic)
	assert.Equal(t, models.OrderStatusPaid, testutil.ReloadOrder(t, db, order.ID).Status)

	var txns []models.Transaction
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&txns).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, "pay_1", txns[0].Reference)
	assert.Equal(t, models.TransactionStatusSuccess, txns[0].Status)
	assert.EqualValues(t, 49900, txns[0].AmountCents)
}

func TestEngine_IdempotentRepeatedApplication(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	order := testutil.CreateTestOrder(t, db, "order_B", 1000)
	ev := storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_B", "pay_2", "captured", 1000))

	for i := 0; i < 5; i++ {
		res, err := engine.Apply(ctx, ev)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, models.ProcessingApplied, res.Outcome)
		} else {
			assert.Equal(t, models.ProcessingAppliedNoop, res.Outcome)
		}
		assert.Equal(t, models.OrderStatusPaid, testutil.ReloadOrder(t, db, order.ID).Status)
	}
}

func TestEngine_OutOfOrderDeliveriesConverge(t *testing.T) {
	payloads := func(ref string) [][]byte {
		return [][]byte{
			testutil.PaymentPayload("payment.authorized", ref, "pay_x", "authorized", 500),
			testutil.PaymentPayload("payment.captured", ref, "pay_x", "captured", 500),
		}
	}

	orders := [][]int{{0, 1}, {1, 0}, {1, 0, 1, 0}, {0, 0, 1, 1}}
	for _, seq := range orders {
		engine, db := newTestEngine(t)
		order := testutil.CreateTestOrder(t, db, "order_C", 500)
		p := payloads("order_C")
		for _, idx := range seq {
			_, err := engine.Apply(context.Background(), storeVerified(t, db, p[idx]))
			require.NoError(t, err)
		}
		assert.Equal(t, models.OrderStatusPaid, testutil.ReloadOrder(t, db, order.ID).Status, "sequence %v", seq)
	}
}

func TestEngine_NonApplyingOutcomes(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	testutil.CreateTestOrder(t, db, "order_D", 100)

	tests := []struct {
		name    string
		payload []byte
		outcome string
		diag    string
	}{
		{"unsupported event", []byte(`{"event":"payment.dispute.created","payload":{}}`), models.ProcessingAppliedNoop, DiagUnsupportedEvent},
		{"unknown order", testutil.PaymentPayload("payment.captured", "order_missing", "pay_m", "captured", 100), models.ProcessingRejected, DiagUnknownOrder},
		{"no order reference", []byte(`{"event":"payment.captured","payload":{}}`), models.ProcessingRejected, DiagUnknownOrder},
		{"not json", []byte(`not-json`), models.ProcessingRejected, DiagMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Apply(ctx, storeVerified(t, db, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.diag, res.Diagnostic)
		})
	}
}

func TestEngine_RejectsUnverifiedEvent(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Apply(context.Background(), &models.WebhookEvent{Verification: models.VerificationUnverified})
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestEngine_FailedThenCapturedIsStale(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	order := testutil.CreateTestOrder(t, db, "order_E", 100)

	res, err := engine.Apply(ctx, storeVerified(t, db, testutil.PaymentPayload("payment.failed", "order_E", "pay_f", "failed", 100)))
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingApplied, res.Outcome)

	res, err = engine.Apply(ctx, storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_E", "pay_f", "captured", 100)))
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingAppliedNoop, res.Outcome)
	assert.Equal(t, models.OrderStatusFailed, testutil.ReloadOrder(t, db, order.ID).Status)
}

func TestEngine_RefundByPaymentReference(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	order := testutil.CreateTestOrder(t, db, "order_F", 2500)

	_, err := engine.Apply(ctx, storeVerified(t, db, testutil.OrderPaidPayload("order_F", 2500)))
	require.NoError(t, err)
	_, err = engine.Apply(ctx, storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_F", "pay_F", "captured", 2500)))
	require.NoError(t, err)

	// the capture after order.paid was a no-op, so the payment id was never stored
	reloaded := testutil.ReloadOrder(t, db, order.ID)
	assert.Equal(t, models.OrderStatusPaid, reloaded.Status)

	ref := "pay_F"
	reloaded.ProviderPaymentID = &ref
	require.NoError(t, db.Save(reloaded).Error)

	res, err := engine.Apply(ctx, storeVerified(t, db, testutil.RefundPayload("refund.processed", "pay_F", "rfnd_1", 2500)))
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingApplied, res.Outcome)
	assert.Equal(t, models.OrderStatusRefunded, testutil.ReloadOrder(t, db, order.ID).Status)

	var refund models.Transaction
	require.NoError(t, db.Where("reference = ?", "rfnd_1").First(&refund).Error)
	assert.Equal(t, models.TransactionKindRefund, refund.Kind)

	var orderTxn models.Transaction
	require.NoError(t, db.Where("reference = ?", "order-order_F").First(&orderTxn).Error)
	assert.Equal(t, models.TransactionStatusSuccess, orderTxn.Status)
}

func TestEngine_ConcurrentCapturesApplyOnce(t *testing.T) {
	engine, db := newTestEngine(t)
	notifier := &recordingNotifier{}
	engine.SetPaidNotifier(notifier)
	order := testutil.CreateTestOrder(t, db, "order_G", 700)

	first := storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_G", "pay_g", "captured", 700))
	second := storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_G", "pay_g", "captured", 700))

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	for i, ev := range []*models.WebhookEvent{first, second} {
		wg.Add(1)
		go func(i int, ev *models.WebhookEvent) {
			defer wg.Done()
			results[i], errs[i] = engine.Apply(context.Background(), ev)
		}(i, ev)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	outcomes := []string{results[0].Outcome, results[1].Outcome}
	assert.ElementsMatch(t, []string{models.ProcessingApplied, models.ProcessingAppliedNoop}, outcomes)
	assert.Equal(t, models.OrderStatusPaid, testutil.ReloadOrder(t, db, order.ID).Status)
	assert.Len(t, notifier.orders, 1)
}

func TestEngine_LockTimeoutLeavesOrderUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	locker := NewLocalLocker()
	engine := NewEngine(db, locker, 30*time.Millisecond)
	order := testutil.CreateTestOrder(t, db, "order_H", 100)

	unlock, err := locker.Lock(context.Background(), order.ID, 0)
	require.NoError(t, err)
	defer unlock()

	_, err = engine.Apply(context.Background(), storeVerified(t, db, testutil.PaymentPayload("payment.captured", "order_H", "pay_h", "captured", 100)))
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, models.OrderStatusCreated, testutil.ReloadOrder(t, db, order.ID).Status)
}

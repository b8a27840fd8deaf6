package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
)

// Diagnostics written to the event record for non-applied outcomes.
const (
	DiagUnsupportedEvent = "unsupported event type"
	DiagUnknownOrder     = "unknown order reference"
	DiagStaleTransition  = "stale or out-of-order event"
	DiagMalformedPayload = "malformed payload"
)

var (
	ErrNotVerified  = errors.New("event is not verified")
	ErrUnknownOrder = errors.New(DiagUnknownOrder)
)

// Result describes what applying one event did.
type Result struct {
	Outcome        string
	Diagnostic     string
	EventType      EventType
	OrderID        string
	PreviousStatus string
	Status         string
}

// Applied reports whether the event changed the order.
func (r Result) Applied() bool {
	return r.Outcome == models.ProcessingApplied
}

// PaidNotifier is told about orders that just became paid. It runs after the
// transition committed and must not block for long.
type PaidNotifier interface {
	NotifyPaid(ctx context.Context, order *models.Order, txn *models.Transaction)
}

// Engine maps verified provider events onto order state transitions.
// Applying the same event any number of times, in any interleaving with
// other events for the order, converges to the state a single in-order
// application would produce.
type Engine struct {
	db       *gorm.DB
	locker   OrderLocker
	lockWait time.Duration
	notifier PaidNotifier
}

// NewEngine creates an engine. lockWait bounds how long Apply waits for the
// per-order lock.
func NewEngine(db *gorm.DB, locker OrderLocker, lockWait time.Duration) *Engine {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Engine{db: db, locker: locker, lockWait: lockWait}
}

// SetPaidNotifier installs n to be called on transitions into paid.
func (e *Engine) SetPaidNotifier(n PaidNotifier) {
	e.notifier = n
}

// Apply reconciles a verified event, waiting at most the configured lock
// wait for the order. ErrLockTimeout leaves nothing changed.
func (e *Engine) Apply(ctx context.Context, ev *models.WebhookEvent) (Result, error) {
	return e.ApplyWithin(ctx, ev, e.lockWait)
}

// ApplyWithin is Apply with an explicit lock wait. A wait of zero waits as
// long as ctx allows.
func (e *Engine) ApplyWithin(ctx context.Context, ev *models.WebhookEvent, wait time.Duration) (Result, error) {
	if ev == nil || !ev.IsVerified() {
		return Result{}, ErrNotVerified
	}

	n, err := ParseNotification(ev.RawPayload)
	if err != nil {
		return Result{Outcome: models.ProcessingRejected, Diagnostic: DiagMalformedPayload}, nil
	}
	res := Result{EventType: n.Type}

	target, ok := n.Type.TargetStatus()
	if !ok {
		res.Outcome = models.ProcessingAppliedNoop
		res.Diagnostic = DiagUnsupportedEvent
		return res, nil
	}

	orderID, err := e.resolveOrderID(ctx, n)
	if err != nil {
		if errors.Is(err, ErrUnknownOrder) {
			res.Outcome = models.ProcessingRejected
			res.Diagnostic = DiagUnknownOrder
			return res, nil
		}
		return res, err
	}
	res.OrderID = orderID

	unlock, err := e.locker.Lock(ctx, orderID, wait)
	if err != nil {
		return res, err
	}
	defer unlock()

	var paidOrder *models.Order
	var paidTxn *models.Transaction

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository(tx)
		order, err := orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %s: %w", orderID, err)
		}
		res.PreviousStatus = order.Status
		res.Status = order.Status

		if !transitionAllowed(n.Type, order.Status, target) {
			res.Outcome = models.ProcessingAppliedNoop
			res.Diagnostic = DiagStaleTransition
			return nil
		}

		now := time.Now().UTC()
		order.Status = target
		if n.ProviderPaymentID != "" && n.Type != EventRefundProcessed &&
			(order.ProviderPaymentID == nil || *order.ProviderPaymentID == "") {
			ref := n.ProviderPaymentID
			order.ProviderPaymentID = &ref
		}
		if target == models.OrderStatusPaid {
			order.PaidAt = &now
		}
		if err := orders.Save(ctx, order); err != nil {
			return fmt.Errorf("save order %s: %w", orderID, err)
		}

		txn := buildTransaction(n, ev, order)
		if err := repository.NewTransactionRepository(tx).Upsert(ctx, txn); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", txn.Reference, err)
		}

		res.Outcome = models.ProcessingApplied
		res.Status = order.Status
		if target == models.OrderStatusPaid {
			paidOrder, paidTxn = order, txn
		}
		return nil
	})
	if err != nil {
		return Result{EventType: n.Type, OrderID: orderID}, err
	}

	if res.Applied() {
		log.Infof("[Reconcile] Order %s %s -> %s via %s (event record %d)", orderID, res.PreviousStatus, res.Status, n.Type, ev.ID)
	} else {
		log.Infof("[Reconcile] Order %s stays %s, %s %s (event record %d)", orderID, res.Status, n.Type, res.Diagnostic, ev.ID)
	}
	if paidOrder != nil && e.notifier != nil {
		e.notifier.NotifyPaid(ctx, paidOrder, paidTxn)
	}
	return res, nil
}

// resolveOrderID finds the local order an event refers to. Refunds may only
// carry the payment reference.
func (e *Engine) resolveOrderID(ctx context.Context, n Notification) (string, error) {
	orders := repository.NewOrderRepository(e.db)

	var order *models.Order
	var err error
	switch {
	case n.ProviderOrderID != "":
		order, err = orders.GetByProviderOrderID(ctx, n.ProviderOrderID)
	case n.ProviderPaymentID != "":
		order, err = orders.GetByProviderPaymentID(ctx, n.ProviderPaymentID)
	default:
		return "", ErrUnknownOrder
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnknownOrder
		}
		return "", fmt.Errorf("resolve order: %w", err)
	}
	return order.ID, nil
}

// transitionAllowed applies the order graph plus the authorization rule:
// an authorization only ever moves a freshly created order.
func transitionAllowed(t EventType, current, target string) bool {
	if t == EventPaymentAuthorized {
		return current == models.OrderStatusCreated
	}
	return models.CanTransitionOrderStatus(current, target)
}

func buildTransaction(n Notification, ev *models.WebhookEvent, order *models.Order) *models.Transaction {
	txn := &models.Transaction{
		OrderID:        order.ID,
		Provider:       models.ProviderRazorpay,
		Kind:           models.TransactionKindPayment,
		AmountCents:    n.AmountCents,
		WebhookEventID: ev.ID,
	}

	switch n.Type {
	case EventPaymentAuthorized:
		txn.Status = models.TransactionStatusPending
	case EventPaymentFailed:
		txn.Status = models.TransactionStatusFailed
	default:
		txn.Status = models.TransactionStatusSuccess
	}

	switch {
	case n.Type == EventRefundProcessed:
		txn.Kind = models.TransactionKindRefund
		txn.Reference = n.RefundID
		if txn.Reference == "" {
			txn.Reference = fmt.Sprintf("refund-event-%d", ev.ID)
		}
	case n.Type == EventOrderPaid && n.ProviderPaymentID == "":
		txn.Reference = "order-" + n.ProviderOrderID
	case n.ProviderPaymentID != "":
		txn.Reference = n.ProviderPaymentID
	default:
		txn.Reference = fmt.Sprintf("event-%d", ev.ID)
	}
	if txn.AmountCents == 0 {
		txn.AmountCents = order.TotalAmountCents
	}
	return txn
}

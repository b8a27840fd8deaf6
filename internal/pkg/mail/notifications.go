package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
)

// SendFunc delivers one message.
type SendFunc func(to, subject, body string) error

// Notifier sends operator alerts and payment confirmations. Sends run in the
// background and never fail the caller.
type Notifier struct {
	send     SendFunc
	support  string
	siteURL  string
	enabled  bool
	dispatch func(func())
}

// NewNotifierFromEnv builds a Notifier on SMTP. Alerts are off in dev.
func NewNotifierFromEnv() *Notifier {
	return &Notifier{
		send:     SendMail,
		support:  env.GetEnv("SUPPORT_EMAIL", ""),
		siteURL:  strings.TrimRight(env.GetEnv("SITE_URL", "http://localhost:4000"), "/"),
		enabled:  !env.IsDev(),
		dispatch: func(f func()) { go f() },
	}
}

// NewNotifier builds a Notifier with an explicit sender, mostly for tests.
// Messages are sent synchronously.
func NewNotifier(send SendFunc, support, siteURL string) *Notifier {
	return &Notifier{
		send:     send,
		support:  support,
		siteURL:  strings.TrimRight(siteURL, "/"),
		enabled:  true,
		dispatch: func(f func()) { f() },
	}
}

func (n *Notifier) deliver(to, subject, body string) {
	if !n.enabled || to == "" {
		return
	}
	n.dispatch(func() {
		if err := n.send(to, subject, body); err != nil {
			log.Warnf("[Mail] Failed to send %q to %s: %v", subject, to, err)
		}
	})
}

// VerificationFailed alerts support about a delivery whose signature did not
// check out.
func (n *Notifier) VerificationFailed(ev *models.WebhookEvent) {
	if n == nil {
		return
	}
	subject := fmt.Sprintf("[PayDemo] Webhook signature %s (record %d)", ev.Verification, ev.ID)
	body := fmt.Sprintf(
		"A webhook delivery failed signature verification.\n\n"+
			"Record: %d\nEvent: %s\nVerification: %s\nReceived signature: %s\nComputed signature: %s\nSource IP: %s\nReceived at: %s\n\n"+
			"Inspect: %s/api/v1/webhooks/events/%d\n",
		ev.ID, ev.EventType, ev.Verification, ev.ReceivedSignature, ev.ComputedSignature, ev.SourceIP,
		ev.ReceivedAt.Format("2006-01-02 15:04:05 MST"), n.siteURL, ev.ID,
	)
	n.deliver(n.support, subject, body)
}

// ProcessingFailed alerts support about a verified delivery that could not
// be reconciled because of an internal error.
func (n *Notifier) ProcessingFailed(ev *models.WebhookEvent, cause error) {
	if n == nil {
		return
	}
	subject := fmt.Sprintf("[PayDemo] Webhook processing failed (record %d)", ev.ID)
	body := fmt.Sprintf(
		"A verified webhook delivery could not be processed.\n\n"+
			"Record: %d\nEvent: %s\nOrder reference: %s\nError: %v\n\n"+
			"The record stays pending and is retried automatically. Replay: POST %s/api/v1/webhooks/events/%d/replay\n",
		ev.ID, ev.EventType, ev.ProviderOrderRef, cause, n.siteURL, ev.ID,
	)
	n.deliver(n.support, subject, body)
}

// NotifyPaid confirms a payment to the customer and to support.
func (n *Notifier) NotifyPaid(ctx context.Context, order *models.Order, txn *models.Transaction) {
	if n == nil {
		return
	}
	amount := formatAmount(order.TotalAmountCents, order.Currency)
	reference := ""
	if txn != nil {
		reference = txn.Reference
	}

	n.deliver(order.CustomerEmail,
		fmt.Sprintf("Payment Confirmation - Order #%s", order.ID),
		fmt.Sprintf("Thank you for your payment.\n\nOrder: %s\nAmount: %s\nPayment reference: %s\n", order.ID, amount, reference),
	)
	n.deliver(n.support,
		fmt.Sprintf("[PayDemo] New Payment Received - Order #%s", order.ID),
		fmt.Sprintf("Order %s was paid.\n\nAmount: %s\nPayment reference: %s\nCustomer: %s\n", order.ID, amount, reference, order.CustomerEmail),
	)
}

func formatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

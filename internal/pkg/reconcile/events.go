package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ManuelReschke/PayDemo/app/models"
)

// EventType is the closed set of provider notifications the engine acts on.
// Anything else parses to EventUnsupported.
type EventType int

const (
	EventUnsupported EventType = iota
	EventPaymentAuthorized
	EventPaymentCaptured
	EventPaymentFailed
	EventOrderPaid
	EventRefundProcessed
)

var eventTypeNames = map[string]EventType{
	"payment.authorized": EventPaymentAuthorized,
	"payment.captured":   EventPaymentCaptured,
	"payment.failed":     EventPaymentFailed,
	"order.paid":         EventOrderPaid,
	"refund.processed":   EventRefundProcessed,
}

// ParseEventType maps a provider event name to an EventType.
func ParseEventType(name string) EventType {
	if t, ok := eventTypeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return EventUnsupported
}

func (t EventType) String() string {
	for name, v := range eventTypeNames {
		if v == t {
			return name
		}
	}
	return "unsupported"
}

// TargetStatus is the order status the event moves an order to.
func (t EventType) TargetStatus() (string, bool) {
	switch t {
	case EventPaymentAuthorized:
		return models.OrderStatusAwaitingPayment, true
	case EventPaymentCaptured, EventOrderPaid:
		return models.OrderStatusPaid, true
	case EventPaymentFailed:
		return models.OrderStatusFailed, true
	case EventRefundProcessed:
		return models.OrderStatusRefunded, true
	}
	return "", false
}

// Notification is the subset of a provider notification body the engine
// needs.
type Notification struct {
	Type              EventType
	RawType           string
	ProviderOrderID   string
	ProviderPaymentID string
	RefundID          string
	AmountCents       int64
}

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
			} `json:"entity"`
		} `json:"refund"`
		Order *struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseNotification decodes a raw notification body. It fails only when the
// body is not a JSON object; unknown event names yield EventUnsupported.
func ParseNotification(raw []byte) (Notification, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}

	n := Notification{
		Type:    ParseEventType(env.Event),
		RawType: strings.TrimSpace(env.Event),
	}
	if p := env.Payload.Payment; p != nil {
		n.ProviderOrderID = p.Entity.OrderID
		n.ProviderPaymentID = p.Entity.ID
		n.AmountCents = p.Entity.Amount
	}
	if o := env.Payload.Order; o != nil {
		if n.ProviderOrderID == "" {
			n.ProviderOrderID = o.Entity.ID
		}
		if n.AmountCents == 0 {
			n.AmountCents = o.Entity.Amount
		}
	}
	if r := env.Payload.Refund; r != nil {
		n.RefundID = r.Entity.ID
		if n.ProviderPaymentID == "" {
			n.ProviderPaymentID = r.Entity.PaymentID
		}
		// refund amount, not the original payment amount
		n.AmountCents = r.Entity.Amount
	}
	return n, nil
}

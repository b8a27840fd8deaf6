package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/metrics"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/signature"
)

const (
	DiagSignatureMismatch    = "signature mismatch"
	DiagMalformedSignature   = "malformed or missing signature"
	DiagConfigurationMissing = "configuration missing"
	DiagOrderBusy            = "order busy, deferred for retry"
)

// RequestTimeout bounds the handling of one inbound delivery. Pending
// records younger than this may still belong to a live request.
const RequestTimeout = 15 * time.Second

// ErrStorageUnavailable wraps failures that should make the provider retry.
var ErrStorageUnavailable = errors.New("storage unavailable")

// SecretResolver yields the active signing secret.
type SecretResolver interface {
	CurrentSecret(ctx context.Context) ([]byte, error)
}

// Reconciler applies verified events to orders.
type Reconciler interface {
	Apply(ctx context.Context, ev *models.WebhookEvent) (reconcile.Result, error)
}

// Alerter is told about deliveries that need operator attention.
type Alerter interface {
	VerificationFailed(ev *models.WebhookEvent)
	ProcessingFailed(ev *models.WebhookEvent, cause error)
}

// Assessment is the stored form of a signature check.
type Assessment struct {
	Verification string
	Computed     string
	Diagnostic   string
}

// Assess verifies raw against receivedSignature and maps the result onto
// the stored verification values.
func Assess(raw []byte, receivedSignature string, secret []byte) Assessment {
	res := signature.Verify(raw, receivedSignature, secret)
	a := Assessment{Computed: res.Computed}
	switch res.Outcome {
	case signature.Verified:
		a.Verification = models.VerificationVerified
	case signature.Mismatched:
		a.Verification = models.VerificationUnverified
		a.Diagnostic = DiagSignatureMismatch
	default:
		a.Verification = models.VerificationMalformed
		a.Diagnostic = DiagMalformedSignature
	}
	return a
}

// Pipeline handles one inbound delivery: verify, record, reconcile.
type Pipeline struct {
	resolver SecretResolver
	store    *eventstore.Store
	engine   Reconciler
	alerts   Alerter
}

// NewPipeline wires the inbound webhook path. alerts may be nil.
func NewPipeline(resolver SecretResolver, store *eventstore.Store, engine Reconciler, alerts Alerter) *Pipeline {
	return &Pipeline{resolver: resolver, store: store, engine: engine, alerts: alerts}
}

// Handle processes a delivery and returns the stored record. A nil error
// means the provider must not retry, whatever the outcome on the record.
// Errors wrap secrets.ErrConfigurationMissing, reconcile.ErrLockTimeout or
// ErrStorageUnavailable; the record, when one was written, is returned too.
func (p *Pipeline) Handle(ctx context.Context, d eventstore.Delivery) (*models.WebhookEvent, error) {
	start := time.Now()
	defer func() { metrics.WebhookProcessingDuration.Observe(time.Since(start).Seconds()) }()

	secret, err := p.resolver.CurrentSecret(ctx)
	if err != nil {
		if !errors.Is(err, secrets.ErrConfigurationMissing) {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		log.Errorf("[Webhook] No webhook secret configured, delivery cannot be verified")
		d.Verification = models.VerificationUnverified
		d.ProcessingOutcome = models.ProcessingRejected
		d.Diagnostic = DiagConfigurationMissing
		ev, rerr := p.store.Record(ctx, d)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, rerr)
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues(models.VerificationUnverified).Inc()
		return ev, err
	}

	a := Assess(d.RawPayload, d.ReceivedSignature, secret)
	d.ComputedSignature = a.Computed
	d.Verification = a.Verification
	d.Diagnostic = a.Diagnostic
	if a.Verification == models.VerificationVerified {
		d.ProcessingOutcome = models.ProcessingPending
	} else {
		d.ProcessingOutcome = models.ProcessingRejected
	}

	ev, err := p.store.Record(ctx, d)
	if err != nil {
		log.Errorf("[Webhook] Failed to record delivery: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues(ev.Verification).Inc()

	switch ev.Verification {
	case models.VerificationUnverified:
		log.Warnf("[Webhook] Signature mismatch for record %d (event %q, from %s)", ev.ID, ev.EventType, ev.SourceIP)
		p.alertVerification(ev)
		return ev, nil
	case models.VerificationMalformed:
		log.Warnf("[Webhook] Malformed or missing signature header for record %d (from %s)", ev.ID, ev.SourceIP)
		p.alertVerification(ev)
		return ev, nil
	}

	res, err := p.engine.Apply(ctx, ev)
	if err != nil {
		if errors.Is(err, reconcile.ErrLockTimeout) {
			metrics.OrderLockTimeoutsTotal.Inc()
			log.Warnf("[Webhook] Order %s busy, record %d left pending", res.OrderID, ev.ID)
			p.saveOutcome(ctx, ev, repository.WebhookOutcome{
				Verification:      ev.Verification,
				ComputedSignature: ev.ComputedSignature,
				ProcessingOutcome: models.ProcessingPending,
				Diagnostic:        DiagOrderBusy,
			})
			return ev, err
		}
		log.Errorf("[Webhook] Reconciliation of record %d failed: %v", ev.ID, err)
		if p.alerts != nil {
			p.alerts.ProcessingFailed(ev, err)
		}
		return ev, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	metrics.ReconciliationOutcomesTotal.WithLabelValues("webhook", res.Outcome).Inc()
	outcome := repository.WebhookOutcome{
		Verification:      ev.Verification,
		ComputedSignature: ev.ComputedSignature,
		ProcessingOutcome: res.Outcome,
		Diagnostic:        res.Diagnostic,
	}
	if err := p.store.SaveOutcome(ctx, ev.ID, outcome); err != nil {
		log.Errorf("[Webhook] Failed to store outcome of record %d: %v", ev.ID, err)
		return ev, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	ev.ProcessingOutcome = res.Outcome
	ev.Diagnostic = res.Diagnostic
	return ev, nil
}

func (p *Pipeline) alertVerification(ev *models.WebhookEvent) {
	if p.alerts != nil {
		p.alerts.VerificationFailed(ev)
	}
}

func (p *Pipeline) saveOutcome(ctx context.Context, ev *models.WebhookEvent, outcome repository.WebhookOutcome) {
	if err := p.store.SaveOutcome(ctx, ev.ID, outcome); err != nil {
		log.Errorf("[Webhook] Failed to store outcome of record %d: %v", ev.ID, err)
		return
	}
	ev.ProcessingOutcome = outcome.ProcessingOutcome
	ev.Diagnostic = outcome.Diagnostic
}

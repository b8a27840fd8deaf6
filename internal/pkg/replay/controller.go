package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/ingest"
	"github.com/ManuelReschke/PayDemo/internal/pkg/metrics"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// Reconciler applies a verified event, waiting for the order lock as long
// as wait allows (zero means as long as ctx lives).
type Reconciler interface {
	ApplyWithin(ctx context.Context, ev *models.WebhookEvent, wait time.Duration) (reconcile.Result, error)
}

// Result is what an operator sees after a replay.
type Result struct {
	EventID           uint   `json:"event_id"`
	Verification      string `json:"verification"`
	ProcessingOutcome string `json:"processing_outcome"`
	Diagnostic        string `json:"diagnostic"`
	ReplayCount       int    `json:"replay_count"`
	OrderID           string `json:"order_id,omitempty"`
	OrderStatus       string `json:"order_status,omitempty"`
}

// Controller re-runs stored deliveries through verification and
// reconciliation on behalf of privileged operators.
type Controller struct {
	store    *eventstore.Store
	resolver ingest.SecretResolver
	engine   Reconciler
}

// NewController creates a replay controller.
func NewController(store *eventstore.Store, resolver ingest.SecretResolver, engine Reconciler) *Controller {
	return &Controller{store: store, resolver: resolver, engine: engine}
}

// Replay re-verifies the stored payload against the currently active secret
// and, when it verifies, reconciles it again. The replay count grows by one
// on every authorized call, whatever the outcome, and the new outcome
// replaces the previous one on the same record.
func (c *Controller) Replay(ctx context.Context, eventID uint, cap usercontext.Capability) (Result, error) {
	if err := cap.RequirePrivileged(); err != nil {
		log.Warnf("[Replay] Rejected replay of record %d for %q: not privileged", eventID, cap.Operator)
		return Result{}, err
	}

	ev, err := c.store.Get(ctx, eventID)
	if err != nil {
		return Result{}, err
	}

	count, err := c.store.IncrementReplayCount(ctx, ev.ID)
	if err != nil {
		return Result{}, fmt.Errorf("increment replay count: %w", err)
	}
	metrics.WebhookReplaysTotal.Inc()
	res := Result{EventID: ev.ID, ReplayCount: count}

	secret, err := c.resolver.CurrentSecret(ctx)
	if err != nil {
		if !errors.Is(err, secrets.ErrConfigurationMissing) {
			return res, err
		}
		res.Verification = models.VerificationUnverified
		res.ProcessingOutcome = models.ProcessingRejected
		res.Diagnostic = ingest.DiagConfigurationMissing
		if serr := c.save(ctx, ev.ID, res, ""); serr != nil {
			return res, serr
		}
		log.Errorf("[Replay] Record %d could not be verified: no webhook secret configured", ev.ID)
		return res, err
	}

	a := ingest.Assess(ev.RawPayload, ev.ReceivedSignature, secret)
	res.Verification = a.Verification
	if a.Verification != models.VerificationVerified {
		res.ProcessingOutcome = models.ProcessingRejected
		res.Diagnostic = a.Diagnostic
		log.Warnf("[Replay] Record %d failed verification on replay: %s", ev.ID, a.Diagnostic)
		return res, c.save(ctx, ev.ID, res, a.Computed)
	}

	ev.Verification = models.VerificationVerified
	applied, err := c.engine.ApplyWithin(ctx, ev, 0)
	if err != nil {
		res.ProcessingOutcome = models.ProcessingPending
		res.Diagnostic = "replay interrupted: " + err.Error()
		if serr := c.save(context.WithoutCancel(ctx), ev.ID, res, a.Computed); serr != nil {
			log.Errorf("[Replay] Failed to store outcome of record %d: %v", ev.ID, serr)
		}
		return res, err
	}

	res.ProcessingOutcome = applied.Outcome
	res.Diagnostic = applied.Diagnostic
	res.OrderID = applied.OrderID
	res.OrderStatus = applied.Status
	metrics.ReconciliationOutcomesTotal.WithLabelValues("replay", applied.Outcome).Inc()
	log.Infof("[Replay] %s replayed record %d: %s %s (replay #%d)", cap.Operator, ev.ID, applied.Outcome, applied.Diagnostic, count)

	return res, c.save(ctx, ev.ID, res, a.Computed)
}

func (c *Controller) save(ctx context.Context, id uint, res Result, computed string) error {
	return c.store.SaveOutcome(ctx, id, repository.WebhookOutcome{
		Verification:      res.Verification,
		ComputedSignature: computed,
		ProcessingOutcome: res.ProcessingOutcome,
		Diagnostic:        res.Diagnostic,
	})
}

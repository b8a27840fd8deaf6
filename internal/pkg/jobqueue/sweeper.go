package jobqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/metrics"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
)

const (
	defaultSweepInterval = time.Minute
	defaultMinAge        = 30 * time.Second
	sweepBatchSize       = 50
)

// Reconciler applies a verified event to its order.
type Reconciler interface {
	Apply(ctx context.Context, ev *models.WebhookEvent) (reconcile.Result, error)
}

// Sweeper periodically re-applies verified deliveries that were left pending,
// typically because their order was locked or storage failed mid-flight.
type Sweeper struct {
	store    *eventstore.Store
	engine   Reconciler
	interval time.Duration
	minAge   time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper. Records younger than minAge are left for the
// request that is still handling them.
func NewSweeper(store *eventstore.Store, engine Reconciler, interval, minAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if minAge <= 0 {
		minAge = defaultMinAge
	}
	return &Sweeper{store: store, engine: engine, interval: interval, minAge: minAge}
}

// Start starts the background worker
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.stopCh = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.worker()
}

// Stop stops the background worker and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	log.Info("[Sweeper] Stopping...")
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	log.Info("[Sweeper] Stopped")
}

// MinAge returns how old a pending record must be before it is swept.
func (s *Sweeper) MinAge() time.Duration {
	return s.minAge
}

// IsRunning returns whether the sweeper is running
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) worker() {
	defer s.wg.Done()
	log.Infof("[Sweeper] Pending sweeper running (minAge=%s, interval=%s)", s.minAge, s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(context.Background()); err != nil {
				log.Errorf("[Sweeper] Sweep error: %v", err)
			}
		}
	}
}

// SweepOnce re-applies one batch of stale pending records and returns how
// many reached a final outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	events, err := s.store.StalePending(ctx, time.Now().UTC().Add(-s.minAge), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for i := range events {
		ev := &events[i]
		res, err := s.engine.Apply(ctx, ev)
		if err != nil {
			if errors.Is(err, reconcile.ErrLockTimeout) {
				metrics.OrderLockTimeoutsTotal.Inc()
				log.Warnf("[Sweeper] Order for record %d still busy, retrying later", ev.ID)
			} else {
				log.Errorf("[Sweeper] Re-applying record %d failed: %v", ev.ID, err)
			}
			continue
		}

		err = s.store.SaveOutcome(ctx, ev.ID, repository.WebhookOutcome{
			Verification:      ev.Verification,
			ComputedSignature: ev.ComputedSignature,
			ProcessingOutcome: res.Outcome,
			Diagnostic:        res.Diagnostic,
		})
		if err != nil {
			log.Errorf("[Sweeper] Failed to store outcome of record %d: %v", ev.ID, err)
			continue
		}
		metrics.ReconciliationOutcomesTotal.WithLabelValues("sweeper", res.Outcome).Inc()
		done++
	}
	if done > 0 {
		log.Infof("[Sweeper] Settled %d pending record(s)", done)
	}
	return done, nil
}

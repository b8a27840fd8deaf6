package payments

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/archive"
	"github.com/ManuelReschke/PayDemo/internal/pkg/checkout"
	"github.com/ManuelReschke/PayDemo/internal/pkg/devconfig"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/ingest"
	"github.com/ManuelReschke/PayDemo/internal/pkg/inspector"
	"github.com/ManuelReschke/PayDemo/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PayDemo/internal/pkg/mail"
	"github.com/ManuelReschke/PayDemo/internal/pkg/provider"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
	"github.com/ManuelReschke/PayDemo/internal/pkg/replay"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
)

// Options control how the payment services are assembled.
type Options struct {
	Static     secrets.Static
	Locker     reconcile.OrderLocker
	LockWait   time.Duration
	Archiver   eventstore.Archiver
	Notifier   *mail.Notifier
	Creator    checkout.OrderCreator
	SweepEvery time.Duration
}

// Services is the assembled webhook subsystem.
type Services struct {
	Resolver  *secrets.Resolver
	Store     *eventstore.Store
	Engine    *reconcile.Engine
	Pipeline  *ingest.Pipeline
	Replay    *replay.Controller
	Inspector *inspector.Inspector
	Config    *devconfig.Service
	Checkout  *checkout.Service
	Sweeper   *jobqueue.Sweeper
}

// New wires the services over db. Zero options fall back to local,
// in-process collaborators.
func New(db *gorm.DB, opts Options) *Services {
	factory := repository.NewFactory(db)

	if opts.Locker == nil {
		opts.Locker = reconcile.NewLocalLocker()
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}

	resolver := secrets.NewResolver(factory.GetDeveloperConfigRepository(), opts.Static)
	store := eventstore.New(factory.GetWebhookEventRepository(), opts.Archiver)
	engine := reconcile.NewEngine(db, opts.Locker, opts.LockWait)
	if opts.Notifier != nil {
		engine.SetPaidNotifier(opts.Notifier)
	}

	var alerts ingest.Alerter
	if opts.Notifier != nil {
		alerts = opts.Notifier
	}

	creator := opts.Creator
	if creator == nil {
		creator = provider.NewRazorpayClientFromEnv(resolver)
	}

	return &Services{
		Resolver:  resolver,
		Store:     store,
		Engine:    engine,
		Pipeline:  ingest.NewPipeline(resolver, store, engine, alerts),
		Replay:    replay.NewController(store, resolver, engine),
		Inspector: inspector.New(store),
		Config:    devconfig.NewService(factory.GetDeveloperConfigRepository(), opts.Static),
		Checkout:  checkout.NewService(factory.GetOrderRepository(), creator),
		Sweeper:   jobqueue.NewSweeper(store, engine, opts.SweepEvery, sweepMinAge(opts.LockWait)),
	}
}

// NewFromEnv wires the services for the running application.
func NewFromEnv(db *gorm.DB, cacheClient *redis.Client) *Services {
	opts := Options{
		Static:     secrets.StaticFromEnv(),
		LockWait:   env.GetDuration("ORDER_LOCK_WAIT", 5*time.Second),
		Notifier:   mail.NewNotifierFromEnv(),
		SweepEvery: env.GetDuration("SWEEPER_INTERVAL", time.Minute),
	}

	switch strings.ToLower(env.GetEnv("ORDER_LOCK_BACKEND", "redis")) {
	case "local":
		log.Info("[Payments] Using in-process order locks")
	default:
		if cacheClient != nil && cacheAvailable(cacheClient) {
			opts.Locker = reconcile.NewRedisLocker(cacheClient, env.GetDuration("ORDER_LOCK_TTL", 30*time.Second))
			log.Info("[Payments] Using Redis order locks")
		} else {
			log.Warn("[Payments] Cache unreachable, falling back to in-process order locks")
		}
	}

	cfg, err := archive.LoadConfig()
	if err != nil {
		log.Errorf("[Payments] Webhook archive disabled: %v", err)
	} else if cfg.Enabled {
		client, err := archive.NewClient(cfg)
		if err != nil {
			log.Errorf("[Payments] Webhook archive disabled: %v", err)
		} else {
			opts.Archiver = client
			log.Infof("[Payments] Archiving webhook payloads to bucket %s", cfg.BucketName)
		}
	}

	return New(db, opts)
}

func cacheAvailable(client *redis.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

// sweepMinAge keeps the sweeper away from records an inbound request may
// still be settling.
func sweepMinAge(lockWait time.Duration) time.Duration {
	return ingest.RequestTimeout + lockWait
}

// Package app composes the backend: it opens the storage adapters, wires
// the service layer, mounts the route dispatcher and supervises the
// lifecycle of every background component.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nextcart/platform/internal/api"
	"github.com/nextcart/platform/internal/config"
	"github.com/nextcart/platform/internal/health"
	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/jobs"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/metrics"
	"github.com/nextcart/platform/internal/queue"
	"github.com/nextcart/platform/internal/services/analytics"
	"github.com/nextcart/platform/internal/services/catalog"
	"github.com/nextcart/platform/internal/services/notification"
	ordersvc "github.com/nextcart/platform/internal/services/order"
	paymentsvc "github.com/nextcart/platform/internal/services/payment"
	usersvc "github.com/nextcart/platform/internal/services/user"
	"github.com/nextcart/platform/internal/storage/postgres"
	redisstore "github.com/nextcart/platform/internal/storage/redis"
)

// Service is a lifecycle-managed component. Every long-running module
// implements it so the application can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Adapters are the open connections to the four storage backends.
type Adapters struct {
	Documents  *postgres.DocumentStore
	Relational *postgres.RelationalStore
	Cache      *redisstore.CacheStore
	Search     *redisstore.SearchStore
}

// Close releases every adapter. Errors are collected, not short-circuited.
func (a Adapters) Close() error {
	var errs []error
	if a.Documents != nil {
		errs = append(errs, a.Documents.Close())
	}
	if a.Relational != nil {
		errs = append(errs, a.Relational.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Search != nil {
		errs = append(errs, a.Search.Close())
	}
	return errors.Join(errs...)
}

// Application owns the composed system.
type Application struct {
	cfg      *config.Config
	log      *logging.Logger
	adapters Adapters
	router   http.Handler
	server   *http.Server
	pool     *queue.Pool
	cron     *cron.Cron
	queue    queue.Store
}

// New builds the application bottom-up: adapters, migrations, services,
// job handlers, then the HTTP surface. Construction fails fast on the
// first unreachable backend.
func New(cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("app", logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}

	documents, err := postgres.OpenDocumentStore(cfg.DocumentDBDSN)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	relational, err := postgres.OpenRelationalStore(cfg.RelationalDBDSN)
	if err != nil {
		documents.Close()
		return nil, fmt.Errorf("open relational store: %w", err)
	}
	cache, err := redisstore.OpenCacheStore(redisstore.Options{
		Addr:     cfg.CacheAddr,
		Password: cfg.CachePassword,
		DB:       cfg.CacheDB,
	})
	if err != nil {
		documents.Close()
		relational.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	search, err := redisstore.OpenSearchStore(redisstore.Options{
		Addr:     cfg.SearchAddr,
		Password: cfg.SearchPassword,
	})
	if err != nil {
		documents.Close()
		relational.Close()
		cache.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	adapters := Adapters{Documents: documents, Relational: relational, Cache: cache, Search: search}

	if err := postgres.MigrateDocumentStore(documents.DB()); err != nil {
		adapters.Close()
		return nil, fmt.Errorf("migrate document store: %w", err)
	}
	if err := postgres.MigrateRelationalStore(relational.DB()); err != nil {
		adapters.Close()
		return nil, fmt.Errorf("migrate relational store: %w", err)
	}

	app, err := build(cfg, log, adapters, queue.NewRedisStore(cache.Client()))
	if err != nil {
		adapters.Close()
		return nil, err
	}
	return app, nil
}

// build wires services, workers and the router on top of already-open
// adapters. Split out so tests can compose against in-memory stores.
func build(cfg *config.Config, log *logging.Logger, adapters Adapters, queueStore queue.Store) (*Application, error) {
	users, err := usersvc.New(usersvc.Dependencies{
		Users:      adapters.Documents,
		Sessions:   adapters.Cache,
		Secret:     []byte(cfg.SessionSecret),
		SessionTTL: cfg.SessionTTL,
		Log:        log.WithField("service", "user"),
	})
	if err != nil {
		return nil, err
	}
	catalogSvc, err := catalog.New(catalog.Dependencies{
		Products: adapters.Documents,
		Search:   adapters.Search,
		Log:      log.WithField("service", "catalog"),
	})
	if err != nil {
		return nil, err
	}
	var gateway paymentsvc.Gateway
	if cfg.GatewayURL != "" {
		gateway = paymentsvc.NewHTTPGateway(httputil.NewClient(httputil.ClientConfig{
			BaseURL:   cfg.GatewayURL,
			AuthToken: cfg.GatewayToken,
		}))
	}
	payments, err := paymentsvc.New(paymentsvc.Dependencies{
		Payments: adapters.Relational,
		Gateway:  gateway,
		Log:      log.WithField("service", "payment"),
	})
	if err != nil {
		return nil, err
	}
	orders, err := ordersvc.New(ordersvc.Dependencies{
		Orders:   adapters.Relational,
		Catalog:  catalogSvc,
		Payments: payments,
		Users:    users,
		Log:      log.WithField("service", "order"),
	})
	if err != nil {
		return nil, err
	}
	notifications, err := notification.New(notification.Dependencies{
		Log: log.WithField("service", "notification"),
	})
	if err != nil {
		return nil, err
	}
	events, err := analytics.New(analytics.Dependencies{
		Index: adapters.Search,
		Log:   log.WithField("service", "analytics"),
	})
	if err != nil {
		return nil, err
	}

	pool := queue.NewPool(queueStore, queue.PoolConfig{
		Workers:     cfg.WorkerCount,
		MaxAttempts: cfg.JobMaxAttempts,
		BackoffBase: cfg.JobBackoffBase,
		BackoffCap:  cfg.JobBackoffCap,
	}, log.WithField("service", "queue"))
	if err := jobs.RegisterAll(pool, notifications, events); err != nil {
		return nil, err
	}

	collector := health.NewCollector(0,
		adapters.Documents,
		adapters.Relational,
		adapters.Cache,
		adapters.Search,
	)

	router := api.NewRouter(api.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		SessionSecret:   []byte(cfg.SessionSecret),
		SessionTTL:      cfg.SessionTTL,
		WebhookSecret:   []byte(cfg.WebhookSecret),
	}, api.Dependencies{
		Users:     users,
		Catalog:   catalogSvc,
		Orders:    orders,
		Payments:  payments,
		Analytics: events,
		Jobs:      queue.NewProducer(queueStore),
		Health:    collector,
		Sessions:  adapters.Cache,
		Counter:   adapters.Cache,
		Log:       log,
	})

	app := &Application{
		cfg:      cfg,
		log:      log,
		adapters: adapters,
		router:   router,
		pool:     pool,
		queue:    queueStore,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	app.cron = newMaintenance(app)
	return app, nil
}

// Router exposes the dispatcher, mainly for tests.
func (a *Application) Router() http.Handler { return a.router }

// newMaintenance schedules the periodic queue depth export so the depth
// gauges track the backing store rather than in-process counters.
func newMaintenance(a *Application) *cron.Cron {
	c := cron.New()
	_, _ = c.AddFunc("@every 15s", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		depths, err := a.queue.Depths(ctx)
		if err != nil {
			a.log.WithError(err).Warn("read queue depths")
			return
		}
		for state, depth := range depths {
			metrics.SetQueueDepth(state, depth)
		}
	})
	return c
}

// Run starts the worker pool, the maintenance scheduler and the HTTP
// listener, then blocks until ctx is cancelled or the listener fails.
// Shutdown drains in reverse start order within the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	if err := a.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	a.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.ListenAddr).Info("http listener starting")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-errCh:
		a.shutdown(context.Background())
		return fmt.Errorf("http listener: %w", err)
	}

	return a.shutdown(context.Background())
}

func (a *Application) shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}
	if err := a.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop worker pool: %w", err))
	}
	if err := a.adapters.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close adapters: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/metrics"
)

// Handler processes one job payload. A non-nil error triggers retry with
// backoff until the attempt budget is spent.
type Handler func(ctx context.Context, payload json.RawMessage) error

// PoolConfig sizes the worker pool and its retry policy.
type PoolConfig struct {
	Workers     int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	IdleWait    time.Duration
	JobTimeout  time.Duration
}

// Pool runs a fixed set of worker loops that claim envelopes and dispatch
// them to registered kind handlers.
type Pool struct {
	store    Store
	log      *logging.Logger
	cfg      PoolConfig
	handlers map[string]Handler

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPool creates a worker pool. Handlers must be registered before Start.
func NewPool(store Store, cfg PoolConfig, log *logging.Logger) *Pool {
	if log == nil {
		log = logging.NewDefault("queue-pool")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 5 * time.Minute
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 250 * time.Millisecond
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &Pool{
		store:    store,
		log:      log,
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a job kind. Registering a kind twice is a
// wiring bug and returns an error.
func (p *Pool) Register(kind string, handler Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("register %s: pool already started", kind)
	}
	if _, exists := p.handlers[kind]; exists {
		return fmt.Errorf("register %s: handler already registered", kind)
	}
	p.handlers[kind] = handler
	return nil
}

func (p *Pool) Name() string { return "job-workers" }

// Start launches the worker loops.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.loop(runCtx, worker)
		}(i)
	}

	p.log.Infof("job workers started (count=%d)", p.cfg.Workers)
	return nil
}

// Stop signals the loops and waits for in-flight jobs to finish.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) loop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, ok, err := p.store.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("claim failed")
			p.sleep(ctx, p.cfg.IdleWait)
			continue
		}
		if !ok {
			p.sleep(ctx, p.cfg.IdleWait)
			continue
		}

		p.process(ctx, env)
	}
}

// process runs the handler inside a worker boundary: panics and errors are
// captured here and converted into retry or dead-letter transitions, never
// surfaced to a client.
func (p *Pool) process(ctx context.Context, env Envelope) {
	handler, exists := p.handlers[env.Kind]
	if !exists {
		p.log.WithField("kind", env.Kind).Error("no handler for job kind")
		p.finishFailure(env, fmt.Errorf("no handler for kind %q", env.Kind))
		return
	}

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(context.Background(), p.cfg.JobTimeout)
	defer cancel()

	err := p.invoke(jobCtx, handler, env)
	duration := time.Since(start)

	if err == nil {
		metrics.RecordJob(env.Kind, "success", duration)
		if ackErr := p.store.Ack(context.Background(), env); ackErr != nil {
			p.log.WithError(ackErr).WithField("job_id", env.ID).Warn("ack failed")
		}
		return
	}

	metrics.RecordJob(env.Kind, "failure", duration)
	p.log.WithError(err).WithFields(map[string]interface{}{
		"job_id":  env.ID,
		"kind":    env.Kind,
		"attempt": env.Attempt,
	}).Warn("job handler failed")
	p.finishFailure(env, err)
}

func (p *Pool) invoke(ctx context.Context, handler Handler, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return handler(ctx, env.Payload)
}

func (p *Pool) finishFailure(env Envelope, cause error) {
	ctx := context.Background()
	if env.Attempt+1 >= p.cfg.MaxAttempts {
		if err := p.store.DeadLetter(ctx, env); err != nil {
			p.log.WithError(err).WithField("job_id", env.ID).Error("dead-letter failed")
			return
		}
		p.log.WithFields(map[string]interface{}{
			"job_id": env.ID,
			"kind":   env.Kind,
			"cause":  cause.Error(),
		}).Error("job moved to dead-letter")
		return
	}

	delay := Backoff(p.cfg.BackoffBase, p.cfg.BackoffCap, env.Attempt)
	if err := p.store.Retry(ctx, env, delay); err != nil {
		p.log.WithError(err).WithField("job_id", env.ID).Error("retry enqueue failed")
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

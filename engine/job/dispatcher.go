package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/caucehq/cauce/engine/metrics"
	"github.com/caucehq/cauce/provider"
)

// Enqueue failure modes.
var (
	ErrQueueFull = errors.New("dispatcher: queue full")
	ErrStopped   = errors.New("dispatcher: stopped")
)

// Processor executes one job. *Orchestrator satisfies it.
type Processor interface {
	Process(ctx context.Context, tenantID string, msg *provider.Message) error
}

type task struct {
	id       string
	tenantID string
	msg      *provider.Message
}

// Config sizes the dispatcher.
type Config struct {
	Workers     int           // parallel workers (default: 4)
	QueueSize   int           // buffered queue capacity (default: 256)
	MaxAttempts int           // attempts per job (default: 3)
	BaseDelay   time.Duration // backoff unit; attempt n waits n² units (default: 1s)

	// Metrics may be nil.
	Metrics *metrics.Exporter
}

// Dispatcher runs jobs on parallel workers. Each job runs to completion on
// one worker; failed jobs retry in place with polynomial backoff.
type Dispatcher struct {
	processor Processor
	cfg       Config

	queue chan task
	sem   *semaphore.Weighted
	wg    sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once
	stopping chan struct{}

	drainOnce sync.Once
	drained   chan struct{}
}

// NewDispatcher builds a dispatcher over a processor.
func NewDispatcher(p Processor, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Dispatcher{
		processor: p,
		cfg:       cfg,
		queue:     make(chan task, cfg.QueueSize),
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		stopping:  make(chan struct{}),
		drained:   make(chan struct{}),
	}
}

// Enqueue schedules one message for orchestration. It never blocks; a full
// queue is back-pressure the caller must surface.
func (d *Dispatcher) Enqueue(tenantID string, msg *provider.Message) error {
	select {
	case <-d.stopping:
		return ErrStopped
	default:
	}
	t := task{id: uuid.NewString(), tenantID: tenantID, msg: msg}
	select {
	case d.queue <- t:
		d.setQueueDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

// Start consumes the queue until ctx is canceled or Shutdown drains it.
// It blocks; run it on its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.started.Store(true)
	defer d.drainOnce.Do(func() { close(d.drained) })
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopping:
			// Drain what is already queued, then stop.
			for {
				select {
				case t := <-d.queue:
					d.dispatch(ctx, t)
				default:
					return
				}
			}
		case t := <-d.queue:
			d.dispatch(ctx, t)
		}
	}
}

// Shutdown stops intake and waits for queued and running jobs, bounded by
// ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopping) })

	// Wait for the consumer loop to drain the queue before counting
	// in-flight jobs.
	if d.started.Load() {
		select {
		case <-d.drained:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "dispatcher: drain interrupted")
		}
	}

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "dispatcher: drain interrupted")
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, t task) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	d.wg.Add(1)
	d.setQueueDepth()
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.AddActiveWorkers(1)
			defer d.cfg.Metrics.AddActiveWorkers(-1)
		}
		d.run(ctx, t)
	}()
}

// run executes one job with retries: up to MaxAttempts attempts, waiting
// attempt² backoff units between them.
func (d *Dispatcher) run(ctx context.Context, t task) {
	log := slog.With("job_id", t.id, "tenant_id", t.tenantID, "message_id", t.msg.ID)
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		err := d.processor.Process(ctx, t.tenantID, t.msg)
		if err == nil {
			return
		}
		if attempt == d.cfg.MaxAttempts {
			log.Error("job failed permanently", "attempts", attempt, "error", err)
			return
		}
		delay := backoff(attempt, d.cfg.BaseDelay)
		log.Warn("job failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.RecordJobRetry()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// backoff is polynomial: attempt n waits n² base units.
func backoff(attempt int, base time.Duration) time.Duration {
	return time.Duration(attempt*attempt) * base
}

func (d *Dispatcher) setQueueDepth() {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.SetQueueDepth(len(d.queue))
	}
}

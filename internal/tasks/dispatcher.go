package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/metrics"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("task queue is full")
	// ErrClosed is returned by Submit once Shutdown has begun.
	ErrClosed = errors.New("task dispatcher is closed")
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Options configure the dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	Metrics   *metrics.TaskMetrics
}

type job struct {
	name   string
	ctx    context.Context
	fields map[string]any
	run    Task
}

// Dispatcher runs submitted tasks on a fixed pool of goroutines. Tasks run
// detached from the submitting request but are cancelled at Shutdown.
type Dispatcher struct {
	logg    *logger.Logger
	metrics *metrics.TaskMetrics
	workers int
	queue   chan job

	mu     sync.RWMutex
	closed bool

	started atomic.Bool
	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options, logg *logger.Logger) (*Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Dispatcher{
		logg:    logg,
		metrics: opts.Metrics,
		workers: workers,
		queue:   make(chan job, size),
	}, nil
}

// Start launches the workers. Tasks submitted earlier wait in the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already started")
	}
	d.base, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logg.Info(d.logg.WithField(ctx, "workers", d.workers), "task dispatcher started")
	return nil
}

// Submit enqueues task without blocking. Logger fields and other values of
// ctx are kept but its cancellation is not.
func (d *Dispatcher) Submit(ctx context.Context, name string, fields map[string]any, task Task) error {
	if task == nil {
		return fmt.Errorf("task %q is nil", name)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.Rejected("closed")
		return ErrClosed
	}
	select {
	case d.queue <- job{name: name, ctx: context.WithoutCancel(ctx), fields: fields, run: task}:
		d.metrics.Enqueued()
		return nil
	default:
		d.metrics.Rejected("queue_full")
		return ErrQueueFull
	}
}

// Shutdown stops intake, cancels running tasks, drops queued ones and waits
// for the workers until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if !d.started.Load() {
		for j := range d.queue {
			d.drop(j)
		}
		return nil
	}
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logg.Info(ctx, "task dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for task workers: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.queue {
		if d.base.Err() != nil {
			d.drop(j)
			continue
		}
		d.run(id, j)
	}
}

func (d *Dispatcher) drop(j job) {
	d.metrics.Dropped()
	ctx := d.logg.WithFields(j.ctx, j.fields)
	ctx = d.logg.WithField(ctx, "task", j.name)
	d.logg.Warn(ctx, "task.dropped")
}

func (d *Dispatcher) run(worker int, j job) {
	d.metrics.Started()
	ctx := d.logg.WithFields(j.ctx, j.fields)
	ctx = d.logg.WithTask(ctx, j.name, worker)
	d.logg.Debug(ctx, "task.started")

	taskCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(d.base, cancel)
	defer func() {
		stop()
		cancel()
	}()

	start := time.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			d.logg.Error(d.logg.WithField(ctx, "panic", fmt.Sprint(r)), "task.panic", fmt.Errorf("task %s panicked: %v", j.name, r))
		}
		d.metrics.Finished(j.name, result)
	}()

	err := j.run(taskCtx)
	ctx = d.logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds())
	switch {
	case err == nil:
	case taskCtx.Err() != nil && errors.Is(err, context.Canceled):
		result = "canceled"
		d.logg.Warn(ctx, "task.canceled")
	default:
		result = "failed"
		d.logg.Error(ctx, "task.failed", err)
	}
}

package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zulandar/taskdesk/internal/models"
)

// Sink delivers a message to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// DispatcherConfig tunes a Dispatcher. Zero values take defaults.
type DispatcherConfig struct {
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Stats counts what the dispatcher has done so far.
type Stats struct {
	Submitted int64
	Dropped   int64
	Delivered int64
	Failed    int64
}

// Dispatcher queues messages and delivers them to every sink on a separate
// goroutine. Submit never blocks; a full queue drops the message.
type Dispatcher struct {
	sinks       []Sink
	queue       chan Message
	log         *slog.Logger
	maxAttempts int
	retryDelay  time.Duration

	mu     sync.RWMutex
	closed bool

	started atomic.Bool
	done    chan struct{}

	submitted, dropped, delivered, failed atomic.Int64
}

// NewDispatcher returns a dispatcher delivering to sinks.
func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		sinks:       sinks,
		queue:       make(chan Message, cfg.QueueSize),
		log:         cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		done:        make(chan struct{}),
	}
}

// Submit enqueues m and reports whether it was accepted.
func (d *Dispatcher) Submit(m Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification after close dropped", "kind", m.Kind, "task", m.TaskNumber)
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- m:
		d.submitted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn("notification queue full, message dropped", "kind", m.Kind, "task", m.TaskNumber)
		return false
	}
}

// NotifyCreated queues a task-created message.
func (d *Dispatcher) NotifyCreated(t models.Task) {
	d.Submit(CreatedMessage(t))
}

// NotifyStatusChanged queues a status-changed message.
func (d *Dispatcher) NotifyStatusChanged(t models.Task, previous models.Status) {
	d.Submit(StatusChangedMessage(t, previous))
}

// Run delivers queued messages until ctx is done or the dispatcher is closed
// and drained. Call it once.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, m)
		}
	}
}

// Close stops accepting messages and waits, bounded by ctx, until queued
// messages are delivered. Without a running worker it delivers them itself.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	if d.started.Load() {
		select {
		case <-d.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for m := range d.queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.deliver(ctx, m)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) {
	for _, s := range d.sinks {
		if err := d.sendWithRetry(ctx, s, m); err != nil {
			d.failed.Add(1)
			d.log.Error("notification failed", "sink", s.Name(), "kind", m.Kind, "task", m.TaskNumber, "error", err)
			continue
		}
		d.delivered.Add(1)
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, s Sink, m Message) error {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = s.Send(ctx, m); err == nil {
			return nil
		}
		if attempt == d.maxAttempts {
			break
		}
		d.log.Warn("notification attempt failed", "sink", s.Name(), "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retryDelay * time.Duration(attempt)):
		}
	}
	return err
}

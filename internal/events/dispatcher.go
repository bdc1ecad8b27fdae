package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrDispatcherClosed is returned by Publish after Shutdown.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
	// ErrQueueFull is returned when the buffer is saturated; the event is dropped.
	ErrQueueFull = errors.New("event queue full")
)

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
	// OnDeliver, when set, is called after every delivery attempt.
	OnDeliver func(event Event, err error)
}

// Dispatcher decouples request handling from event delivery. Publish only
// enqueues; a fixed pool of workers forwards events to the sink.
type Dispatcher struct {
	sink    Publisher
	logger  *slog.Logger
	timeout time.Duration
	observe func(Event, error)

	mu     sync.RWMutex
	closed bool
	jobs   chan Event
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool.
func NewDispatcher(sink Publisher, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = Discard{}
	}

	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: cfg.PublishTimeout,
		observe: cfg.OnDeliver,
		jobs:    make(chan Event, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Publish enqueues event without blocking the caller.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.jobs <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for event := range d.jobs {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.sink.Publish(ctx, event)
	if err != nil {
		d.logger.Error("event delivery failed", "type", event.Type, "subjectId", event.SubjectID, "error", err)
	}
	if d.observe != nil {
		d.observe(event, err)
	}
}

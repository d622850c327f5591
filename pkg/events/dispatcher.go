package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned when publishing after Close.
var ErrDispatcherClosed = errors.New("events: dispatcher closed")

// DispatcherConfig configures the background delivery pool. DrainTimeout bounds how
// long Close waits for buffered events before abandoning pending retries.
type DispatcherConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

type delivery struct {
	event   Event
	attempt int
}

// Dispatcher hands events to a pool of workers that deliver them through the wrapped
// Publisher, retrying failures. Publish never waits on the broker.
type Dispatcher struct {
	next Publisher

	workers    int
	maxRetries int
	retryDelay time.Duration
	drain      time.Duration
	logger     *zap.Logger

	queue  chan delivery
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers delivering to next.
func NewDispatcher(next Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		next:       next,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		drain:      cfg.DrainTimeout,
		logger:     cfg.Logger,
		queue:      make(chan delivery, cfg.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Publish enqueues event. A full buffer drops the event with a warning.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- delivery{event: event}:
		return nil
	default:
		d.logger.Warn("event buffer full, dropping event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}
}

// Close stops accepting events and delivers what is buffered. Once the drain timeout
// passes, retries still waiting are abandoned. The wrapped publisher is closed last.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(d.drain)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		d.logger.Warn("event drain timed out, abandoning pending retries", zap.Int("buffered", len(d.queue)))
		d.cancel()
		<-done
	}
	d.cancel()
	return d.next.Close()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for item := range d.queue {
		d.deliver(item)
	}
}

func (d *Dispatcher) deliver(item delivery) {
	for {
		if d.ctx.Err() != nil {
			d.logger.Warn("event dropped on shutdown", zap.String("event_id", item.event.ID), zap.String("type", item.event.Type))
			return
		}
		err := d.next.Publish(d.ctx, item.event)
		if err == nil {
			return
		}
		item.attempt++
		if item.attempt > d.maxRetries {
			d.logger.Error("event delivery exceeded retries",
				zap.String("event_id", item.event.ID),
				zap.String("type", item.event.Type),
				zap.Error(err),
			)
			return
		}
		d.logger.Warn("event delivery failed, retrying",
			zap.String("event_id", item.event.ID),
			zap.String("type", item.event.Type),
			zap.Int("attempt", item.attempt),
			zap.Error(err),
		)
		timer := time.NewTimer(d.retryDelay)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

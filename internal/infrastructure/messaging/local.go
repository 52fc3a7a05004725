// Package messaging carries session events to their subscribers: in-process
// through LocalBus, and across instances through ClusterBus.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("messaging: event bus is closed")
	ErrHandlerPanic   = errors.New("messaging: handler panicked")
	ErrNilHandler     = errors.New("messaging: nil handler")
	ErrNilEvent       = errors.New("messaging: nil event")
)

// ══════════════════════════════════════════════════════════════════════════════
// LOCAL BUS
// ══════════════════════════════════════════════════════════════════════════════

// LocalBusConfig sizes a LocalBus.
type LocalBusConfig struct {
	// Workers is the number of goroutines running handlers. Zero runs every
	// handler on the publisher's goroutine before Publish returns.
	Workers int

	// QueueSize bounds deliveries waiting for a worker. Publish blocks while
	// the queue is full.
	QueueSize int

	Logger *logger.Logger
}

// DefaultLocalBusConfig runs handlers on four workers.
func DefaultLocalBusConfig() LocalBusConfig {
	return LocalBusConfig{Workers: 4, QueueSize: 256}
}

type delivery struct {
	event   shared.Event
	handler shared.EventHandler
}

// LocalBus fans events out to handlers registered in this process. Handler
// errors and panics are logged and counted, never returned to the publisher.
type LocalBus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	queue   chan delivery // nil when synchronous
	done    chan struct{}
	workers sync.WaitGroup

	log   *logger.Logger
	stats *Stats
}

// NewLocalBus starts cfg.Workers workers.
func NewLocalBus(cfg LocalBusConfig) *LocalBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	b := &LocalBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		done:   make(chan struct{}),
		log:    cfg.Logger.Named("eventbus"),
		stats:  NewStats(),
	}
	if cfg.Workers > 0 {
		b.queue = make(chan delivery, max(cfg.QueueSize, cfg.Workers))
		b.workers.Add(cfg.Workers)
		for range cfg.Workers {
			go b.work()
		}
	}
	return b
}

// Subscribe registers handler for events of type t.
func (b *LocalBus) Subscribe(t shared.EventType, handler shared.EventHandler) error {
	return b.register(handler, func() { b.byType[t] = append(b.byType[t], handler) })
}

// SubscribeAll registers handler for every event.
func (b *LocalBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(handler, func() { b.wildcard = append(b.wildcard, handler) })
}

func (b *LocalBus) register(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// handlersFor snapshots the handlers for t, or reports a closed bus.
func (b *LocalBus) handlersFor(t shared.EventType) ([]shared.EventHandler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false
	}
	typed := b.byType[t]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	return append(append(out, typed...), b.wildcard...), true
}

// Publish hands event to every matching handler.
func (b *LocalBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	handlers, ok := b.handlersFor(event.EventType())
	if !ok {
		return ErrEventBusClosed
	}
	b.stats.published(event.EventType())

	for _, h := range handlers {
		d := delivery{event: event, handler: h}
		if b.queue == nil {
			b.deliver(d)
			continue
		}
		select {
		case b.queue <- d:
		case <-b.done:
			return ErrEventBusClosed
		}
	}
	return nil
}

func (b *LocalBus) work() {
	defer b.workers.Done()
	for {
		select {
		case d := <-b.queue:
			b.deliver(d)
		case <-b.done:
			// Finish what was already queued.
			for {
				select {
				case d := <-b.queue:
					b.deliver(d)
				default:
					return
				}
			}
		}
	}
}

func (b *LocalBus) deliver(d delivery) {
	start := time.Now()
	err := safeCall(d)
	b.stats.ran(time.Since(start), err)
	if err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(d.event.EventType())),
			logger.SessionID(d.event.AggregateID()),
			logger.Err(err),
		)
	}
}

func safeCall(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return d.handler(d.event)
}

// Close rejects further publishes and waits for the workers to drain the
// queue. Deliveries still blocked in Publish are dropped.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.workers.Wait()
	return nil
}

// Stats returns the bus counters.
func (b *LocalBus) Stats() *Stats { return b.stats }

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT
// ══════════════════════════════════════════════════════════════════════════════

// AuditHandler writes one log line per event.
func AuditHandler(log *logger.Logger) shared.EventHandler {
	return func(e shared.Event) error {
		log.Info("event",
			logger.String("event_type", string(e.EventType())),
			logger.SessionID(e.AggregateID()),
			logger.Any("payload", e.Payload()),
		)
		return nil
	}
}

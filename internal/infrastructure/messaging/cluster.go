package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/pkg/logger"
)

// Transport moves encoded events between instances. Subscribe returns the
// incoming messages and a func that ends the subscription.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, func() error, error)
}

// Message is one delivery from a Transport. Err reports a broken
// subscription; Payload is empty then.
type Message struct {
	Payload []byte
	Err     error
}

// wireEvent is the JSON form of an event on the transport.
type wireEvent struct {
	Origin  string           `json:"origin"`
	Type    shared.EventType `json:"type"`
	Session string           `json:"session_id"`
	At      time.Time        `json:"at"`
	Data    map[string]any   `json:"data,omitempty"`
}

func (w *wireEvent) EventType() shared.EventType { return w.Type }
func (w *wireEvent) AggregateID() string         { return w.Session }
func (w *wireEvent) OccurredAt() time.Time       { return w.At }
func (w *wireEvent) Payload() map[string]any     { return w.Data }

// ClusterBusConfig configures a ClusterBus.
type ClusterBusConfig struct {
	Transport Transport
	Channel   string

	// InstanceID tags outgoing events so the bus can ignore its own echoes.
	// A random one is generated when empty.
	InstanceID string

	Local  LocalBusConfig
	Logger *logger.Logger
}

// ClusterBus delivers every event locally and mirrors it on a shared
// channel; events other instances mirror are replayed to local handlers.
type ClusterBus struct {
	*LocalBus

	transport Transport
	channel   string
	origin    string
	log       *logger.Logger

	ctx         context.Context
	stop        context.CancelFunc
	unsubscribe func() error
	listening   sync.WaitGroup
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// NewClusterBus subscribes to cfg.Channel and starts replaying remote events.
func NewClusterBus(cfg ClusterBusConfig) (*ClusterBus, error) {
	switch {
	case cfg.Transport == nil:
		return nil, errors.New("messaging: transport is required")
	case cfg.Channel == "":
		return nil, errors.New("messaging: channel is required")
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Local.Logger == nil {
		cfg.Local.Logger = cfg.Logger
	}

	ctx, stop := context.WithCancel(context.Background())
	incoming, unsubscribe, err := cfg.Transport.Subscribe(ctx, cfg.Channel)
	if err != nil {
		stop()
		return nil, fmt.Errorf("messaging: subscribe %s: %w", cfg.Channel, err)
	}

	b := &ClusterBus{
		LocalBus:    NewLocalBus(cfg.Local),
		transport:   cfg.Transport,
		channel:     cfg.Channel,
		origin:      cfg.InstanceID,
		log:         cfg.Logger.Named("eventbus.cluster").With(logger.String("instance", cfg.InstanceID)),
		ctx:         ctx,
		stop:        stop,
		unsubscribe: unsubscribe,
	}
	b.listening.Add(1)
	go b.listen(incoming)
	return b, nil
}

// Publish mirrors event on the channel, then delivers it locally. A
// transport failure is logged and does not block local delivery.
func (b *ClusterBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if b.closed.Load() {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(&wireEvent{
		Origin:  b.origin,
		Type:    event.EventType(),
		Session: event.AggregateID(),
		At:      event.OccurredAt(),
		Data:    event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("messaging: encode %s: %w", event.EventType(), err)
	}
	if err := b.transport.Publish(b.ctx, b.channel, data); err != nil {
		b.log.Warn("mirror to transport failed", logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
	return b.LocalBus.Publish(event)
}

func (b *ClusterBus) listen(incoming <-chan Message) {
	defer b.listening.Done()
	for {
		var msg Message
		var ok bool
		select {
		case <-b.ctx.Done():
			return
		case msg, ok = <-incoming:
		}
		if !ok {
			return
		}
		if msg.Err != nil {
			b.log.Error("subscription error", logger.Err(msg.Err))
			continue
		}

		ev := new(wireEvent)
		if err := json.Unmarshal(msg.Payload, ev); err != nil {
			b.log.Warn("dropping undecodable event", logger.Err(err))
			continue
		}
		if ev.Origin == b.origin {
			continue
		}
		if err := b.LocalBus.Publish(ev); err != nil {
			b.log.Error("replay remote event", logger.String("origin", ev.Origin), logger.Err(err))
		}
	}
}

// Close ends the subscription, waits for the listener, then closes the
// local bus. Later calls return the first result.
func (b *ClusterBus) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.stop()
		if b.unsubscribe != nil {
			if err := b.unsubscribe(); err != nil {
				b.log.Warn("unsubscribe failed", logger.Err(err))
			}
		}
		b.listening.Wait()
		b.closeErr = b.LocalBus.Close()
	})
	return b.closeErr
}

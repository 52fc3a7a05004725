package messaging

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/advising-hub/internal/infrastructure/persistence/redis"
)

// EventsChannel is the Redis channel session events travel on.
var EventsChannel = redis.PubSubChannel("events")

// pubSub adapts redis.Cache to Transport.
type pubSub struct {
	cache *redis.Cache
}

// NewRedisTransport carries cluster events over Redis pub/sub.
func NewRedisTransport(cache *redis.Cache) Transport {
	return &pubSub{cache: cache}
}

func (p *pubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.cache.Publish(ctx, channel, payload)
}

// Subscribe waits for the subscription to be confirmed, then forwards
// messages until ctx is done or the returned close func is called.
func (p *pubSub) Subscribe(ctx context.Context, channel string) (<-chan Message, func() error, error) {
	ps := p.cache.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- toMessage(m):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, ps.Close, nil
}

func toMessage(m *goredis.Message) Message {
	return Message{Payload: []byte(m.Payload)}
}

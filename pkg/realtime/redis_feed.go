package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/dinein-backend/pkg/redis"
)

// Listener streams raw payloads from one broker channel.
type Listener interface {
	Messages() <-chan []byte
	Close() error
}

// Broker is the pub/sub surface RedisFeed and RedisPublisher need.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Listen(ctx context.Context, channel string) (Listener, error)
	Channel(table string) string
}

type redisBroker struct {
	client *pkgredis.Client
}

// NewRedisBroker adapts the shared redis client to Broker.
func NewRedisBroker(client *pkgredis.Client) Broker {
	return &redisBroker{client: client}
}

func (b *redisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := b.client.Publish(ctx, channel, payload)
	return err
}

func (b *redisBroker) Listen(ctx context.Context, channel string) (Listener, error) {
	l, err := b.client.Listen(ctx, channel)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (b *redisBroker) Channel(table string) string {
	return b.client.RealtimeChannel(table)
}

// RedisFeed subscribes to the per-table redis channels written by the relay.
type RedisFeed struct {
	broker Broker
	logg   *logger.Logger
}

func NewRedisFeed(broker Broker, logg *logger.Logger) (*RedisFeed, error) {
	if broker == nil {
		return nil, errors.New("broker is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &RedisFeed{broker: broker, logg: logg}, nil
}

type redisSubscription struct {
	gate
	listener Listener
	done     chan struct{}
}

func (f *RedisFeed) Subscribe(ctx context.Context, table string, filter Filter, handler Handler) (Subscription, error) {
	if table == "" {
		return nil, errors.New("table is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	listener, err := f.broker.Listen(ctx, f.broker.Channel(table))
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", table, err)
	}

	sub := &redisSubscription{listener: listener, done: make(chan struct{})}
	deliverCtx := f.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"realtime_table":  table,
		"realtime_filter": filter.String(),
	})
	go f.dispatch(deliverCtx, sub, filter, handler)
	return sub, nil
}

func (f *RedisFeed) dispatch(ctx context.Context, sub *redisSubscription, filter Filter, handler Handler) {
	defer close(sub.done)
	for payload := range sub.listener.Messages() {
		if !sub.open() {
			return
		}
		var event ChangeEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			f.logg.Error(ctx, "realtime payload decode failed", err)
			continue
		}
		if !filter.Matches(event) || !sub.open() {
			continue
		}
		handler(ctx, event)
	}
}

func (s *redisSubscription) Unsubscribe() error {
	if !s.shut() {
		return nil
	}
	return s.listener.Close()
}

// RedisPublisher writes change events to the per-table channels.
type RedisPublisher struct {
	broker Broker
}

func NewRedisPublisher(broker Broker) *RedisPublisher {
	return &RedisPublisher{broker: broker}
}

func (p *RedisPublisher) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return p.broker.Publish(ctx, p.broker.Channel(event.Table), payload)
}

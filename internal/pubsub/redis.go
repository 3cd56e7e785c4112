package pubsub

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/opsflow/pkg/api"
)

// RedisBus implements Provider using Redis Pub/Sub. Channel names are the
// topic prefixed with the configured prefix.
//
// The caller owns the client; Close only ends subscriptions.
type RedisBus struct {
	client redis.UniversalClient
	prefix string

	mu     sync.Mutex
	subs   map[*redisSubscription]struct{}
	closed bool
}

// NewRedisBus constructs a Provider backed by a Redis client.
func NewRedisBus(client redis.UniversalClient, prefix string) (*RedisBus, error) {
	if client == nil {
		return nil, errors.New("pubsub: redis client is nil")
	}
	return &RedisBus{
		client: client,
		prefix: prefix,
		subs:   make(map[*redisSubscription]struct{}),
	}, nil
}

var _ Provider = (*RedisBus)(nil)

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		return &api.TransportError{Topic: topic, Op: "publish", Err: err}
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &api.TransportError{Topic: topic, Op: "subscribe", Err: ErrClosed}
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, b.channel(topic))
	// Wait for the subscription confirmation so no message published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, &api.TransportError{Topic: topic, Op: "subscribe", Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Message, 64)
	sub := &redisSubscription{bus: b, pubsub: ps, cancel: cancel, messages: out}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func(messages <-chan *redis.Message) {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				select {
				case out <- Message{Topic: topic, Payload: []byte(msg.Payload)}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}(ps.Channel())

	return sub, nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*redisSubscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type redisSubscription struct {
	bus      *RedisBus
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
	messages <-chan Message
	once     sync.Once
	err      error
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.messages
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.pubsub.Close()

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return s.err
}

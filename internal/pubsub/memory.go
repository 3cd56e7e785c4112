package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/petrijr/opsflow/pkg/api"
)

// InMemoryBus is a Provider implemented with buffered channels. It is safe
// for concurrent use.
//
// By default Publish blocks while a subscriber's buffer is full, until ctx is
// done or the subscriber goes away. Topics registered with WithDropOnFull
// never block: a full subscriber misses the message and the drop is counted.
// The bus lock is never held while waiting on a subscriber.
type InMemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
	closed bool

	lossy   map[string]bool
	dropped sync.Map // topic -> *atomic.Int64
}

// BusOption customizes an InMemoryBus.
type BusOption func(*InMemoryBus)

// WithDropOnFull makes delivery on topics best-effort: a subscriber whose
// buffer is full misses the message instead of stalling the publisher.
func WithDropOnFull(topics ...string) BusOption {
	return func(b *InMemoryBus) {
		for _, t := range topics {
			b.lossy[t] = true
		}
	}
}

// NewInMemoryBus creates a bus whose subscriptions buffer up to capacity
// messages each.
func NewInMemoryBus(capacity int, opts ...BusOption) *InMemoryBus {
	if capacity <= 0 {
		capacity = 256
	}
	b := &InMemoryBus{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: capacity,
		lossy:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ Provider = (*InMemoryBus)(nil)

func (b *InMemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return &api.TransportError{Topic: topic, Op: "publish", Err: ErrClosed}
	}
	targets := make([]*memorySubscription, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	lossy := b.lossy[topic]
	for _, sub := range targets {
		msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		if lossy {
			if !sub.offer(msg) {
				b.countDrop(topic)
			}
			continue
		}
		if err := sub.deliver(ctx, msg); err != nil {
			return &api.TransportError{Topic: topic, Op: "publish", Err: err}
		}
	}
	return nil
}

func (b *InMemoryBus) countDrop(topic string) {
	v, _ := b.dropped.LoadOrStore(topic, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// Dropped reports how many deliveries on topic were skipped because a
// subscriber's buffer was full.
func (b *InMemoryBus) Dropped(topic string) int64 {
	v, ok := b.dropped.Load(topic)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (b *InMemoryBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, &api.TransportError{Topic: topic, Op: "subscribe", Err: ErrClosed}
	}

	sub := &memorySubscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Message, b.buffer),
		done:  make(chan struct{}),
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Subscribers reports the number of live subscriptions on topic.
func (b *InMemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*memorySubscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

type memorySubscription struct {
	bus   *InMemoryBus
	topic string
	ch    chan Message
	done  chan struct{}
	once  sync.Once

	// sendMu guards ch against being closed during a send.
	sendMu sync.RWMutex
	closed bool
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.ch
}

// offer delivers msg only if the buffer has room.
func (s *memorySubscription) offer(msg Message) bool {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// deliver waits for buffer room until ctx is done or the subscription ends.
func (s *memorySubscription) deliver(ctx context.Context, msg Message) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- msg:
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		// Unblock pending deliveries before taking the send lock.
		close(s.done)

		s.bus.mu.Lock()
		delete(s.bus.subs[s.topic], s)
		if len(s.bus.subs[s.topic]) == 0 {
			delete(s.bus.subs, s.topic)
		}
		s.bus.mu.Unlock()

		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
	})
	return nil
}

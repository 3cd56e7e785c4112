// Package pubsub carries serialized events and notifications between the
// HTTP API, the ingestion loop, the engine and dashboard subscribers.
package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned by a Provider that has been closed.
var ErrClosed = errors.New("pubsub: provider closed")

// Message is one payload observed on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Provider is a topic based publish/subscribe transport.
//
// Delivery is at-most-once per subscriber: messages published while nobody
// is subscribed are lost.
type Provider interface {
	// Publish sends payload to every current subscriber of topic. It should
	// respect ctx for cancellation.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe starts receiving messages for topic. The subscription ends
	// when ctx is cancelled, Close is called, or the transport fails; in all
	// cases the Messages channel is closed.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Close ends all subscriptions created by this provider.
	Close() error
}

// Subscription is a live stream of messages for one topic.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

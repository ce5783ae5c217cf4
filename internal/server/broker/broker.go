// Package broker adapts publish/subscribe systems to the small pull-based
// interface the cross-instance bridge consumes. Channel names are opaque
// strings; the bridge uses decimal user ids.
package broker

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker closed")

// Message is one payload received on a subscribed channel.
type Message struct {
	Channel string
	Payload []byte
}

type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
	// Next blocks until a message arrives on any subscribed channel or the
	// underlying connection fails.
	Next(ctx context.Context) (Message, error)
	// Reconnect replaces the underlying connection. Subscriptions do not
	// survive it; the caller re-issues them.
	Reconnect(ctx context.Context) error
	Close() error
}

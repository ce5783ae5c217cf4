// Package bridge connects this instance to the shared broker so users
// attached elsewhere can be reached. Each attached user gets one channel
// named by the decimal user id.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/server/broker"
	"github.com/dmitrijs2005/chatmesh/internal/server/metrics"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Presence lists the users attached to this instance. After a reconnect
// the bridge re-subscribes exactly these.
type Presence interface {
	IDs() []int
}

// Sink receives every message the broker delivers for a subscribed user.
type Sink interface {
	DeliverLocalOrQueue(ctx context.Context, userID int, payload []byte)
}

type Bridge struct {
	broker   broker.Broker
	presence Presence
	logger   logging.Logger
	metrics  *metrics.Metrics
	delay    time.Duration

	// mu serializes subscription control. It is never held by the
	// registry and is independent of the registry's own lock.
	mu       sync.Mutex
	channels map[int]struct{}

	state atomic.Int32
}

func New(b broker.Broker, presence Presence, logger logging.Logger, m *metrics.Metrics, reconnectDelay time.Duration) *Bridge {
	return &Bridge{
		broker:   b,
		presence: presence,
		logger:   logger.With("module", "bridge"),
		metrics:  m,
		delay:    reconnectDelay,
		channels: make(map[int]struct{}),
	}
}

func channel(userID int) string {
	return strconv.Itoa(userID)
}

func (b *Bridge) setState(s State) {
	b.state.Store(int32(s))
	b.metrics.SetBridgeState(int(s))
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Channels returns the number of channels currently subscribed.
func (b *Bridge) Channels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

// Subscribe makes this instance receive messages published for userID.
func (b *Bridge) Subscribe(ctx context.Context, userID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.channels[userID]; ok {
		return nil
	}
	if err := b.broker.Subscribe(ctx, channel(userID)); err != nil {
		b.metrics.BrokerError("subscribe")
		b.logger.Error(ctx, "subscribe failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: subscribe %d: %v", common.ErrBroker, userID, err)
	}
	b.channels[userID] = struct{}{}
	b.metrics.SetChannels(len(b.channels))
	return nil
}

// Unsubscribe is best effort: the channel is forgotten locally even when
// the broker call fails.
func (b *Bridge) Unsubscribe(ctx context.Context, userID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.channels, userID)
	b.metrics.SetChannels(len(b.channels))

	if err := b.broker.Unsubscribe(ctx, channel(userID)); err != nil {
		b.metrics.BrokerError("unsubscribe")
		b.logger.Warn(ctx, "unsubscribe failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: unsubscribe %d: %v", common.ErrBroker, userID, err)
	}
	return nil
}

// Publish sends payload unchanged to userID's channel. Failures are logged
// and returned; callers treat the message as handed to the relay anyway.
func (b *Bridge) Publish(ctx context.Context, userID int, payload []byte) error {
	if err := b.broker.Publish(ctx, channel(userID), payload); err != nil {
		b.metrics.BrokerError("publish")
		b.logger.Error(ctx, "publish failed", "user_id", userID, "bytes", len(payload), "error", err)
		return fmt.Errorf("%w: publish %d: %v", common.ErrBroker, userID, err)
	}
	return nil
}

// Listen feeds broker traffic into sink until ctx is cancelled or the
// broker is closed, in which case it returns nil. A receive error triggers
// one reconnect cycle; if that cycle fails Listen returns an error wrapping
// common.ErrBroker and this instance stops receiving relayed messages.
func (b *Bridge) Listen(ctx context.Context, sink Sink) error {
	b.setState(Subscribed)
	b.logger.Info(ctx, "listener started")

	for {
		msg, err := b.broker.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, broker.ErrClosed) {
				b.setState(Disconnected)
				b.logger.Info(ctx, "listener stopped")
				return nil
			}

			b.setState(Disconnected)
			b.metrics.BrokerError("receive")
			b.logger.Warn(ctx, "broker receive failed, reconnecting", "error", err, "delay", b.delay.String())

			if rerr := b.reconnect(ctx); rerr != nil {
				if ctx.Err() != nil {
					return nil
				}
				b.setState(Disconnected)
				b.metrics.BrokerError("reconnect")
				b.logger.Error(ctx, "cross-instance delivery lost: reconnect failed", "error", rerr, "cause", err)
				return fmt.Errorf("%w: reconnect: %v", common.ErrBroker, rerr)
			}
			continue
		}

		userID, err := strconv.Atoi(msg.Channel)
		if err != nil {
			b.logger.Warn(ctx, "message on unexpected channel", "channel", msg.Channel)
			continue
		}
		sink.DeliverLocalOrQueue(ctx, userID, msg.Payload)
	}
}

// reconnect replaces the broker connection and re-subscribes every user
// the registry reports as attached.
func (b *Bridge) reconnect(ctx context.Context) error {
	if b.delay > 0 {
		t := time.NewTimer(b.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(Connecting)
	b.channels = make(map[int]struct{})
	b.metrics.SetChannels(0)

	if err := b.broker.Reconnect(ctx); err != nil {
		return err
	}

	ids := b.presence.IDs()
	if len(ids) > 0 {
		chs := make([]string, len(ids))
		for i, id := range ids {
			chs[i] = channel(id)
		}
		if err := b.broker.Subscribe(ctx, chs...); err != nil {
			return err
		}
	}
	for _, id := range ids {
		b.channels[id] = struct{}{}
	}
	b.metrics.SetChannels(len(b.channels))
	b.setState(Subscribed)

	b.logger.Info(ctx, "reconnected", "channels", len(ids))
	return nil
}

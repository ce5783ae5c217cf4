package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces chat channels on a shared NATS server.
const SubjectPrefix = "chatmesh.user."

// NATS is a Broker over core NATS subjects. Inbound messages from every
// subscription funnel into one channel that Next drains.
type NATS struct {
	url  string
	opts []nats.Option

	mu     sync.Mutex
	nc     *nats.Conn
	subs   map[string]*nats.Subscription
	closed bool

	msgs chan *nats.Msg
	errs chan error
	done chan struct{}
}

// NewNATS connects to url. Client-side reconnects are disabled: a dropped
// connection surfaces through Next and the caller drives Reconnect.
func NewNATS(url string, name string) (*NATS, error) {
	n := &NATS{
		url:  url,
		subs: make(map[string]*nats.Subscription),
		msgs: make(chan *nats.Msg, 1024),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	n.opts = []nats.Option{
		nats.Name(name),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err == nil {
				err = nats.ErrConnectionClosed
			}
			n.fail(err)
		}),
	}

	nc, err := nats.Connect(url, n.opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	n.nc = nc
	return n, nil
}

func (n *NATS) fail(err error) {
	select {
	case n.errs <- err:
	default:
	}
}

func (n *NATS) conn() (*nats.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	return n.nc, nil
}

func (n *NATS) Publish(_ context.Context, channel string, payload []byte) error {
	nc, err := n.conn()
	if err != nil {
		return err
	}
	return nc.Publish(SubjectPrefix+channel, payload)
}

func (n *NATS) Subscribe(_ context.Context, channels ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}

	for _, ch := range channels {
		if _, ok := n.subs[ch]; ok {
			continue
		}
		sub, err := n.nc.ChanSubscribe(SubjectPrefix+ch, n.msgs)
		if err != nil {
			return fmt.Errorf("nats subscribe %s: %w", ch, err)
		}
		n.subs[ch] = sub
	}
	return nil
}

func (n *NATS) Unsubscribe(_ context.Context, channels ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var firstErr error
	for _, ch := range channels {
		sub, ok := n.subs[ch]
		if !ok {
			continue
		}
		delete(n.subs, ch)
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("nats unsubscribe %s: %w", ch, err)
		}
	}
	return firstErr
}

func (n *NATS) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-n.done:
		return Message{}, ErrClosed
	case err := <-n.errs:
		return Message{}, err
	case m := <-n.msgs:
		return Message{Channel: strings.TrimPrefix(m.Subject, SubjectPrefix), Payload: m.Data}, nil
	}
}

func (n *NATS) Reconnect(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}

	for ch, sub := range n.subs {
		_ = sub.Unsubscribe()
		delete(n.subs, ch)
	}
	if n.nc.IsConnected() {
		return nil
	}

	n.nc.Close()
	nc, err := nats.Connect(n.url, n.opts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	n.nc = nc
	return nil
}

func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	close(n.done)
	n.nc.Close()
	return nil
}

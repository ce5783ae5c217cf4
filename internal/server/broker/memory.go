package broker

import (
	"context"
	"sync"
)

// Hub is an in-process message bus. Every Client attached to the same Hub
// sees the others' publishes, which lets several engine instances run in
// one process.
type Hub struct {
	mu      sync.Mutex
	clients map[*Memory]struct{}
}

func NewMemoryHub() *Hub {
	return &Hub{clients: make(map[*Memory]struct{})}
}

// Client attaches a new broker connection to the hub.
func (h *Hub) Client() *Memory {
	m := &Memory{
		hub:      h,
		channels: make(map[string]struct{}),
		inbox:    make(chan Message, 1024),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[m] = struct{}{}
	h.mu.Unlock()
	return m
}

func (h *Hub) publish(ctx context.Context, channel string, payload []byte) error {
	h.mu.Lock()
	targets := make([]*Memory, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribed(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case c.inbox <- msg:
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *Hub) detach(m *Memory) {
	h.mu.Lock()
	delete(h.clients, m)
	h.mu.Unlock()
}

// Memory is one client of a Hub.
type Memory struct {
	hub *Hub

	mu           sync.Mutex
	channels     map[string]struct{}
	closed       bool
	reconnectErr error

	inbox chan Message
	errs  chan error
	done  chan struct{}
	once  sync.Once
}

func (m *Memory) subscribed(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channel]
	return ok
}

func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return m.hub.publish(ctx, channel, payload)
}

func (m *Memory) Subscribe(_ context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, ch := range channels {
		m.channels[ch] = struct{}{}
	}
	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, ch := range channels {
		delete(m.channels, ch)
	}
	return nil
}

func (m *Memory) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-m.done:
		return Message{}, ErrClosed
	case err := <-m.errs:
		return Message{}, err
	case msg := <-m.inbox:
		return msg, nil
	}
}

// Disrupt simulates a dropped connection: subscriptions are forgotten and
// the next call to Next returns err.
func (m *Memory) Disrupt(err error) {
	m.mu.Lock()
	m.channels = make(map[string]struct{})
	m.mu.Unlock()

	select {
	case m.errs <- err:
	default:
	}
}

// FailReconnects makes every following Reconnect return err until it is
// called again with nil.
func (m *Memory) FailReconnects(err error) {
	m.mu.Lock()
	m.reconnectErr = err
	m.mu.Unlock()
}

// Channels returns the number of active subscriptions.
func (m *Memory) Channels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

func (m *Memory) Reconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.reconnectErr != nil {
		return m.reconnectErr
	}
	m.channels = make(map[string]struct{})
	return nil
}

func (m *Memory) Close() error {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
		m.hub.detach(m)
	})
	return nil
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/protocol"
)

// Handler receives envelopes the server pushes without being asked.
type Handler func(env protocol.Envelope)

type StreamClient struct {
	conn   net.Conn
	onPush Handler

	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[protocol.Kind][]chan protocol.Envelope
	closed  bool

	done chan struct{}
	once sync.Once
	err  error
}

// Dial connects to a chat server at addr.
func Dial(ctx context.Context, addr string, onPush Handler) (*StreamClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewStreamClient(conn, onPush), nil
}

// NewStreamClient takes ownership of conn and starts reading from it.
func NewStreamClient(conn net.Conn, onPush Handler) *StreamClient {
	if onPush == nil {
		onPush = func(protocol.Envelope) {}
	}
	c := &StreamClient{
		conn:    conn,
		onPush:  onPush,
		waiters: make(map[protocol.Kind][]chan protocol.Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *StreamClient) Register(ctx context.Context, name, password string) (protocol.RegisterAck, error) {
	env, err := c.request(ctx, protocol.Register{Name: name, Password: password}, protocol.KindRegisterAck)
	if err != nil {
		return protocol.RegisterAck{}, err
	}
	return env.(protocol.RegisterAck), nil
}

func (c *StreamClient) Login(ctx context.Context, id int, password string) (protocol.LoginAck, error) {
	env, err := c.request(ctx, protocol.Login{ID: id, Password: password}, protocol.KindLoginAck)
	if err != nil {
		return protocol.LoginAck{}, err
	}
	return env.(protocol.LoginAck), nil
}

// Send writes env as one frame. The context deadline, if any, bounds the
// write.
func (c *StreamClient) Send(ctx context.Context, env protocol.Envelope) error {
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// request sends env and waits for the next envelope of kind ack. Replies
// are matched to requests in order, so a waiter whose caller gave up stays
// queued and swallows the reply meant for it.
func (c *StreamClient) request(ctx context.Context, env protocol.Envelope, ack protocol.Kind) (protocol.Envelope, error) {
	ch := make(chan protocol.Envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.waiters[ack] = append(c.waiters[ack], ch)
	c.mu.Unlock()

	if err := c.Send(ctx, env); err != nil {
		c.forget(ack, ch)
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *StreamClient) forget(kind protocol.Kind, ch chan protocol.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.waiters[kind]
	for i, w := range q {
		if w == ch {
			c.waiters[kind] = append(q[:i:i], q[i+1:]...)
			return
		}
	}
}

// deliver hands env to the oldest waiter for its kind. It reports false
// when nobody is waiting.
func (c *StreamClient) deliver(env protocol.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.waiters[env.Kind()]
	if len(q) == 0 {
		return false
	}
	c.waiters[env.Kind()] = q[1:]
	q[0] <- env
	return true
}

func (c *StreamClient) readLoop() {
	for {
		payload, err := protocol.ReadFrame(c.conn, 0)
		if err != nil {
			c.shutdown(err)
			return
		}

		env, err := protocol.Unmarshal(payload)
		if err != nil {
			continue
		}

		switch env.Kind() {
		case protocol.KindLoginAck, protocol.KindRegisterAck:
			if c.deliver(env) {
				continue
			}
		}
		c.onPush(env)
	}
}

func (c *StreamClient) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.err = err
		for kind, q := range c.waiters {
			for _, ch := range q {
				close(ch)
			}
			delete(c.waiters, kind)
		}
		c.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *StreamClient) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, or nil while it is open or after
// a local Close.
func (c *StreamClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(c.err, ErrClosed) {
		return nil
	}
	return c.err
}

func (c *StreamClient) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// Now returns the local time in the format chat envelopes carry.
func Now() string {
	return time.Now().Format(time.DateTime)
}

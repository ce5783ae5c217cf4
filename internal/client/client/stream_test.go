package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peer is the server end of a net.Pipe.
type peer struct {
	conn net.Conn
}

func (p peer) read(t *testing.T) protocol.Envelope {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(time.Second)))
	payload, err := protocol.ReadFrame(p.conn, 0)
	require.NoError(t, err)
	env, err := protocol.Unmarshal(payload)
	require.NoError(t, err)
	return env
}

func (p peer) write(t *testing.T, env protocol.Envelope) {
	t.Helper()
	frame, err := protocol.Encode(env)
	require.NoError(t, err)
	_, err = p.conn.Write(frame)
	require.NoError(t, err)
}

func newPair(t *testing.T, onPush Handler) (*StreamClient, peer) {
	t.Helper()
	a, b := net.Pipe()
	c := NewStreamClient(a, onPush)
	t.Cleanup(func() {
		_ = c.Close()
		_ = b.Close()
	})
	return c, peer{conn: b}
}

func TestLogin_ReceivesAck(t *testing.T) {
	c, srv := newPair(t, nil)

	go func() {
		env := srv.read(t)
		login := env.(protocol.Login)
		srv.write(t, protocol.LoginAck{ID: login.ID, Name: "li"})
	}()

	ack, err := c.Login(context.Background(), 7, "pw")
	require.NoError(t, err)
	assert.Equal(t, protocol.LoginAck{ID: 7, Name: "li"}, ack)
}

func TestRegister_ReceivesAck(t *testing.T) {
	c, srv := newPair(t, nil)

	go func() {
		env := srv.read(t)
		assert.Equal(t, protocol.Register{Name: "li", Password: "pw"}, env)
		srv.write(t, protocol.RegisterAck{ID: 3})
	}()

	ack, err := c.Register(context.Background(), "li", "pw")
	require.NoError(t, err)
	assert.Equal(t, 3, ack.ID)
}

func TestPushedMessagesGoToHandler(t *testing.T) {
	got := make(chan protocol.Envelope, 2)
	c, srv := newPair(t, func(env protocol.Envelope) { got <- env })

	go func() {
		srv.read(t)
		srv.write(t, protocol.OneChat{ID: 2, Name: "zhang", To: 1, Msg: "before ack"})
		srv.write(t, protocol.LoginAck{ID: 1})
	}()

	ack, err := c.Login(context.Background(), 1, "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, ack.ID)

	select {
	case env := <-got:
		assert.Equal(t, "before ack", env.(protocol.OneChat).Msg)
	case <-time.After(time.Second):
		t.Fatal("push not delivered")
	}
}

func TestUnrequestedAckIsPushed(t *testing.T) {
	got := make(chan protocol.Envelope, 1)
	_, srv := newPair(t, func(env protocol.Envelope) { got <- env })

	srv.write(t, protocol.RegisterAck{ID: 9})
	select {
	case env := <-got:
		assert.Equal(t, protocol.RegisterAck{ID: 9}, env)
	case <-time.After(time.Second):
		t.Fatal("ack not delivered")
	}
}

func TestLateReplyIsNotGivenToNextRequest(t *testing.T) {
	c, srv := newPair(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		srv.read(t)
		cancel()
	}()
	_, err := c.Login(ctx, 1, "first")
	require.ErrorIs(t, err, context.Canceled)

	go func() {
		srv.write(t, protocol.LoginAck{ID: 1, Errno: protocol.ErrnoAuth})
		srv.read(t)
		srv.write(t, protocol.LoginAck{ID: 1, Name: "li"})
	}()

	ack, err := c.Login(context.Background(), 1, "second")
	require.NoError(t, err)
	assert.Equal(t, "li", ack.Name)
}

func TestSend_WritesFrame(t *testing.T) {
	c, srv := newPair(t, nil)

	msg := protocol.GroupChat{ID: 1, Name: "li", GroupID: 4, Msg: "hi", Time: "now"}
	go func() { _ = c.Send(context.Background(), msg) }()

	assert.Equal(t, msg, srv.read(t))
}

func TestServerCloseFailsPendingRequest(t *testing.T) {
	c, srv := newPair(t, nil)

	go func() {
		srv.read(t)
		_ = srv.conn.Close()
	}()

	_, err := c.Login(context.Background(), 1, "pw")
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client not done")
	}
	assert.Error(t, c.Err())
	assert.ErrorIs(t, c.Send(context.Background(), protocol.Logout{ID: 1}), ErrClosed)
}

func TestClose_IsIdempotent(t *testing.T) {
	c, _ := newPair(t, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.NoError(t, c.Err())

	_, err := c.Register(context.Background(), "li", "pw")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDial_Unavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNow_Format(t *testing.T) {
	_, err := time.Parse(time.DateTime, Now())
	assert.NoError(t, err)
}

package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{}

func (stubConn) ID() string         { return "c1" }
func (stubConn) RemoteAddr() string { return "pipe" }
func (stubConn) Send([]byte) error  { return nil }

func TestDispatch_CallsRegisteredHandler(t *testing.T) {
	d := New(logging.Nop())

	var got protocol.Envelope
	require.NoError(t, d.Register(protocol.KindLogout, func(_ context.Context, _ registry.Conn, env protocol.Envelope) error {
		got = env
		return nil
	}))
	d.Seal()

	require.NoError(t, d.Dispatch(context.Background(), stubConn{}, protocol.Logout{ID: 4}))
	assert.Equal(t, protocol.Logout{ID: 4}, got)
}

func TestDispatch_ReturnsHandlerError(t *testing.T) {
	d := New(logging.Nop())
	boom := errors.New("boom")
	require.NoError(t, d.Register(protocol.KindLogin, func(context.Context, registry.Conn, protocol.Envelope) error {
		return boom
	}))

	assert.ErrorIs(t, d.Dispatch(context.Background(), stubConn{}, protocol.Login{}), boom)
}

func TestDispatch_UnknownKind(t *testing.T) {
	d := New(logging.Nop())
	d.Seal()

	err := d.Dispatch(context.Background(), stubConn{}, protocol.LoginAck{})
	assert.ErrorIs(t, err, common.ErrUnknownMessageKind)
}

func TestDispatch_NilEnvelope(t *testing.T) {
	d := New(logging.Nop())
	assert.ErrorIs(t, d.Dispatch(context.Background(), stubConn{}, nil), common.ErrMalformedEnvelope)
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := New(logging.Nop())
	require.NoError(t, d.Register(protocol.KindOneChat, func(context.Context, registry.Conn, protocol.Envelope) error {
		panic("nil map")
	}))

	var err error
	assert.NotPanics(t, func() {
		err = d.Dispatch(context.Background(), stubConn{}, protocol.OneChat{})
	})
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestRegister_Rules(t *testing.T) {
	d := New(logging.Nop())
	noop := func(context.Context, registry.Conn, protocol.Envelope) error { return nil }

	require.NoError(t, d.Register(protocol.KindAddFriend, noop))
	assert.ErrorIs(t, d.Register(protocol.KindAddFriend, noop), ErrHandlerExists)

	d.Seal()
	assert.ErrorIs(t, d.Register(protocol.KindAddGroup, noop), ErrDispatcherSealed)
}

package broker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNATS(t *testing.T) *server.Server {
	t.Helper()
	s := natstest.RunRandClientPortServer()
	t.Cleanup(s.Shutdown)
	return s
}

func newNATS(t *testing.T, s *server.Server) *NATS {
	t.Helper()
	n, err := NewNATS(s.ClientURL(), "chatmesh-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNATS_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	n := newNATS(t, runNATS(t))

	require.NoError(t, n.Subscribe(ctx, "7", "7"))

	payload := []byte("{\"msgid\":6}\x00\xff")
	require.NoError(t, n.Publish(ctx, "7", payload))

	msg, err := nextWithin(t, n, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "7", msg.Channel)
	assert.Equal(t, payload, msg.Payload)
}

func TestNATS_ChannelIsSubjectWithoutPrefix(t *testing.T) {
	ctx := context.Background()
	s := runNATS(t)
	n := newNATS(t, s)
	require.NoError(t, n.Subscribe(ctx, "9"))

	// Make sure the server has the subscription before publishing from a
	// second connection.
	require.NoError(t, n.nc.Flush())

	raw, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer raw.Close()
	require.NoError(t, raw.Publish(SubjectPrefix+"9", []byte("hi")))
	require.NoError(t, raw.Flush())

	msg, err := nextWithin(t, n, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Message{Channel: "9", Payload: []byte("hi")}, msg)
}

func TestNATS_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	n := newNATS(t, runNATS(t))

	require.NoError(t, n.Subscribe(ctx, "7"))
	require.NoError(t, n.Unsubscribe(ctx, "7", "never-subscribed"))
	require.NoError(t, n.Publish(ctx, "7", []byte("lost")))

	_, err := nextWithin(t, n, 200*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNATS_ServerShutdownSurfacesInNext(t *testing.T) {
	s := runNATS(t)
	n := newNATS(t, s)
	require.NoError(t, n.Subscribe(context.Background(), "7"))

	s.Shutdown()

	_, err := nextWithin(t, n, 2*time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrClosed)
}

func TestNATS_ReconnectAfterRestart(t *testing.T) {
	ctx := context.Background()
	s := runNATS(t)
	port := s.Addr().(*net.TCPAddr).Port
	n := newNATS(t, s)
	require.NoError(t, n.Subscribe(ctx, "7"))

	s.Shutdown()
	s.WaitForShutdown()
	_, err := nextWithin(t, n, 2*time.Second)
	require.Error(t, err)

	assert.Error(t, n.Reconnect(ctx), "nothing is listening yet")

	opts := natstest.DefaultTestOptions
	opts.Port = port
	restarted := natstest.RunServer(&opts)
	t.Cleanup(restarted.Shutdown)

	require.NoError(t, n.Reconnect(ctx))
	assert.Empty(t, n.subs, "subscriptions are dropped by Reconnect")

	require.NoError(t, n.Subscribe(ctx, "7"))
	require.NoError(t, n.Publish(ctx, "7", []byte("back")))

	msg, err := nextWithin(t, n, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Message{Channel: "7", Payload: []byte("back")}, msg)
}

func TestNATS_Close(t *testing.T) {
	ctx := context.Background()
	n := newNATS(t, runNATS(t))

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	_, err := n.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, n.Publish(ctx, "7", nil), ErrClosed)
	assert.ErrorIs(t, n.Subscribe(ctx, "7"), ErrClosed)
	assert.ErrorIs(t, n.Reconnect(ctx), ErrClosed)
}

func TestNewNATS_FailsWithoutServer(t *testing.T) {
	s := natstest.RunRandClientPortServer()
	url := s.ClientURL()
	s.Shutdown()

	_, err := NewNATS(url, "chatmesh-test")
	assert.Error(t, err)
}

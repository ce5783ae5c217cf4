package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/server/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	userID  int
	payload string
}

type recordingSink struct {
	mu  sync.Mutex
	got []delivery
}

func (s *recordingSink) DeliverLocalOrQueue(_ context.Context, userID int, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, delivery{userID, string(payload)})
}

func (s *recordingSink) snapshot() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.got...)
}

type staticPresence []int

func (p staticPresence) IDs() []int { return p }

func startListen(t *testing.T, b *Bridge, sink Sink) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Listen(ctx, sink) }()
	require.Eventually(t, func() bool { return b.State() == Subscribed }, time.Second, 5*time.Millisecond)
	return cancel, done
}

func TestRelayBetweenInstances(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewMemoryHub()

	a := New(hub.Client(), staticPresence{7}, logging.Nop(), nil, 0)
	b := New(hub.Client(), staticPresence{}, logging.Nop(), nil, 0)

	sink := &recordingSink{}
	cancel, done := startListen(t, a, sink)
	defer cancel()

	require.NoError(t, a.Subscribe(ctx, 7))
	assert.Equal(t, 1, a.Channels())

	payload := "{\"msgid\":6,\"msg\":\"a\x00b\"}"
	require.NoError(t, b.Publish(ctx, 7, []byte(payload)))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, delivery{7, payload}, sink.snapshot()[0])

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, Disconnected, a.State())
}

func TestSubscribe_Idempotent(t *testing.T) {
	ctx := context.Background()
	client := broker.NewMemoryHub().Client()
	b := New(client, staticPresence{}, logging.Nop(), nil, 0)

	require.NoError(t, b.Subscribe(ctx, 1))
	require.NoError(t, b.Subscribe(ctx, 1))
	assert.Equal(t, 1, b.Channels())
	assert.Equal(t, 1, client.Channels())

	require.NoError(t, b.Unsubscribe(ctx, 1))
	assert.Zero(t, b.Channels())
	assert.Zero(t, client.Channels())
}

func TestListen_ReconnectRebuildsFromPresence(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewMemoryHub()
	client := hub.Client()
	peer := New(hub.Client(), staticPresence{}, logging.Nop(), nil, 0)

	b := New(client, staticPresence{1, 2}, logging.Nop(), nil, time.Millisecond)
	require.NoError(t, b.Subscribe(ctx, 1))
	require.NoError(t, b.Subscribe(ctx, 2))
	require.NoError(t, b.Subscribe(ctx, 3))

	sink := &recordingSink{}
	cancel, done := startListen(t, b, sink)
	defer cancel()

	client.Disrupt(errors.New("connection reset by peer"))

	require.Eventually(t, func() bool {
		return b.State() == Subscribed && client.Channels() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.Channels())

	require.NoError(t, peer.Publish(ctx, 2, []byte("after reconnect")))
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, delivery{2, "after reconnect"}, sink.snapshot()[0])

	cancel()
	assert.NoError(t, <-done)
}

func TestListen_TerminatesWhenReconnectFails(t *testing.T) {
	client := broker.NewMemoryHub().Client()
	b := New(client, staticPresence{1}, logging.Nop(), nil, 0)

	_, done := startListen(t, b, &recordingSink{})

	client.FailReconnects(errors.New("no route to host"))
	client.Disrupt(errors.New("EOF"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, common.ErrBroker)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not terminate")
	}
	assert.Equal(t, Disconnected, b.State())
}

func TestListen_StopsOnBrokerClose(t *testing.T) {
	client := broker.NewMemoryHub().Client()
	b := New(client, staticPresence{}, logging.Nop(), nil, 0)

	_, done := startListen(t, b, &recordingSink{})
	require.NoError(t, client.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListen_IgnoresForeignChannels(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewMemoryHub()
	client := hub.Client()
	other := hub.Client()
	b := New(client, staticPresence{}, logging.Nop(), nil, 0)

	require.NoError(t, client.Subscribe(ctx, "announcements", "5"))
	sink := &recordingSink{}
	cancel, done := startListen(t, b, sink)
	defer cancel()

	require.NoError(t, other.Publish(ctx, "announcements", []byte("x")))
	require.NoError(t, other.Publish(ctx, "5", []byte("y")))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, delivery{5, "y"}, sink.snapshot()[0])

	cancel()
	<-done
}

type failingBroker struct {
	broker.Broker
}

func (failingBroker) Subscribe(context.Context, ...string) error {
	return errors.New("subscribe refused")
}

func (failingBroker) Unsubscribe(context.Context, ...string) error {
	return errors.New("unsubscribe refused")
}

func (failingBroker) Publish(context.Context, string, []byte) error {
	return errors.New("publish refused")
}

func TestBrokerFailures(t *testing.T) {
	ctx := context.Background()
	b := New(failingBroker{}, staticPresence{}, logging.Nop(), nil, 0)

	assert.ErrorIs(t, b.Subscribe(ctx, 1), common.ErrBroker)
	assert.Zero(t, b.Channels())

	b.channels[2] = struct{}{}
	assert.ErrorIs(t, b.Unsubscribe(ctx, 2), common.ErrBroker)
	assert.Zero(t, b.Channels(), "local record must be dropped even if the broker refuses")

	assert.ErrorIs(t, b.Publish(ctx, 3, []byte("m")), common.ErrBroker)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "subscribed", Subscribed.String())
	assert.Equal(t, "unknown", State(9).String())
}

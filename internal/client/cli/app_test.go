package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/client/models"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoggedIn(t *testing.T) {
	a := &App{}
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.getStatus())

	a.setUser(protocol.LoginAck{ID: 3, Name: "li"})
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(li)", a.getStatus())
}

func TestOnMessage_PrintsAndStores(t *testing.T) {
	out := captureOutput(t)
	a := loggedIn(t, newFakeClient())

	a.onMessage(protocol.OneChat{ID: 2, Name: "zhang", To: 1, Msg: "hi", Time: "t1"})
	a.onMessage(protocol.GroupChat{ID: 3, Name: "wang", GroupID: 9, Msg: "yo", Time: "t2"})
	a.onMessage(protocol.RegisterAck{ID: 5})

	assert.Equal(t, "t1 [2] zhang said: hi\ngroup [9]: t2 [3] wang said: yo", out.String())

	entries, err := a.history.List(context.Background(), "", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.HistoryEntry{
		ID: entries[0].ID, Kind: models.KindChat, Peer: 2, FromID: 2, FromName: "zhang",
		Msg: "hi", SentAt: "t1", CreatedAt: entries[0].CreatedAt,
	}, entries[0])
	assert.Equal(t, 9, entries[1].Peer)
}

func TestWithTimeout(t *testing.T) {
	a := &App{}
	ctx, cancel := a.withTimeout(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	a = newTestApp(t, newFakeClient())
	ctx2, cancel2 := a.withTimeout(context.Background())
	defer cancel2()
	deadline, ok := ctx2.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestRun_QuitLogsOutAndCloses(t *testing.T) {
	captureOutput(t)
	fc := newFakeClient()
	a := loggedIn(t, fc)
	a.reader = bufio.NewReader(strings.NewReader("chat:2:bye\nquit\n"))

	a.Run(context.Background())

	sent := fc.sentEnvelopes()
	require.Len(t, sent, 2)
	assert.IsType(t, protocol.OneChat{}, sent[0])
	assert.Equal(t, protocol.Logout{ID: 1}, sent[1])
	assert.True(t, fc.closed)
	assert.False(t, a.isLoggedIn())
}

func TestRun_EndsWhenConnectionIsLost(t *testing.T) {
	out := captureOutput(t)
	fc := newFakeClient()
	a := newTestApp(t, fc)

	pr, pw := io.Pipe()
	a.reader = bufio.NewReader(pr)

	done := make(chan struct{})
	go func() {
		a.Run(context.Background())
		close(done)
	}()

	require.NoError(t, fc.Close())
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Connection to server lost")
	}, time.Second, 10*time.Millisecond)

	_, err := pw.Write([]byte("\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

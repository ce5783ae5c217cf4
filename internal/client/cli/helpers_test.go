package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/client/client"
	"github.com/dmitrijs2005/chatmesh/internal/client/config"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/stretchr/testify/require"
)

type output struct {
	mu    sync.Mutex
	lines []string
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.lines, "\n")
}

// captureOutput redirects printlnFn for the duration of the test.
func captureOutput(t *testing.T) *output {
	t.Helper()
	o := &output{}
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.lines = append(o.lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return o
}

func stubInputs(t *testing.T, text string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return text, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

type fakeClient struct {
	mu      sync.Mutex
	sent    []protocol.Envelope
	sendErr error

	loginID   int
	loginPass string
	loginAck  protocol.LoginAck
	loginErr  error

	regName string
	regPass string
	regAck  protocol.RegisterAck
	regErr  error

	done   chan struct{}
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{done: make(chan struct{})}
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeClient) Register(_ context.Context, name, password string) (protocol.RegisterAck, error) {
	f.regName, f.regPass = name, password
	return f.regAck, f.regErr
}

func (f *fakeClient) Login(_ context.Context, id int, password string) (protocol.LoginAck, error) {
	f.loginID, f.loginPass = id, password
	return f.loginAck, f.loginErr
}

func (f *fakeClient) Send(_ context.Context, env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeClient) Done() <-chan struct{} { return f.done }

func (f *fakeClient) sentEnvelopes() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Envelope(nil), f.sent...)
}

// newTestApp builds an App over fc with a history database in a temp dir.
func newTestApp(t *testing.T, fc client.Client) *App {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &App{
		config:  &config.Config{Timeout: time.Second},
		client:  fc,
		history: client.NewRepositories(db).History,
		reader:  bufio.NewReader(strings.NewReader("")),
	}
}

// loggedIn returns an App whose user is already logged in as li (id 1).
func loggedIn(t *testing.T, fc *fakeClient) *App {
	t.Helper()
	a := newTestApp(t, fc)
	a.setUser(protocol.LoginAck{ID: 1, Name: "li"})
	return a
}

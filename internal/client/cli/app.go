package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"
	"sync"

	"github.com/dmitrijs2005/chatmesh/internal/client/client"
	"github.com/dmitrijs2005/chatmesh/internal/client/config"
	"github.com/dmitrijs2005/chatmesh/internal/client/repositories/history"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
)

type App struct {
	config  *config.Config
	client  client.Client
	history history.Repository
	db      *sql.DB
	reader  *bufio.Reader

	// user is the last successful LOGIN_ACK. A zero ID means logged out.
	mu   sync.Mutex
	user protocol.LoginAck
}

// NewApp opens the local history and connects to the server. Messages the
// server pushes are handled from the moment the connection is up.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	db, err := client.InitDatabase(ctx, c.HistoryPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	a := &App{
		config:  c,
		history: client.NewRepositories(db).History,
		db:      db,
		reader:  bufio.NewReader(os.Stdin),
	}

	cl, err := client.Dial(ctx, c.ServerAddr, a.onMessage)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.client = cl

	return a, nil
}

// Run serves the REPL until the user quits, stdin ends or ctx is
// cancelled. Losing the server connection also ends it.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-a.client.Done():
			printlnFn("Connection to server lost, press Enter to exit.")
			cancel()
		case <-ctx.Done():
		}
	}()

	printlnFn("Welcome to chat (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) close() {
	if a.isLoggedIn() {
		_ = a.Logout(context.Background())
	}
	if err := a.client.Close(); err != nil {
		log.Printf("close connection: %s", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("close history: %s", err)
		}
	}
}

func (a *App) currentUser() protocol.LoginAck {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

func (a *App) setUser(u protocol.LoginAck) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	return a.currentUser().ID != 0
}

func (a *App) getStatus() string {
	u := a.currentUser()
	if u.ID == 0 {
		return ""
	}
	return "(" + u.Name + ")"
}

// withTimeout bounds request/reply exchanges by the configured timeout.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.Timeout)
}

// Package server wires one chat server instance together: storage, the
// broker bridge, the routing engine and the client-facing transports. It
// also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/server/bridge"
	"github.com/dmitrijs2005/chatmesh/internal/server/broker"
	"github.com/dmitrijs2005/chatmesh/internal/server/config"
	"github.com/dmitrijs2005/chatmesh/internal/server/dispatch"
	"github.com/dmitrijs2005/chatmesh/internal/server/memstore"
	"github.com/dmitrijs2005/chatmesh/internal/server/metrics"
	"github.com/dmitrijs2005/chatmesh/internal/server/registry"
	"github.com/dmitrijs2005/chatmesh/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatmesh/internal/server/services"
	"github.com/dmitrijs2005/chatmesh/internal/server/transport"
	"github.com/dmitrijs2005/chatmesh/internal/server/transport/tcp"
	"github.com/dmitrijs2005/chatmesh/internal/server/transport/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/chatmesh/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	metrics  *metrics.Metrics
	db       *sql.DB
	broker   broker.Broker
	registry *registry.Registry
	bridge   *bridge.Bridge
	chat     *services.ChatService
	gateway  *transport.Gateway
}

// NewApp connects to storage and the broker and builds the engine. The
// caller owns the returned App and must call Run, which releases every
// resource on exit.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel).With("instance", c.InstanceID)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stores, db, err := openStores(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	b, err := openBroker(ctx, c)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("broker init error: %w", err)
	}

	presence := registry.New()
	br := bridge.New(b, presence, logger, m, c.ReconnectDelay)
	chat := services.NewChatService(stores, presence, br, logger, m)

	d := dispatch.New(logger)
	if err := chat.RegisterHandlers(d); err != nil {
		_ = b.Close()
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	d.Seal()

	gw := transport.NewGateway(d, chat, logger, m, transport.Options{
		SendQueueSize: c.SendQueueSize,
		PingInterval:  ws.PingInterval,
	})

	return &App{
		config:   c,
		logger:   logger,
		metrics:  m,
		db:       db,
		broker:   b,
		registry: presence,
		bridge:   br,
		chat:     chat,
		gateway:  gw,
	}, nil
}

func openStores(ctx context.Context, dsn string) (services.Stores, *sql.DB, error) {
	if strings.HasPrefix(dsn, config.MemoryDSN) {
		st := memstore.New()
		return services.Stores{
			Users:   st.Users(),
			Friends: st.Friends(),
			Groups:  st.Groups(),
			Offline: st.Offline(),
		}, nil, nil
	}

	db, err := repomanager.Open(ctx, dsn)
	if err != nil {
		return services.Stores{}, nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return services.Stores{}, nil, err
	}

	return services.NewSQLStores(db, rm), db, nil
}

func openBroker(ctx context.Context, c *config.Config) (broker.Broker, error) {
	switch c.Broker {
	case config.BrokerRedis:
		return broker.NewRedis(ctx, broker.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
	case config.BrokerNATS:
		return broker.NewNATS(c.NATSURL, "chatmesh-"+c.InstanceID)
	case config.BrokerMemory:
		return broker.NewMemoryHub().Client(), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", c.Broker)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) ready() bool {
	return app.bridge.State() == bridge.Subscribed
}

func (app *App) startTCPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := tcp.NewServer(app.config.ListenAddr, int64(app.config.Workers), app.config.MaxFrameSize, app.gateway, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.ready, time.Second)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !app.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = fmt.Fprintf(w, "bridge %s, %d users online\n", app.bridge.State(), app.registry.Len())
	})
	mux.Handle("/ws", ws.NewHandler(app.gateway, app.config.MaxFrameSize, app.logger))
	return mux
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startBridge runs the broker listener. Losing the broker for good only cuts
// this instance off from the others: local connections keep working and
// health reports not serving while the bridge stays disconnected.
func (app *App) startBridge(ctx context.Context) {
	if err := app.bridge.Listen(ctx, app.chat); err != nil {
		app.logger.Error(ctx, "bridge stopped, serving local connections only", "error", err)
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
// Connections are closed first so every attached user goes offline, then
// the broker and finally the database.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.chat.ResetPresence(ctx); err != nil {
		_ = app.broker.Close()
		app.close(ctx)
		return fmt.Errorf("reset presence: %w", err)
	}

	var listener sync.WaitGroup
	listener.Add(1)
	go func() {
		defer listener.Done()
		app.startBridge(ctx)
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startTCPServer(ctx, cancelFunc)
	}()

	if app.config.HTTPAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	<-ctx.Done()
	app.logger.Info(ctx, "Shutting down...")

	wg.Wait()
	app.gateway.CloseAll()
	app.gateway.Wait()

	if err := app.broker.Close(); err != nil {
		app.logger.Warn(ctx, "broker close", "error", err)
	}
	listener.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "Stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close", "error", err)
	}
}

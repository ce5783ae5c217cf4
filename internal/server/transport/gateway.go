package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/dispatch"
	"github.com/dmitrijs2005/chatmesh/internal/server/metrics"
	"github.com/dmitrijs2005/chatmesh/internal/server/registry"
)

// Frame outcomes recorded in metrics.
const (
	FrameOK        = "ok"
	FrameMalformed = "malformed"
	FrameTooLarge  = "too_large"
	FrameRejected  = "rejected"
)

// Engine is told about sessions that ended without a logout.
type Engine interface {
	Disconnect(ctx context.Context, conn registry.Conn)
}

type Options struct {
	SendQueueSize int
	WriteTimeout  time.Duration
	PingInterval  time.Duration
}

// Gateway turns links into sessions: it reads frames, decodes them and
// hands them to the dispatcher, and cleans up when the link goes away.
type Gateway struct {
	dispatcher *dispatch.Dispatcher
	engine     Engine
	logger     logging.Logger
	metrics    *metrics.Metrics
	opts       Options

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

func NewGateway(d *dispatch.Dispatcher, e Engine, l logging.Logger, m *metrics.Metrics, opts Options) *Gateway {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Gateway{
		dispatcher: d,
		engine:     e,
		logger:     l.With("module", "gateway"),
		metrics:    m,
		opts:       opts,
		sessions:   make(map[*Session]struct{}),
	}
}

// Serve runs a session over link until the peer goes away or ctx is
// cancelled. Frames from one session are dispatched in arrival order.
// Once CloseAll has run, Serve closes link and returns at once.
func (g *Gateway) Serve(ctx context.Context, link Link, remote string) {
	s := newSession(link, remote, g.opts.SendQueueSize)
	log := g.logger.With("conn_id", s.ID(), "remote", remote)

	if !g.track(s) {
		_ = link.Close()
		log.Debug(ctx, "session refused, shutting down")
		return
	}
	defer g.wg.Done()

	g.metrics.ConnOpened()
	log.Debug(ctx, "session opened")

	stop := context.AfterFunc(ctx, s.Close)
	defer func() {
		stop()
		s.Close()
		g.untrack(s)
		g.metrics.ConnClosed()
		g.engine.Disconnect(context.WithoutCancel(ctx), s)
		log.Debug(ctx, "session closed")
	}()

	go s.writeLoop(g.opts.WriteTimeout, g.opts.PingInterval, func(err error) {
		log.Warn(ctx, "write failed", "error", err)
	})

	for {
		payload, err := link.ReadPayload()
		if err != nil {
			switch {
			case errors.Is(err, common.ErrMalformedEnvelope):
				g.metrics.Frame(FrameMalformed)
				log.Warn(ctx, "dropping malformed frame", "error", err)
				continue
			case errors.Is(err, common.ErrFrameTooLarge):
				g.metrics.Frame(FrameTooLarge)
				log.Warn(ctx, "frame too large, closing", "error", err)
			case isClosed(err):
				log.Debug(ctx, "peer closed", "error", err)
			default:
				log.Warn(ctx, "read failed", "error", err)
			}
			return
		}

		env, err := protocol.Unmarshal(payload)
		if err != nil {
			g.metrics.Frame(FrameMalformed)
			log.Warn(ctx, "dropping malformed frame", "error", err)
			continue
		}

		if err := g.dispatcher.Dispatch(ctx, s, env); err != nil {
			g.metrics.Frame(FrameRejected)
			log.Warn(ctx, "dispatch failed", "kind", env.Kind().String(), "error", err)
			continue
		}
		g.metrics.Frame(FrameOK)
	}
}

// CloseAll closes every live session and refuses new ones. Their Serve
// calls return and run the disconnect path.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	g.closing = true
	live := make([]*Session, 0, len(g.sessions))
	for s := range g.sessions {
		live = append(live, s)
	}
	g.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
}

// Wait blocks until every Serve call has returned.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

// Len reports the number of live sessions.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// track registers s with the WaitGroup under mu so Add never races Wait.
func (g *Gateway) track(s *Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.wg.Add(1)
	g.sessions[s] = struct{}{}
	return true
}

func (g *Gateway) untrack(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s)
	g.mu.Unlock()
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, common.ErrConnClosed)
}

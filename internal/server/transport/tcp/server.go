// Package tcp serves chat sessions over raw TCP connections carrying
// length-prefixed frames.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/transport"
	"golang.org/x/sync/semaphore"
)

type Server struct {
	address  string
	gateway  *transport.Gateway
	workers  *semaphore.Weighted
	maxFrame int
	logger   logging.Logger
}

// NewServer returns a server that keeps at most workers connections open
// at a time. Further clients wait in the listen backlog.
func NewServer(address string, workers int64, maxFrame int, gw *transport.Gateway, l logging.Logger) *Server {
	if workers <= 0 {
		workers = 1
	}
	return &Server{
		address:  address,
		gateway:  gw,
		workers:  semaphore.NewWeighted(workers),
		maxFrame: maxFrame,
		logger:   l.With("module", "tcp_server"),
	}
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// the open sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping TCP server...")
		_ = ln.Close()
	}()

	s.logger.Info(ctx, "Starting TCP server", "address", ln.Addr().String())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := s.workers.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			s.workers.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.workers.Release(1)
			s.gateway.Serve(ctx, newLink(conn, s.maxFrame), conn.RemoteAddr().String())
		}()
	}
}

type link struct {
	conn     net.Conn
	r        *bufio.Reader
	maxFrame int
}

func newLink(conn net.Conn, maxFrame int) *link {
	return &link{conn: conn, r: bufio.NewReader(conn), maxFrame: maxFrame}
}

func (l *link) ReadPayload() ([]byte, error) {
	return protocol.ReadFrame(l.r, l.maxFrame)
}

func (l *link) WriteFrame(frame []byte, deadline time.Time) error {
	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := l.conn.Write(frame)
	return err
}

func (l *link) Close() error {
	return l.conn.Close()
}

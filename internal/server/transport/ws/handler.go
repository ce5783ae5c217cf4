// Package ws carries chat frames over WebSocket. Every binary message
// holds exactly one length-prefixed frame.
package ws

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/transport"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	PingInterval = pongWait * 9 / 10
)

type Handler struct {
	gateway  *transport.Gateway
	upgrader websocket.Upgrader
	maxFrame int
	logger   logging.Logger
}

// NewHandler serves sessions through gw. Sessions live as long as the
// request context, so the http.Server's BaseContext bounds them.
func NewHandler(gw *transport.Gateway, maxFrame int, l logging.Logger) *Handler {
	return &Handler{
		gateway: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		maxFrame: maxFrame,
		logger:   l.With("module", "ws_handler"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.gateway.Serve(r.Context(), newLink(conn, h.maxFrame), r.RemoteAddr)
}

type link struct {
	conn     *websocket.Conn
	maxFrame int
}

func newLink(conn *websocket.Conn, maxFrame int) *link {
	if maxFrame > 0 {
		conn.SetReadLimit(int64(maxFrame + protocol.HeaderSize))
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &link{conn: conn, maxFrame: maxFrame}
}

func (l *link) ReadPayload() ([]byte, error) {
	kind, msg, err := l.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, fmt.Errorf("%w: %v", common.ErrFrameTooLarge, err)
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, common.ErrConnClosed
		}
		return nil, err
	}
	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))

	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: websocket message type %d", common.ErrMalformedEnvelope, kind)
	}

	r := bytes.NewReader(msg)
	payload, err := protocol.ReadFrame(r, l.maxFrame)
	if err != nil {
		if errors.Is(err, common.ErrFrameTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", common.ErrMalformedEnvelope, r.Len())
	}
	return payload, nil
}

func (l *link) WriteFrame(frame []byte, deadline time.Time) error {
	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return l.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (l *link) Ping(deadline time.Time) error {
	return l.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (l *link) Close() error {
	return l.conn.Close()
}

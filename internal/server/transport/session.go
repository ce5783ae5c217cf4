// Package transport runs client sessions over any stream that can carry
// length-prefixed frames. The tcp and ws subpackages supply the links.
package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/google/uuid"
)

// ErrSendQueueFull is returned by Session.Send when the peer is not
// draining its frames fast enough. The session is closed when it happens.
var ErrSendQueueFull = errors.New("send queue full")

// Link is one accepted client connection.
type Link interface {
	// ReadPayload blocks for the next inbound frame and returns it without
	// its length prefix. Oversized frames are reported as
	// common.ErrFrameTooLarge, frames that cannot be split as
	// common.ErrMalformedEnvelope.
	ReadPayload() ([]byte, error)
	// WriteFrame writes one framed message before deadline.
	WriteFrame(frame []byte, deadline time.Time) error
	Close() error
}

// Pinger is implemented by links that need keepalives from the writer.
type Pinger interface {
	Ping(deadline time.Time) error
}

// Session is a registry.Conn backed by a Link. Frames handed to Send are
// queued and written by a single writer goroutine.
type Session struct {
	id     string
	remote string
	link   Link
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newSession(link Link, remote string, queue int) *Session {
	if queue <= 0 {
		queue = 1
	}
	return &Session{
		id:     uuid.NewString(),
		remote: remote,
		link:   link,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) RemoteAddr() string { return s.remote }

// Send queues frame without blocking.
func (s *Session) Send(frame []byte) error {
	select {
	case <-s.done:
		return common.ErrConnClosed
	default:
	}

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return common.ErrConnClosed
	default:
		s.Close()
		return ErrSendQueueFull
	}
}

// Close stops the writer and closes the link. It is safe to call more
// than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.link.Close()
	})
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) writeLoop(writeTimeout, pingInterval time.Duration, onError func(error)) {
	var tick <-chan time.Time
	pinger, canPing := s.link.(Pinger)
	if canPing && pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			if err := s.link.WriteFrame(frame, time.Now().Add(writeTimeout)); err != nil {
				onError(err)
				s.Close()
				return
			}
		case <-tick:
			if err := pinger.Ping(time.Now().Add(writeTimeout)); err != nil {
				onError(err)
				s.Close()
				return
			}
		}
	}
}

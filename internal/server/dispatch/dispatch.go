// Package dispatch routes decoded envelopes to the handler registered for
// their kind.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/registry"
)

var (
	ErrHandlerExists    = errors.New("handler already registered")
	ErrDispatcherSealed = errors.New("dispatcher is sealed")
	ErrHandlerPanic     = errors.New("handler panicked")
)

// Handler processes one envelope received on conn. It runs on the
// goroutine that reads conn, so it is never called concurrently for the
// same connection.
type Handler func(ctx context.Context, conn registry.Conn, env protocol.Envelope) error

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[protocol.Kind]Handler
	sealed   bool
	logger   logging.Logger
}

func New(logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.Kind]Handler),
		logger:   logger.With("module", "dispatch"),
	}
}

// Register binds h to kind. Each kind can be bound once and only before
// Seal is called.
func (d *Dispatcher) Register(kind protocol.Kind, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return fmt.Errorf("%w: %s", ErrDispatcherSealed, kind)
	}
	if _, ok := d.handlers[kind]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, kind)
	}
	d.handlers[kind] = h
	return nil
}

// Seal ends registration.
func (d *Dispatcher) Seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

// Dispatch runs the handler for env's kind. A kind without a handler is
// logged and reported as common.ErrUnknownMessageKind; a panicking handler
// is recovered and reported as ErrHandlerPanic.
func (d *Dispatcher) Dispatch(ctx context.Context, conn registry.Conn, env protocol.Envelope) (err error) {
	if env == nil {
		return fmt.Errorf("%w: nil envelope", common.ErrMalformedEnvelope)
	}

	d.mu.RLock()
	h, ok := d.handlers[env.Kind()]
	d.mu.RUnlock()

	if !ok {
		return d.unknown(ctx, conn, env)
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error(ctx, "handler panic", "kind", env.Kind().String(), "conn_id", conn.ID(), "panic", fmt.Sprint(p))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()

	return h(ctx, conn, env)
}

func (d *Dispatcher) unknown(ctx context.Context, conn registry.Conn, env protocol.Envelope) error {
	d.logger.Warn(ctx, "no handler for message kind", "kind", env.Kind().String(), "conn_id", conn.ID())
	return fmt.Errorf("%w: %s", common.ErrUnknownMessageKind, env.Kind())
}

package client

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/protocol"
)

type Client interface {
	Close() error
	Register(ctx context.Context, name, password string) (protocol.RegisterAck, error)
	Login(ctx context.Context, id int, password string) (protocol.LoginAck, error)
	Send(ctx context.Context, env protocol.Envelope) error
	// Done is closed when the connection to the server is gone.
	Done() <-chan struct{}
}

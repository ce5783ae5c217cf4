package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/dispatch"
	"github.com/dmitrijs2005/chatmesh/internal/server/registry"
)

// RegisterHandlers binds every client-originated message kind to the
// service.
func (s *ChatService) RegisterHandlers(d *dispatch.Dispatcher) error {
	handlers := []struct {
		kind protocol.Kind
		h    dispatch.Handler
	}{
		{protocol.KindLogin, s.handleLogin},
		{protocol.KindLogout, s.handleLogout},
		{protocol.KindRegister, s.handleRegister},
		{protocol.KindOneChat, s.handleOneChat},
		{protocol.KindAddFriend, s.handleAddFriend},
		{protocol.KindCreateGroup, s.handleCreateGroup},
		{protocol.KindAddGroup, s.handleAddGroup},
		{protocol.KindGroupChat, s.handleGroupChat},
	}
	for _, e := range handlers {
		if err := d.Register(e.kind, e.h); err != nil {
			return err
		}
	}
	return nil
}

func as[T protocol.Envelope](env protocol.Envelope) (T, error) {
	v, ok := env.(T)
	if !ok {
		return v, fmt.Errorf("%w: unexpected %T", common.ErrMalformedEnvelope, env)
	}
	return v, nil
}

// reply encodes env and queues it on conn. Failures are logged here and go
// no further.
func (s *ChatService) reply(ctx context.Context, conn registry.Conn, env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		s.logger.Error(ctx, "encode reply", "kind", env.Kind().String(), "error", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		s.logger.Warn(ctx, "send reply", "kind", env.Kind().String(), "conn_id", conn.ID(), "error", err)
	}
}

func (s *ChatService) handleLogin(ctx context.Context, conn registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.Login](env)
	if err != nil {
		return err
	}
	s.reply(ctx, conn, s.Login(ctx, conn, m.ID, m.Password))
	return nil
}

func (s *ChatService) handleLogout(ctx context.Context, conn registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.Logout](env)
	if err != nil {
		return err
	}
	if attached, ok := s.registry.Lookup(m.ID); ok && attached != conn {
		s.logger.Warn(ctx, "logout for a user attached elsewhere ignored", "user_id", m.ID, "conn_id", conn.ID())
		return nil
	}
	s.Logout(ctx, m.ID)
	return nil
}

func (s *ChatService) handleRegister(ctx context.Context, conn registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.Register](env)
	if err != nil {
		return err
	}
	s.reply(ctx, conn, s.Register(ctx, m.Name, m.Password))
	return nil
}

func (s *ChatService) handleOneChat(ctx context.Context, _ registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.OneChat](env)
	if err != nil {
		return err
	}
	path := s.OneChat(ctx, m)
	s.logger.Debug(ctx, "one chat routed", "from", m.ID, "to", m.To, "path", path)
	return nil
}

func (s *ChatService) handleGroupChat(ctx context.Context, _ registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.GroupChat](env)
	if err != nil {
		return err
	}
	paths := s.GroupChat(ctx, m)
	s.logger.Debug(ctx, "group chat routed", "from", m.ID, "group_id", m.GroupID, "members", len(paths))
	return nil
}

func (s *ChatService) handleAddFriend(ctx context.Context, _ registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.AddFriend](env)
	if err != nil {
		return err
	}
	s.AddFriend(ctx, m.ID, m.FriendID)
	return nil
}

func (s *ChatService) handleCreateGroup(ctx context.Context, _ registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.CreateGroup](env)
	if err != nil {
		return err
	}
	s.CreateGroup(ctx, m.ID, m.GroupName, m.GroupDesc)
	return nil
}

func (s *ChatService) handleAddGroup(ctx context.Context, _ registry.Conn, env protocol.Envelope) error {
	m, err := as[protocol.AddGroup](env)
	if err != nil {
		return err
	}
	s.AddGroup(ctx, m.ID, m.GroupID)
	return nil
}

// Package services contains the server's business logic. ChatService is
// the presence and routing engine: it moves users between offline and
// online, and decides for every message whether it is delivered on this
// instance, relayed through the broker or queued until the recipient
// logs in.
package services

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/logging"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
	"github.com/dmitrijs2005/chatmesh/internal/server/metrics"
	"github.com/dmitrijs2005/chatmesh/internal/server/models"
	"github.com/dmitrijs2005/chatmesh/internal/server/registry"
)

// Relay is the cross-instance side of routing.
type Relay interface {
	Subscribe(ctx context.Context, userID int) error
	Unsubscribe(ctx context.Context, userID int) error
	Publish(ctx context.Context, userID int, payload []byte) error
}

type ChatService struct {
	users    UserStore
	friends  FriendStore
	groups   GroupStore
	offline  OfflineQueue
	registry *registry.Registry
	relay    Relay
	logger   logging.Logger
	metrics  *metrics.Metrics
}

func NewChatService(st Stores, reg *registry.Registry, relay Relay, logger logging.Logger, m *metrics.Metrics) *ChatService {
	return &ChatService{
		users:    st.Users,
		friends:  st.Friends,
		groups:   st.Groups,
		offline:  st.Offline,
		registry: reg,
		relay:    relay,
		logger:   logger.With("module", "chat"),
		metrics:  m,
	}
}

// ResetPresence marks every persisted online user offline. Registry state
// never survives a restart, so rows left online by a crash are stale.
func (s *ChatService) ResetPresence(ctx context.Context) error {
	n, err := s.users.ResetAllOnline(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn(ctx, "reset stale online users", "count", n)
	}
	return nil
}

// Login authenticates id and, on success, attaches conn for it. The check
// for an existing session uses the persisted state so a login already
// active on another instance is rejected too. A connection that already
// carries a user cannot log in again until that user logs out.
func (s *ChatService) Login(ctx context.Context, conn registry.Conn, id int, password string) protocol.LoginAck {
	if owner, ok := s.registry.Owner(conn); ok {
		s.metrics.Login("already_online")
		s.logger.Info(ctx, "login on bound connection", "user_id", id, "owner_id", owner, "conn_id", conn.ID())
		return protocol.LoginAck{Errno: protocol.ErrnoAlreadyOnline, Errmsg: common.ErrConnBound.Error()}
	}

	user, err := s.users.Query(ctx, id)
	if err != nil || !s.users.CheckCredential(user, password) {
		s.metrics.Login("auth")
		s.logger.Info(ctx, "login rejected", "user_id", id, "conn_id", conn.ID())
		return protocol.LoginAck{Errno: protocol.ErrnoAuth, Errmsg: common.ErrAuth.Error()}
	}

	if user.Online() || !s.registry.Insert(id, conn) {
		s.metrics.Login("already_online")
		s.logger.Info(ctx, "login while online", "user_id", id, "conn_id", conn.ID())
		return protocol.LoginAck{Errno: protocol.ErrnoAlreadyOnline, Errmsg: common.ErrAlreadyOnline.Error()}
	}
	s.metrics.SetOnline(s.registry.Len())

	_ = s.relay.Subscribe(ctx, id)

	if err := s.users.UpdateState(ctx, id, models.StateOnline); err != nil {
		s.logger.Error(ctx, "persist online state", "user_id", id, "error", err)
	}

	ack := protocol.LoginAck{Errno: protocol.ErrnoOK, ID: user.ID, Name: user.Name}

	queued, err := s.offline.Take(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "take offline messages", "user_id", id, "error", err)
	}
	for _, p := range queued {
		ack.OfflineMsg = append(ack.OfflineMsg, string(p))
	}

	friends, err := s.friends.Query(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "load friends", "user_id", id, "error", err)
	}
	for _, f := range friends {
		ack.Friends = append(ack.Friends, protocol.Friend{ID: f.ID, Name: f.Name, State: f.State})
	}

	groups, err := s.groups.QueryGroups(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "load groups", "user_id", id, "error", err)
	}
	for _, g := range groups {
		ack.Groups = append(ack.Groups, toWireGroup(g))
	}

	s.metrics.Login("ok")
	s.logger.Info(ctx, "user online", "user_id", id, "conn_id", conn.ID(), "offline_msgs", len(queued))
	return ack
}

func toWireGroup(g models.Group) protocol.Group {
	out := protocol.Group{ID: g.ID, GroupName: g.Name, GroupDesc: g.Desc, Users: []protocol.Member{}}
	for _, m := range g.Members {
		out.Users = append(out.Users, protocol.Member{ID: m.ID, Name: m.Name, State: m.State, Role: m.Role})
	}
	return out
}

// Logout detaches id. It persists the offline state even when id was not
// attached here.
func (s *ChatService) Logout(ctx context.Context, id int) {
	s.registry.Remove(id)
	s.metrics.SetOnline(s.registry.Len())
	s.goOffline(ctx, id)
	s.logger.Info(ctx, "user offline", "user_id", id)
}

// Disconnect handles a connection that closed without a logout. It is a
// no-op for connections that never completed a login.
func (s *ChatService) Disconnect(ctx context.Context, conn registry.Conn) {
	for {
		id, ok := s.registry.RemoveByConn(conn)
		if !ok {
			return
		}
		s.metrics.SetOnline(s.registry.Len())
		s.goOffline(ctx, id)
		s.logger.Info(ctx, "user dropped", "user_id", id, "conn_id", conn.ID())
	}
}

func (s *ChatService) goOffline(ctx context.Context, id int) {
	_ = s.relay.Unsubscribe(ctx, id)
	if err := s.users.UpdateState(ctx, id, models.StateOffline); err != nil {
		s.logger.Error(ctx, "persist offline state", "user_id", id, "error", err)
	}
}

// Register creates an account and returns its acknowledgement.
func (s *ChatService) Register(ctx context.Context, name, password string) protocol.RegisterAck {
	id, err := s.users.Insert(ctx, name, password)
	if err != nil {
		s.logger.Warn(ctx, "register failed", "name", name, "error", err)
		return protocol.RegisterAck{Errno: protocol.ErrnoRegister}
	}
	s.logger.Info(ctx, "user registered", "user_id", id)
	return protocol.RegisterAck{Errno: protocol.ErrnoOK, ID: id}
}

// OneChat routes a direct message to its recipient and reports the path
// taken.
func (s *ChatService) OneChat(ctx context.Context, msg protocol.OneChat) string {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		s.logger.Error(ctx, "encode one chat", "from", msg.ID, "to", msg.To, "error", err)
		return ""
	}
	return s.route(ctx, msg.To, payload)
}

// GroupChat routes a group message to every member but the sender. Each
// member gets its own routing decision and none is skipped because of
// another's outcome.
func (s *ChatService) GroupChat(ctx context.Context, msg protocol.GroupChat) map[int]string {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		s.logger.Error(ctx, "encode group chat", "from", msg.ID, "group_id", msg.GroupID, "error", err)
		return nil
	}

	ids, err := s.groups.QueryMemberIDs(ctx, msg.ID, msg.GroupID)
	if err != nil {
		s.logger.Error(ctx, "load group members", "group_id", msg.GroupID, "error", err)
		return nil
	}

	paths := make(map[int]string, len(ids))
	for _, id := range ids {
		paths[id] = s.route(ctx, id, payload)
	}
	return paths
}

// route picks exactly one delivery path for payload: the recipient's local
// connection, the broker when the recipient is online on another
// instance, or the offline queue.
func (s *ChatService) route(ctx context.Context, to int, payload []byte) string {
	if conn, ok := s.registry.Lookup(to); ok {
		if err := conn.Send(protocol.Frame(payload)); err != nil {
			s.logger.Warn(ctx, "local send failed", "to", to, "conn_id", conn.ID(), "error", err)
		}
		s.metrics.Route(metrics.PathLocal)
		return metrics.PathLocal
	}

	user, err := s.users.Query(ctx, to)
	if err == nil && user.Online() {
		_ = s.relay.Publish(ctx, to, payload)
		s.metrics.Route(metrics.PathRelay)
		return metrics.PathRelay
	}

	if err := s.offline.Insert(ctx, to, payload); err != nil {
		s.logger.Error(ctx, "queue offline message", "to", to, "error", err)
	}
	s.metrics.Route(metrics.PathOffline)
	return metrics.PathOffline
}

// DeliverLocalOrQueue handles a payload relayed by another instance. It is
// sent on the local connection when userID is attached here and queued
// otherwise; the broker is never consulted again.
func (s *ChatService) DeliverLocalOrQueue(ctx context.Context, userID int, payload []byte) {
	if _, err := protocol.Unmarshal(payload); err != nil {
		s.logger.Warn(ctx, "dropping undecodable relayed payload", "user_id", userID, "error", err)
		return
	}

	if conn, ok := s.registry.Lookup(userID); ok {
		if err := conn.Send(protocol.Frame(payload)); err != nil {
			s.logger.Warn(ctx, "relayed send failed", "user_id", userID, "error", err)
		}
		s.metrics.Route(metrics.PathLocal)
		return
	}

	if err := s.offline.Insert(ctx, userID, payload); err != nil {
		s.logger.Error(ctx, "queue relayed message", "user_id", userID, "error", err)
	}
	s.metrics.Route(metrics.PathOffline)
}

func (s *ChatService) AddFriend(ctx context.Context, userID, friendID int) {
	if err := s.friends.Insert(ctx, userID, friendID); err != nil {
		s.logger.Warn(ctx, "add friend failed", "user_id", userID, "friend_id", friendID, "error", err)
	}
}

// CreateGroup creates a group with userID as its creator. It returns 0 when
// the group could not be created.
func (s *ChatService) CreateGroup(ctx context.Context, userID int, name, desc string) int {
	id, err := s.groups.Create(ctx, &models.Group{Name: name, Desc: desc})
	if err != nil {
		s.logger.Warn(ctx, "create group failed", "user_id", userID, "name", name, "error", err)
		return 0
	}
	if err := s.groups.AddMember(ctx, id, userID, models.RoleCreator); err != nil {
		s.logger.Error(ctx, "add group creator", "group_id", id, "user_id", userID, "error", err)
	}
	return id
}

func (s *ChatService) AddGroup(ctx context.Context, userID, groupID int) {
	if err := s.groups.AddMember(ctx, groupID, userID, models.RoleNormal); err != nil {
		s.logger.Warn(ctx, "join group failed", "user_id", userID, "group_id", groupID, "error", err)
	}
}

package services

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

// UserStore is the persisted account table, including the cross-instance
// presence state.
type UserStore interface {
	Query(ctx context.Context, id int) (*models.User, error)
	// Insert stores a new account and returns its id. password is the
	// plain text; the store decides how to keep it.
	Insert(ctx context.Context, name, password string) (int, error)
	UpdateState(ctx context.Context, id int, state string) error
	// ResetAllOnline forces every online account offline.
	ResetAllOnline(ctx context.Context) (int64, error)
	CheckCredential(user *models.User, password string) bool
}

type FriendStore interface {
	Insert(ctx context.Context, userID, friendID int) error
	Query(ctx context.Context, userID int) ([]models.User, error)
}

type GroupStore interface {
	Create(ctx context.Context, group *models.Group) (int, error)
	AddMember(ctx context.Context, groupID, userID int, role string) error
	QueryGroups(ctx context.Context, userID int) ([]models.Group, error)
	// QueryMemberIDs lists groupID's members except userID.
	QueryMemberIDs(ctx context.Context, userID, groupID int) ([]int, error)
}

// OfflineQueue holds unframed envelope payloads for users who were offline
// when a message was routed to them.
type OfflineQueue interface {
	Insert(ctx context.Context, userID int, payload []byte) error
	Query(ctx context.Context, userID int) ([][]byte, error)
	Remove(ctx context.Context, userID int) error
	// Take returns the queued payloads in insertion order and deletes
	// exactly those, atomically.
	Take(ctx context.Context, userID int) ([][]byte, error)
}

type Stores struct {
	Users   UserStore
	Friends FriendStore
	Groups  GroupStore
	Offline OfflineQueue
}

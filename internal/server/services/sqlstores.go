package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatmesh/internal/cryptox"
	"github.com/dmitrijs2005/chatmesh/internal/dbx"
	"github.com/dmitrijs2005/chatmesh/internal/server/models"
	"github.com/dmitrijs2005/chatmesh/internal/server/repositories/repomanager"
)

// NewSQLStores adapts the PostgreSQL repositories to the engine's store
// interfaces.
func NewSQLStores(db *sql.DB, rm repomanager.RepositoryManager) Stores {
	return Stores{
		Users:   &sqlUsers{db: db, rm: rm},
		Friends: &sqlFriends{db: db, rm: rm},
		Groups:  &sqlGroups{db: db, rm: rm},
		Offline: &sqlOffline{db: db, rm: rm},
	}
}

type sqlUsers struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func (s *sqlUsers) Query(ctx context.Context, id int) (*models.User, error) {
	return s.rm.Users(s.db).GetByID(ctx, id)
}

func (s *sqlUsers) Insert(ctx context.Context, name, password string) (int, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return 0, err
	}
	u, err := s.rm.Users(s.db).Create(ctx, &models.User{Name: name, Password: hash, State: models.StateOffline})
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (s *sqlUsers) UpdateState(ctx context.Context, id int, state string) error {
	return s.rm.Users(s.db).UpdateState(ctx, id, state)
}

func (s *sqlUsers) ResetAllOnline(ctx context.Context) (int64, error) {
	return s.rm.Users(s.db).ResetOnline(ctx)
}

func (s *sqlUsers) CheckCredential(user *models.User, password string) bool {
	if user == nil {
		return false
	}
	ok, err := cryptox.CheckPassword(user.Password, password)
	return err == nil && ok
}

type sqlFriends struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func (s *sqlFriends) Insert(ctx context.Context, userID, friendID int) error {
	return s.rm.Friends(s.db).Add(ctx, userID, friendID)
}

func (s *sqlFriends) Query(ctx context.Context, userID int) ([]models.User, error) {
	return s.rm.Friends(s.db).List(ctx, userID)
}

type sqlGroups struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func (s *sqlGroups) Create(ctx context.Context, group *models.Group) (int, error) {
	g, err := s.rm.Groups(s.db).Create(ctx, group)
	if err != nil {
		return 0, err
	}
	return g.ID, nil
}

func (s *sqlGroups) AddMember(ctx context.Context, groupID, userID int, role string) error {
	return s.rm.Groups(s.db).AddMember(ctx, groupID, userID, role)
}

func (s *sqlGroups) QueryGroups(ctx context.Context, userID int) ([]models.Group, error) {
	return s.rm.Groups(s.db).ListForUser(ctx, userID)
}

func (s *sqlGroups) QueryMemberIDs(ctx context.Context, userID, groupID int) ([]int, error) {
	return s.rm.Groups(s.db).MemberIDs(ctx, groupID, userID)
}

type sqlOffline struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func (s *sqlOffline) Insert(ctx context.Context, userID int, payload []byte) error {
	return s.rm.Offline(s.db).Insert(ctx, userID, payload)
}

func (s *sqlOffline) Query(ctx context.Context, userID int) ([][]byte, error) {
	msgs, err := s.rm.Offline(s.db).List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return payloads(msgs), nil
}

func (s *sqlOffline) Remove(ctx context.Context, userID int) error {
	return s.rm.Offline(s.db).DeleteAll(ctx, userID)
}

// Take reads and deletes inside one transaction. Only rows up to the
// highest id read are deleted, so a message queued concurrently stays for
// the next login.
func (s *sqlOffline) Take(ctx context.Context, userID int) ([][]byte, error) {
	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) ([][]byte, error) {
		repo := s.rm.Offline(tx)
		msgs, err := repo.List(ctx, userID)
		if err != nil || len(msgs) == 0 {
			return nil, err
		}
		if _, err := repo.DeleteUpTo(ctx, userID, msgs[len(msgs)-1].ID); err != nil {
			return nil, err
		}
		return payloads(msgs), nil
	})
}

func payloads(msgs []models.OfflineMessage) [][]byte {
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.Payload
	}
	return out
}

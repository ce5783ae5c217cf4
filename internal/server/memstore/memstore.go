// Package memstore keeps users, friendships, groups and the offline queue
// in process memory. It backs the memory:// database DSN and the engine
// tests; nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/cryptox"
	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

// Store owns all tables behind one lock. Its views (Users, Friends,
// Groups, Offline) each satisfy one of the engine's store interfaces.
type Store struct {
	mu sync.Mutex

	users   map[int]*models.User
	names   map[string]int
	friends map[int]map[int]struct{}
	groups  map[int]*models.Group
	members map[int]map[int]string
	offline map[int][]models.OfflineMessage

	nextUser    int
	nextGroup   int
	nextOffline int64
}

func New() *Store {
	return &Store{
		users:   make(map[int]*models.User),
		names:   make(map[string]int),
		friends: make(map[int]map[int]struct{}),
		groups:  make(map[int]*models.Group),
		members: make(map[int]map[int]string),
		offline: make(map[int][]models.OfflineMessage),
	}
}

func (s *Store) Users() *Users     { return &Users{s} }
func (s *Store) Friends() *Friends { return &Friends{s} }
func (s *Store) Groups() *Groups   { return &Groups{s} }
func (s *Store) Offline() *Offline { return &Offline{s} }

type Users struct{ s *Store }

func (u *Users) Query(_ context.Context, id int) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *Users) Insert(_ context.Context, name, password string) (int, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return 0, err
	}

	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, taken := u.s.names[name]; taken {
		return 0, fmt.Errorf("user %q already exists", name)
	}
	u.s.nextUser++
	id := u.s.nextUser
	u.s.users[id] = &models.User{ID: id, Name: name, Password: hash, State: models.StateOffline}
	u.s.names[name] = id
	return id, nil
}

func (u *Users) UpdateState(_ context.Context, id int, state string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	user.State = state
	return nil
}

func (u *Users) ResetAllOnline(_ context.Context) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	var n int64
	for _, user := range u.s.users {
		if user.State == models.StateOnline {
			user.State = models.StateOffline
			n++
		}
	}
	return n, nil
}

func (u *Users) CheckCredential(user *models.User, password string) bool {
	if user == nil {
		return false
	}
	ok, err := cryptox.CheckPassword(user.Password, password)
	return err == nil && ok
}

type Friends struct{ s *Store }

func (f *Friends) Insert(_ context.Context, userID, friendID int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if _, ok := f.s.users[friendID]; !ok {
		return common.ErrorNotFound
	}
	set, ok := f.s.friends[userID]
	if !ok {
		set = make(map[int]struct{})
		f.s.friends[userID] = set
	}
	set[friendID] = struct{}{}
	return nil
}

func (f *Friends) Query(_ context.Context, userID int) ([]models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	var out []models.User
	for id := range f.s.friends[userID] {
		if u, ok := f.s.users[id]; ok {
			out = append(out, models.User{ID: u.ID, Name: u.Name, State: u.State})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type Groups struct{ s *Store }

func (g *Groups) Create(_ context.Context, group *models.Group) (int, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	for _, existing := range g.s.groups {
		if existing.Name == group.Name {
			return 0, fmt.Errorf("group %q already exists", group.Name)
		}
	}
	g.s.nextGroup++
	id := g.s.nextGroup
	g.s.groups[id] = &models.Group{ID: id, Name: group.Name, Desc: group.Desc}
	g.s.members[id] = make(map[int]string)
	group.ID = id
	return id, nil
}

func (g *Groups) AddMember(_ context.Context, groupID, userID int, role string) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	roster, ok := g.s.members[groupID]
	if !ok {
		return common.ErrorNotFound
	}
	if _, ok := g.s.users[userID]; !ok {
		return common.ErrorNotFound
	}
	if _, ok := roster[userID]; !ok {
		roster[userID] = role
	}
	return nil
}

func (g *Groups) QueryGroups(_ context.Context, userID int) ([]models.Group, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	var out []models.Group
	for id, roster := range g.s.members {
		if _, ok := roster[userID]; !ok {
			continue
		}
		grp := *g.s.groups[id]
		grp.Members = nil
		for _, uid := range sortedKeys(roster) {
			u := g.s.users[uid]
			grp.Members = append(grp.Members, models.GroupMember{
				User: models.User{ID: u.ID, Name: u.Name, State: u.State},
				Role: roster[uid],
			})
		}
		out = append(out, grp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Groups) QueryMemberIDs(_ context.Context, userID, groupID int) ([]int, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	var ids []int
	for _, id := range sortedKeys(g.s.members[groupID]) {
		if id != userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

type Offline struct{ s *Store }

func (o *Offline) Insert(_ context.Context, userID int, payload []byte) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	o.s.nextOffline++
	o.s.offline[userID] = append(o.s.offline[userID], models.OfflineMessage{
		ID:      o.s.nextOffline,
		UserID:  userID,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

func (o *Offline) Query(_ context.Context, userID int) ([][]byte, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return copyPayloads(o.s.offline[userID]), nil
}

func (o *Offline) Remove(_ context.Context, userID int) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	delete(o.s.offline, userID)
	return nil
}

func (o *Offline) Take(_ context.Context, userID int) ([][]byte, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	out := copyPayloads(o.s.offline[userID])
	delete(o.s.offline, userID)
	return out, nil
}

func copyPayloads(msgs []models.OfflineMessage) [][]byte {
	if len(msgs) == 0 {
		return nil
	}
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		out[i] = append([]byte(nil), m.Payload...)
	}
	return out
}

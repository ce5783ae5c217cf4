// Package registry tracks which users are attached to this server
// instance and the connection each one is attached through.
package registry

import (
	"sort"
	"sync"
)

// Conn is the part of a live transport session the registry and the
// routing engine need.
type Conn interface {
	// ID is unique per accepted connection for the life of the process.
	ID() string
	RemoteAddr() string
	// Send queues one already framed message for the peer.
	Send(frame []byte) error
}

// Registry maps user ids to connections. One mutex guards the whole table
// and is never held across I/O.
type Registry struct {
	mu    sync.Mutex
	conns map[int]Conn
}

func New() *Registry {
	return &Registry{conns: make(map[int]Conn)}
}

// Insert attaches conn for userID. It returns false and leaves the table
// untouched when userID already has an entry or conn is already attached
// for some user: a connection carries at most one user.
func (r *Registry) Insert(userID int, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; ok {
		return false
	}
	if _, ok := r.owner(conn); ok {
		return false
	}
	r.conns[userID] = conn
	return true
}

// Owner returns the user attached through conn.
func (r *Registry) Owner(conn Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner(conn)
}

func (r *Registry) owner(conn Conn) (int, bool) {
	for id, c := range r.conns {
		if c == conn {
			return id, true
		}
	}
	return 0, false
}

// Remove detaches userID and reports whether an entry existed.
func (r *Registry) Remove(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; !ok {
		return false
	}
	delete(r.conns, userID)
	return true
}

// RemoveByConn finds the user attached through conn, removes it and
// returns its id. The lock is held for the whole scan.
func (r *Registry) RemoveByConn(conn Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.owner(conn)
	if ok {
		delete(r.conns, id)
	}
	return id, ok
}

func (r *Registry) Lookup(userID int) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[userID]
	return c, ok
}

// IDs returns a sorted snapshot of the attached user ids.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	ids := make([]int, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Ints(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

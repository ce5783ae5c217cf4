// Package models holds the persisted chat entities as the server's stores
// see them.
package models

// Persisted presence states.
const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// User is an account row. Password holds the bcrypt hash, never the
// plain text.
type User struct {
	ID       int
	Name     string
	Password string
	State    string
}

func (u *User) Online() bool {
	return u != nil && u.State == StateOnline
}

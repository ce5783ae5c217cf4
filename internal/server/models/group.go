package models

// Group member roles.
const (
	RoleCreator = "creator"
	RoleNormal  = "normal"
)

type GroupMember struct {
	User
	Role string
}

type Group struct {
	ID      int
	Name    string
	Desc    string
	Members []GroupMember
}

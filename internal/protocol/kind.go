// Package protocol implements the chatmesh wire format: a 4-byte
// big-endian length prefix followed by a JSON payload whose "msgid" field
// selects one of a fixed set of envelope kinds.
package protocol

import "strconv"

// Kind is the envelope discriminator carried in the "msgid" field.
type Kind int

const (
	KindLogin       Kind = 1
	KindLoginAck    Kind = 2
	KindLogout      Kind = 3
	KindRegister    Kind = 4
	KindRegisterAck Kind = 5
	KindOneChat     Kind = 6
	KindAddFriend   Kind = 7
	KindCreateGroup Kind = 8
	KindAddGroup    Kind = 9
	KindGroupChat   Kind = 10
)

var kindNames = map[Kind]string{
	KindLogin:       "LOGIN",
	KindLoginAck:    "LOGIN_ACK",
	KindLogout:      "LOGOUT",
	KindRegister:    "REGISTER",
	KindRegisterAck: "REGISTER_ACK",
	KindOneChat:     "ONE_CHAT",
	KindAddFriend:   "ADD_FRIEND",
	KindCreateGroup: "CREATE_GROUP",
	KindAddGroup:    "ADD_GROUP",
	KindGroupChat:   "GROUP_CHAT",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "KIND(" + strconv.Itoa(int(k)) + ")"
}

// Known reports whether k is one of the defined kinds.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

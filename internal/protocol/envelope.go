package protocol

// Envelope is one decoded wire message. Every concrete type below is a
// value type; envelopes are not mutated once built.
type Envelope interface {
	Kind() Kind
}

// Error numbers carried in acknowledgements.
const (
	ErrnoOK            = 0
	ErrnoAuth          = 1
	ErrnoAlreadyOnline = 2
	ErrnoRegister      = 1
)

// Presence states and group roles as they appear on the wire.
const (
	StateOnline  = "online"
	StateOffline = "offline"

	RoleCreator = "creator"
	RoleNormal  = "normal"
)

type Login struct {
	ID       int    `json:"id"`
	Password string `json:"password"`
}

type Friend struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type Member struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Role  string `json:"role"`
}

type Group struct {
	ID        int      `json:"id"`
	GroupName string   `json:"groupname"`
	GroupDesc string   `json:"groupdesc"`
	Users     []Member `json:"users"`
}

// LoginAck answers a Login. On success it carries the initial snapshot:
// queued offline payloads (each an unframed envelope), friends and groups.
// An empty list and a nil one are the same on the wire: both are omitted
// and decode as nil.
type LoginAck struct {
	Errno      int      `json:"errno"`
	Errmsg     string   `json:"errmsg,omitempty"`
	ID         int      `json:"id,omitempty"`
	Name       string   `json:"name,omitempty"`
	OfflineMsg []string `json:"offlinemsg,omitempty"`
	Friends    []Friend `json:"friends,omitempty"`
	Groups     []Group  `json:"groups,omitempty"`
}

type Logout struct {
	ID int `json:"id"`
}

type Register struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type RegisterAck struct {
	Errno int `json:"errno"`
	ID    int `json:"id,omitempty"`
}

// OneChat is a direct message. ID and Name identify the sender.
type OneChat struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	To   int    `json:"to"`
	Msg  string `json:"msg"`
	Time string `json:"time"`
}

type AddFriend struct {
	ID       int `json:"id"`
	FriendID int `json:"friend_id"`
}

type CreateGroup struct {
	ID        int    `json:"id"`
	GroupName string `json:"groupname"`
	GroupDesc string `json:"groupdesc"`
}

type AddGroup struct {
	ID      int `json:"id"`
	GroupID int `json:"group_id"`
}

// GroupChat is a group message. ID and Name identify the sender.
type GroupChat struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	GroupID int    `json:"group_id"`
	Msg     string `json:"msg"`
	Time    string `json:"time"`
}

func (Login) Kind() Kind       { return KindLogin }
func (LoginAck) Kind() Kind    { return KindLoginAck }
func (Logout) Kind() Kind      { return KindLogout }
func (Register) Kind() Kind    { return KindRegister }
func (RegisterAck) Kind() Kind { return KindRegisterAck }
func (OneChat) Kind() Kind     { return KindOneChat }
func (AddFriend) Kind() Kind   { return KindAddFriend }
func (CreateGroup) Kind() Kind { return KindCreateGroup }
func (AddGroup) Kind() Kind    { return KindAddGroup }
func (GroupChat) Kind() Kind   { return KindGroupChat }

package models

import "time"

// Conversation kinds stored in the local history.
const (
	KindChat  = "chat"
	KindGroup = "group"
)

// HistoryEntry is one chat line seen by this client, sent or received.
// Peer is the other user for direct chats and the group id for group
// chats.
type HistoryEntry struct {
	ID        int64
	Kind      string
	Peer      int
	FromID    int
	FromName  string
	Msg       string
	SentAt    string
	Outgoing  bool
	CreatedAt time.Time
}

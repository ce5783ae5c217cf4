package models

import "time"

// OfflineMessage is an unframed envelope payload waiting for UserID to log in.
type OfflineMessage struct {
	ID        int64
	UserID    int
	Payload   []byte
	CreatedAt time.Time
}

// Package history stores the chat lines a client has sent and received.
package history

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/client/models"
)

type Repository interface {
	Add(ctx context.Context, e *models.HistoryEntry) (int64, error)
	// List returns up to limit entries, oldest first. An empty kind lists
	// every conversation.
	List(ctx context.Context, kind string, peer int, limit int) ([]models.HistoryEntry, error)
	Clear(ctx context.Context) error
}

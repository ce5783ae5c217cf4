package offline

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, userID int, payload []byte) error
	List(ctx context.Context, userID int) ([]models.OfflineMessage, error)
	DeleteUpTo(ctx context.Context, userID int, maxID int64) (int64, error)
	DeleteAll(ctx context.Context, userID int) error
}

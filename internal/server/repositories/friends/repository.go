package friends

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

type Repository interface {
	Add(ctx context.Context, userID, friendID int) error
	List(ctx context.Context, userID int) ([]models.User, error)
}

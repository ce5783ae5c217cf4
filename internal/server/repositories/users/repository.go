package users

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	UpdateState(ctx context.Context, id int, state string) error
	ResetOnline(ctx context.Context) (int64, error)
}

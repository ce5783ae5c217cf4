package groups

import (
	"context"

	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	AddMember(ctx context.Context, groupID, userID int, role string) error
	ListForUser(ctx context.Context, userID int) ([]models.Group, error)
	MemberIDs(ctx context.Context, groupID, excludeUserID int) ([]int, error)
}

package groups

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatmesh/internal/dbx"
	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query :=
		`INSERT INTO groups (groupname, groupdesc)
		 VALUES ($1, $2)
		 RETURNING id
		 `

	if err := r.db.QueryRowContext(ctx, query, group.Name, group.Desc).Scan(&group.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return group, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, groupID, userID int, role string) error {
	query :=
		`INSERT INTO group_users (group_id, user_id, grouprole)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, groupID, userID, role); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListForUser returns every group userID belongs to, each with its full
// member roster.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID int) ([]models.Group, error) {
	query :=
		`SELECT g.id, g.groupname, g.groupdesc FROM groups g
		 INNER JOIN group_users gu ON gu.group_id = g.id
		 WHERE gu.user_id = $1
		 ORDER BY g.id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var out []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Desc); err != nil {
			rows.Close()
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("db error: %w", err)
	}
	rows.Close()

	for i := range out {
		members, err := r.members(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}

	return out, nil
}

func (r *PostgresRepository) members(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	query :=
		`SELECT u.id, u.name, u.state, gu.grouprole FROM users u
		 INNER JOIN group_users gu ON gu.user_id = u.id
		 WHERE gu.group_id = $1
		 ORDER BY u.id
		 `

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.GroupMember
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.ID, &m.Name, &m.State, &m.Role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// MemberIDs lists the members of groupID other than excludeUserID.
func (r *PostgresRepository) MemberIDs(ctx context.Context, groupID, excludeUserID int) ([]int, error) {
	query :=
		`SELECT user_id FROM group_users
		 WHERE group_id = $1 AND user_id <> $2
		 ORDER BY user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, groupID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

package friends

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

// Add records friendID in userID's friend list. Adding an existing friend
// is a no-op.
func (r *PostgresRepository) Add(ctx context.Context, userID, friendID int) error {
	query :=
		`INSERT INTO friends (user_id, friend_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]models.User, error) {
	query :=
		`SELECT u.id, u.name, u.state FROM users u
		 INNER JOIN friends f ON f.friend_id = u.id
		 WHERE f.user_id = $1
		 ORDER BY u.id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.State); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

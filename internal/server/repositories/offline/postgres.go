package offline

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

func (r *PostgresRepository) Insert(ctx context.Context, userID int, payload []byte) error {
	query :=
		`INSERT INTO offline_messages (user_id, message)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, payload); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns the queued messages for userID in insertion order.
func (r *PostgresRepository) List(ctx context.Context, userID int) ([]models.OfflineMessage, error) {
	query :=
		`SELECT id, user_id, message, created_at FROM offline_messages
		 WHERE user_id = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.OfflineMessage
	for rows.Next() {
		var m models.OfflineMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// DeleteUpTo removes the messages of userID with id <= maxID, leaving any
// that were queued after the caller's List.
func (r *PostgresRepository) DeleteUpTo(ctx context.Context, userID int, maxID int64) (int64, error) {
	query :=
		`DELETE FROM offline_messages
		 WHERE user_id = $1 AND id <= $2
		 `

	res, err := r.db.ExecContext(ctx, query, userID, maxID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context, userID int) error {
	query :=
		`DELETE FROM offline_messages
		 WHERE user_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

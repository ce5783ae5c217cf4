package history

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatmesh/internal/client/models"
	"github.com/dmitrijs2005/chatmesh/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, e *models.HistoryEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO history (kind, peer, from_id, from_name, msg, sent_at, outgoing)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Kind, e.Peer, e.FromID, e.FromName, e.Msg, e.SentAt, e.Outgoing)
	if err != nil {
		return 0, fmt.Errorf("failed to add history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read history id: %w", err)
	}
	e.ID = id
	return id, nil
}

func (r *SQLiteRepository) List(ctx context.Context, kind string, peer int, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, kind, peer, from_id, from_name, msg, sent_at, outgoing, created_at
		FROM (
			SELECT * FROM history
			WHERE (? = '' OR (kind = ? AND peer = ?))
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, kind, kind, peer, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Peer, &e.FromID, &e.FromName, &e.Msg, &e.SentAt, &e.Outgoing, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return out, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatmesh/internal/common"
	"github.com/dmitrijs2005/chatmesh/internal/dbx"
	"github.com/dmitrijs2005/chatmesh/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (name, password, state)
         VALUES ($1, $2, $3)
		 RETURNING id
		 `

	if user.State == "" {
		user.State = models.StateOffline
	}

	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Password, user.State).Scan(&user.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query :=
		`SELECT id, name, password, state FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Name, &user.Password, &user.State)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) UpdateState(ctx context.Context, id int, state string) error {
	query :=
		`UPDATE users SET state = $1
		 WHERE id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

// ResetOnline marks every online user offline and returns how many rows
// changed. It runs once at startup, before any connection is accepted.
func (r *PostgresRepository) ResetOnline(ctx context.Context) (int64, error) {
	query :=
		`UPDATE users SET state = 'offline'
		 WHERE state = 'online'
		 `

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

package client

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatmesh/internal/client/migrations"
	"github.com/dmitrijs2005/chatmesh/internal/client/repositories/history"
	"github.com/dmitrijs2005/chatmesh/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	History history.Repository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{History: history.NewSQLiteRepository(db)}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	// Set the database dialect
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite file at dsn, creating its directory if
// needed, and brings its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != ":memory:" {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

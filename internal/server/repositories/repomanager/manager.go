package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatmesh/internal/dbx"
	"github.com/dmitrijs2005/chatmesh/internal/server/repositories/friends"
	"github.com/dmitrijs2005/chatmesh/internal/server/repositories/groups"
	"github.com/dmitrijs2005/chatmesh/internal/server/repositories/offline"
	"github.com/dmitrijs2005/chatmesh/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Friends(db dbx.DBTX) friends.Repository
	Groups(db dbx.DBTX) groups.Repository
	Offline(db dbx.DBTX) offline.Repository
}

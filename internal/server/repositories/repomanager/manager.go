package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/accounthub/internal/dbx"
	"github.com/dmitrijs2005/accounthub/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so callers choose
// between the pool and a transaction per call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

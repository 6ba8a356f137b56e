package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/mailtoken/internal/dbx"
	"github.com/dmitrijs2005/mailtoken/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX (pool, connection or
// transaction) and owns schema migrations. A different store engine plugs
// in by providing another implementation.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/diagrams/internal/dbx"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/diagrams"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Revocations(db dbx.DBTX) revocations.Repository
	Diagrams(db dbx.DBTX) diagrams.Repository
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/telegraph-app/telegraph/internal/dbx"
	"github.com/telegraph-app/telegraph/internal/server/repositories/friends"
	"github.com/telegraph-app/telegraph/internal/server/repositories/history"
	"github.com/telegraph-app/telegraph/internal/server/repositories/images"
	"github.com/telegraph-app/telegraph/internal/server/repositories/refreshtokens"
	"github.com/telegraph-app/telegraph/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Images(db dbx.DBTX) images.Repository
	History(db dbx.DBTX) history.Repository
	Friends(db dbx.DBTX) friends.Repository
}

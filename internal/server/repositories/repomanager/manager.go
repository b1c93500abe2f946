package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/channels"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/messages"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/pairingcodes"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/sessions"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works on the pool and inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Channels(db dbx.DBTX) channels.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
	PairingCodes(db dbx.DBTX) pairingcodes.Repository
	Messages(db dbx.DBTX) messages.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}

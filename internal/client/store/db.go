// Package store opens the CLI's sqlite state file and vends its
// repositories.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/dropbox/internal/client/migrations"
	"github.com/dmitrijs2005/dropbox/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dropbox/internal/client/repositories/profiles"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// RunMigrations applies the embedded migrations. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the state file at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite free of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Metadata returns the key/value repository bound to db.
func Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// Profiles returns the profile repository bound to db.
func Profiles(db dbx.DBTX) profiles.Repository {
	return profiles.NewSQLiteRepository(db)
}

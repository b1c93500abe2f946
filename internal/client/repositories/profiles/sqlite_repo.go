package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/client/models"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
)

const selectColumns = `SELECT name, server_url, channel_id, label, secret, nonce, cursor, created_at FROM profiles`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, p *models.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (name, server_url, channel_id, label, secret, nonce, cursor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			server_url = excluded.server_url,
			channel_id = excluded.channel_id,
			label      = excluded.label,
			secret     = excluded.secret,
			nonce      = excluded.nonce
	`, p.Name, p.ServerURL, p.ChannelID, p.Label, p.Secret, p.Nonce, p.Cursor, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.Name, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*models.Profile, error) {
	var (
		p         models.Profile
		cursor    sql.NullString
		createdAt string
	)
	if err := s.Scan(&p.Name, &p.ServerURL, &p.ChannelID, &p.Label, &p.Secret, &p.Nonce, &cursor, &createdAt); err != nil {
		return nil, err
	}
	if cursor.Valid {
		p.Cursor = &cursor.String
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("profile %s: bad created_at: %w", p.Name, err)
	}
	p.CreatedAt = t
	return &p, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, name string) (*models.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, selectColumns+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", common.ErrorNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", name, err)
	}
	return p, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	return r.exec(ctx, "delete", name, `DELETE FROM profiles WHERE name = ?`, name)
}

func (r *SQLiteRepository) SetCursor(ctx context.Context, name, cursor string) error {
	return r.exec(ctx, "set cursor of", name, `UPDATE profiles SET cursor = ? WHERE name = ?`, cursor, name)
}

// exec runs a single-row statement and maps zero affected rows to
// common.ErrorNotFound.
func (r *SQLiteRepository) exec(ctx context.Context, op, name, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s profile %s: %w", op, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s profile %s: %w", op, name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: profile %s", common.ErrorNotFound, name)
	}
	return nil
}

// Package apikeys persists hashed bearer credentials.
package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a key row. Only the hash is stored.
func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `INSERT INTO api_keys (id, channel_id, key_hash, label, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, key.ID, key.ChannelID, key.KeyHash, key.Label, key.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// FindActiveByHash returns the non-revoked key with the given hash, or
// common.ErrorNotFound.
func (r *PostgresRepository) FindActiveByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	query := `SELECT id, channel_id, key_hash, label, created_at FROM api_keys
		WHERE key_hash=$1 AND revoked_at IS NULL`

	k := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&k.ID, &k.ChannelID, &k.KeyHash, &k.Label, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select api key: %w", err)
	}
	return k, nil
}

// Revoke stamps revoked_at on an active key of channelID.
func (r *PostgresRepository) Revoke(ctx context.Context, id, channelID string, at time.Time) error {
	query := `UPDATE api_keys SET revoked_at=$3 WHERE id=$1 AND channel_id=$2 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, channelID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ListByChannel returns every key of a channel, revoked ones included,
// oldest first.
func (r *PostgresRepository) ListByChannel(ctx context.Context, channelID string) ([]*models.APIKey, error) {
	query := `SELECT id, channel_id, key_hash, label, created_at, revoked_at FROM api_keys
		WHERE channel_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to select api keys: %w", err)
	}
	defer rows.Close()

	var result []*models.APIKey
	for rows.Next() {
		var (
			k       models.APIKey
			revoked sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.ChannelID, &k.KeyHash, &k.Label, &k.CreatedAt, &revoked); err != nil {
			return nil, err
		}
		if revoked.Valid {
			t := revoked.Time
			k.RevokedAt = &t
		}
		result = append(result, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

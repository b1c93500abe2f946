// Package pairingcodes persists short-lived pairing codes.
package pairingcodes

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

// Create inserts a new code. A duplicate code surfaces the driver error
// wrapped, so callers can test it with dbx.IsUniqueViolation.
func (r *PostgresRepository) Create(ctx context.Context, p *models.PairingCode) error {
	query := `INSERT INTO pairing_codes (code, channel_id, api_key, encrypted_channel_key, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, false)`
	if _, err := r.db.ExecContext(ctx, query, p.Code, p.ChannelID, p.APIKey, p.EncryptedChannelKey, p.ExpiresAt); err != nil {
		return fmt.Errorf("failed to insert pairing code: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, code string) (*models.PairingCode, error) {
	query := `SELECT code, channel_id, api_key, encrypted_channel_key, expires_at, used
		FROM pairing_codes WHERE code=$1`

	p := &models.PairingCode{}
	err := r.db.QueryRowContext(ctx, query, code).
		Scan(&p.Code, &p.ChannelID, &p.APIKey, &p.EncryptedChannelKey, &p.ExpiresAt, &p.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select pairing code: %w", err)
	}
	return p, nil
}

// MarkUsed flips the used latch if the code is unused and not expired at
// at. Exactly one concurrent caller can win; everyone else gets
// common.ErrorGone.
func (r *PostgresRepository) MarkUsed(ctx context.Context, code string, at time.Time) error {
	query := `UPDATE pairing_codes SET used=true WHERE code=$1 AND used=false AND expires_at >= $2`
	res, err := r.db.ExecContext(ctx, query, code, at)
	if err != nil {
		return fmt.Errorf("failed to mark pairing code used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorGone
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// DeleteExpired removes codes that expired before the given instant and
// returns how many rows went away.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pairing_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pairing codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

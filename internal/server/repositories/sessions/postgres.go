// Package sessions persists the relational index of capture sessions.
package sessions

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

const sessionColumns = `id, channel_id, started_at, ended_at, status, file_count, last_activity_at, finalize_token`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.CaptureSession, error) {
	var (
		s       models.CaptureSession
		endedAt sql.NullTime
		status  string
	)
	if err := row.Scan(&s.ID, &s.ChannelID, &s.StartedAt, &endedAt, &status, &s.FileCount, &s.LastActivityAt, &s.FinalizeToken); err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	s.StartedAt = s.StartedAt.UTC()
	s.LastActivityAt = s.LastActivityAt.UTC()
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		s.EndedAt = &t
	}
	return &s, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.CaptureSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select capture session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.CaptureSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select capture sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.CaptureSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.CaptureSession) error {
	query := `INSERT INTO capture_sessions (id, channel_id, started_at, status, file_count, last_activity_at, finalize_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.ChannelID, s.StartedAt, string(s.Status), s.FileCount, s.LastActivityAt, s.FinalizeToken)
	if err != nil {
		return fmt.Errorf("failed to insert capture session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetActive(ctx context.Context, id, channelID string) (*models.CaptureSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM capture_sessions
		WHERE id=$1 AND channel_id=$2 AND status='active'`, id, channelID)
}

func (r *PostgresRepository) GetActiveByID(ctx context.Context, id string) (*models.CaptureSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM capture_sessions
		WHERE id=$1 AND status='active'`, id)
}

func (r *PostgresRepository) Get(ctx context.Context, id, channelID string) (*models.CaptureSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM capture_sessions
		WHERE id=$1 AND channel_id=$2`, id, channelID)
}

// RecordUpload bumps file_count and last_activity_at.
func (r *PostgresRepository) RecordUpload(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE capture_sessions SET file_count = file_count + 1, last_activity_at=$2 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
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

func (r *PostgresRepository) Complete(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	query := `UPDATE capture_sessions SET status='completed', ended_at=$2, last_activity_at=$2
		WHERE id=$1 AND status='active'`
	res, err := r.db.ExecContext(ctx, query, id, endedAt)
	if err != nil {
		return false, fmt.Errorf("failed to complete capture session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// List returns the channel's sessions, newest first. An empty status means
// every status.
func (r *PostgresRepository) List(ctx context.Context, channelID string, status models.SessionStatus) ([]*models.CaptureSession, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+sessionColumns+` FROM capture_sessions
			WHERE channel_id=$1 ORDER BY started_at DESC`, channelID)
	}
	return r.list(ctx, `SELECT `+sessionColumns+` FROM capture_sessions
		WHERE channel_id=$1 AND status=$2 ORDER BY started_at DESC`, channelID, string(status))
}

// ListIdle returns active sessions whose last activity is older than before.
func (r *PostgresRepository) ListIdle(ctx context.Context, before time.Time) ([]*models.CaptureSession, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM capture_sessions
		WHERE status='active' AND last_activity_at < $1`, before)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, channelID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM capture_sessions WHERE id=$1 AND channel_id=$2`, id, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete capture session: %w", err)
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

package pairingcodes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var expires = time.Date(2025, 3, 1, 12, 10, 0, 0, time.UTC)

func samplePairingCode() *models.PairingCode {
	return &models.PairingCode{
		Code:                "012345",
		ChannelID:           "c1",
		APIKey:              "sk-abc",
		EncryptedChannelKey: "opaque-blob",
		ExpiresAt:           expires,
	}
}

func TestCreate(t *testing.T) {
	q := `(?s)INSERT INTO pairing_codes \(code, channel_id, api_key, encrypted_channel_key, expires_at, used\).*VALUES \(\$1, \$2, \$3, \$4, \$5, false\)`

	t.Run("ok", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(q).
			WithArgs("012345", "c1", "sk-abc", "opaque-blob", expires).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), samplePairingCode()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate code is detectable", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(q).WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(context.Background(), samplePairingCode())
		require.Error(t, err)
		assert.True(t, dbx.IsUniqueViolation(err))
	})
}

func TestGet(t *testing.T) {
	q := `(?s)SELECT code, channel_id, api_key, encrypted_channel_key, expires_at, used\s+FROM pairing_codes WHERE code=\$1`
	cols := []string{"code", "channel_id", "api_key", "encrypted_channel_key", "expires_at", "used"}

	t.Run("found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("012345").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("012345", "c1", "sk-abc", "opaque-blob", expires, true))

		p, err := repo.Get(context.Background(), "012345")
		require.NoError(t, err)
		want := samplePairingCode()
		want.Used = true
		assert.Equal(t, want, p)
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("999999").WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.Get(context.Background(), "999999")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestMarkUsed(t *testing.T) {
	q := `UPDATE pairing_codes SET used=true WHERE code=\$1 AND used=false AND expires_at >= \$2`
	at := expires.Add(-time.Minute)

	tests := []struct {
		name    string
		result  func(m sqlmock.Sqlmock)
		wantErr error
		errText string
	}{
		{
			name: "latch flipped",
			result: func(m sqlmock.Sqlmock) {
				m.ExpectExec(q).WithArgs("012345", at).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already used or expired",
			result: func(m sqlmock.Sqlmock) {
				m.ExpectExec(q).WithArgs("012345", at).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: common.ErrorGone,
		},
		{
			name: "db error",
			result: func(m sqlmock.Sqlmock) {
				m.ExpectExec(q).WithArgs("012345", at).WillReturnError(errors.New("db down"))
			},
			errText: "failed to mark pairing code used: db down",
		},
		{
			name: "unexpected count",
			result: func(m sqlmock.Sqlmock) {
				m.ExpectExec(q).WithArgs("012345", at).WillReturnResult(sqlmock.NewResult(0, 2))
			},
			errText: "unexpected rows affected: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()
			tt.result(mock)

			err := repo.MarkUsed(context.Background(), "012345", at)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM pairing_codes WHERE expires_at < \$1`).
		WithArgs(expires).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), expires)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

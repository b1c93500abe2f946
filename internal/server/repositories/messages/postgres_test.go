package messages

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var t0 = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

const insertQ = `(?s)INSERT INTO messages \(id, channel_id, sender, content_type, body, nonce, created_at\).*GREATEST.*RETURNING created_at`

func TestCreate_AssignsReturnedTimestamp(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	bumped := t0.Add(time.Microsecond)
	mock.ExpectQuery(insertQ).
		WithArgs("m1", "c1", "agent", sql.NullString{String: "text/plain", Valid: true}, []byte{1, 2}, []byte{3}, t0).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(bumped))

	ct := "text/plain"
	m := &models.Message{ID: "m1", ChannelID: "c1", Sender: "agent", ContentType: &ct, Body: []byte{1, 2}, Nonce: []byte{3}, CreatedAt: t0}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.True(t, m.CreatedAt.Equal(bumped))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NilContentType(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs("m1", "c1", "client", sql.NullString{}, []byte("b"), []byte("n"), t0).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(t0))

	m := &models.Message{ID: "m1", ChannelID: "c1", Sender: "client", Body: []byte("b"), Nonce: []byte("n"), CreatedAt: t0}
	require.NoError(t, repo.Create(context.Background(), m))
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Message{ID: "m1", CreatedAt: t0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert message: db down")
}

func TestList(t *testing.T) {
	cols := []string{"id", "channel_id", "sender", "content_type", "body", "nonce", "created_at"}

	t.Run("all", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(`(?s)FROM messages\s+WHERE channel_id=\$1 ORDER BY created_at ASC, seq ASC`).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("m1", "c1", "agent", nil, []byte("b1"), []byte("n1"), t0).
				AddRow("m2", "c1", "client", "application/json", []byte("b2"), []byte("n2"), t0.Add(time.Second)))

		got, err := repo.List(context.Background(), "c1", nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Nil(t, got[0].ContentType)
		require.NotNil(t, got[1].ContentType)
		assert.Equal(t, "application/json", *got[1].ContentType)
		assert.Equal(t, []byte("b2"), got[1].Body)
	})

	t.Run("since", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(`(?s)WHERE channel_id=\$1 AND created_at > \$2 ORDER BY created_at ASC, seq ASC`).
			WithArgs("c1", t0).
			WillReturnRows(sqlmock.NewRows(cols))

		got, err := repo.List(context.Background(), "c1", &t0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("rows error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(`FROM messages`).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("m1", "c1", "agent", nil, []byte("b1"), []byte("n1"), t0).
				RowError(0, errors.New("row-err")))

		_, err := repo.List(context.Background(), "c1", nil)
		require.EqualError(t, err, "row-err")
	})
}

func TestDelete(t *testing.T) {
	q := `DELETE FROM messages WHERE id=\$1 AND channel_id=\$2`

	t.Run("ok", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(q).WithArgs("m1", "c1").WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Delete(context.Background(), "m1", "c1"))
	})

	t.Run("other channel", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(q).WithArgs("m1", "c2").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.Delete(context.Background(), "m1", "c2"), common.ErrorNotFound)
	})
}

// Package memory is an in-process RepositoryManager and Transactor. It backs
// the "memory" DSN for local runs and the service and REST tests.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/channels"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/messages"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/pairingcodes"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/sessions"
)

var errNoSQL = errors.New("memory store does not execute SQL")

// handle is the DBTX given to repositories. SQL calls fail; repositories
// only use it to tell whether they run inside WithinTx.
type handle struct{ inTx bool }

func (handle) ExecContext(context.Context, string, ...any) (sql.Result, error) { return nil, errNoSQL }
func (handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) { return nil, errNoSQL }
func (handle) QueryRowContext(context.Context, string, ...any) *sql.Row       { return nil }

type message struct {
	models.Message
	seq int64
}

type tables struct {
	channels map[string]models.Channel
	keys     map[string]models.APIKey
	codes    map[string]models.PairingCode
	messages []message
	sessions map[string]models.CaptureSession
	seq      int64
}

func newTables() tables {
	return tables{
		channels: map[string]models.Channel{},
		keys:     map[string]models.APIKey{},
		codes:    map[string]models.PairingCode{},
		sessions: map[string]models.CaptureSession{},
	}
}

func (t *tables) clone() tables {
	c := newTables()
	for k, v := range t.channels {
		c.channels[k] = v
	}
	for k, v := range t.keys {
		c.keys[k] = v
	}
	for k, v := range t.codes {
		c.codes[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	c.messages = append([]message(nil), t.messages...)
	c.seq = t.seq
	return c
}

// Manager holds every table behind one mutex.
type Manager struct {
	mu sync.Mutex
	t  tables
}

func NewManager() *Manager {
	return &Manager{t: newTables()}
}

// DB returns the non-transactional handle to pass where a *sql.DB would go.
func (m *Manager) DB() dbx.DBTX { return handle{} }

// RunMigrations is a no-op: the schema is the Go types.
func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

// WithinTx runs fn under the store lock and restores the previous state if
// fn fails or panics.
func (m *Manager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.t.clone()
	defer func() {
		if p := recover(); p != nil {
			m.t = snapshot
			panic(p)
		}
		if err != nil {
			m.t = snapshot
		}
	}()

	return fn(ctx, handle{inTx: true})
}

// run executes fn against the tables, taking the lock unless db is a
// transactional handle whose WithinTx already holds it.
func (m *Manager) run(db dbx.DBTX, fn func(t *tables) error) error {
	if h, ok := db.(handle); !ok || !h.inTx {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(&m.t)
}

func (m *Manager) Channels(db dbx.DBTX) channels.Repository {
	return &channelRepo{m: m, db: db}
}

func (m *Manager) APIKeys(db dbx.DBTX) apikeys.Repository {
	return &apiKeyRepo{m: m, db: db}
}

func (m *Manager) PairingCodes(db dbx.DBTX) pairingcodes.Repository {
	return &pairingCodeRepo{m: m, db: db}
}

func (m *Manager) Messages(db dbx.DBTX) messages.Repository {
	return &messageRepo{m: m, db: db}
}

func (m *Manager) Sessions(db dbx.DBTX) sessions.Repository {
	return &sessionRepo{m: m, db: db}
}

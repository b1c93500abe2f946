package cli

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/client/config"
	"github.com/dmitrijs2005/dropbox/internal/client/services"
	"github.com/dmitrijs2005/dropbox/internal/client/store"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/filex"
)

const maxUnlockAttempts = 3

type App struct {
	config   *config.Config
	db       *sql.DB
	vault    *services.Vault
	channels *services.ChannelService
	reader   *bufio.Reader
	out      io.Writer

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// syncWriter serializes writes from the REPL and the watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// NewApp opens the local state file and wires the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := filex.EnsureParentDir(c.StatePath); err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, c.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", c.StatePath, err)
	}
	vault := services.NewVault(db)
	return newApp(c, db, vault, services.NewChannelService(db, vault), os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, db *sql.DB, vault *services.Vault, channels *services.ChannelService, in io.Reader, out io.Writer) *App {
	return &App{
		config:   c,
		db:       db,
		vault:    vault,
		channels: channels,
		reader:   bufio.NewReader(in),
		out:      &syncWriter{w: out},
	}
}

// Run unlocks the vault and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.unlock(ctx); err != nil {
		return err
	}
	a.Root(ctx)
	return nil
}

// Close stops the watcher, forgets the vault key and closes the state file.
func (a *App) Close() error {
	a.stopWatcher()
	a.vault.Lock()
	return a.db.Close()
}

// unlock asks for the vault password, or for a new one on first start.
func (a *App) unlock(ctx context.Context) error {
	ok, err := a.vault.Initialized(ctx)
	if err != nil {
		return err
	}

	if !ok {
		pw, err := GetPassword(a.out, "Choose a vault password")
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)
		if len(pw) == 0 {
			return fmt.Errorf("%w: empty password", common.ErrorInvalidRequest)
		}

		confirm, err := GetPassword(a.out, "Repeat the password")
		if err != nil {
			return err
		}
		defer common.WipeByteArray(confirm)
		if !bytes.Equal(pw, confirm) {
			return fmt.Errorf("%w: passwords do not match", common.ErrorInvalidRequest)
		}
		return a.vault.Init(ctx, pw)
	}

	for attempt := 1; attempt <= maxUnlockAttempts; attempt++ {
		pw, err := GetPassword(a.out, "Vault password")
		if err != nil {
			return err
		}
		err = a.vault.Unlock(ctx, pw)
		common.WipeByteArray(pw)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrorUnauthorized) {
			return err
		}
		fmt.Fprintln(a.out, "Wrong password")
	}
	return fmt.Errorf("%w: too many attempts", common.ErrorUnauthorized)
}

func (a *App) watching() bool {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	return a.watchCancel != nil
}

func (a *App) startWatcher(ctx context.Context, interval time.Duration) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.watchCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.watchCancel, a.watchDone = cancel, done

	go func() {
		defer close(done)
		a.watchMessages(ctx, interval)
	}()
}

func (a *App) stopWatcher() {
	a.watchMu.Lock()
	cancel, done := a.watchCancel, a.watchDone
	a.watchCancel, a.watchDone = nil, nil
	a.watchMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// watchMessages polls the active profile on every tick and prints what
// arrived. A failed poll is reported once until the next success.
func (a *App) watchMessages(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ticker.C:
			err := a.pollOnce(ctx)
			if err != nil && !failing && ctx.Err() == nil {
				fmt.Fprintln(a.out, "watch:", err)
			}
			failing = err != nil

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) pollOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p, err := a.channels.Active(ctx)
	if err != nil {
		return err
	}
	msgs, err := a.channels.Poll(ctx, p, false)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		a.printMessage(m)
	}
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/client/models"
	"github.com/dmitrijs2005/dropbox/internal/client/relay"
	"github.com/dmitrijs2005/dropbox/internal/client/store"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/cryptox"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

var ErrNoActiveProfile = errors.New("no active profile, run 'use <name>'")

// ChannelService manages saved channel profiles and talks to the relay on
// their behalf.
type ChannelService struct {
	db    *sql.DB
	vault *Vault
	opts  []relay.Option
}

func NewChannelService(db *sql.DB, vault *Vault, opts ...relay.Option) *ChannelService {
	return &ChannelService{db: db, vault: vault, opts: opts}
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: profile name must be a single word", common.ErrorInvalidRequest)
	}
	return nil
}

// Create registers a new channel on serverURL and saves it as name, which
// becomes the active profile.
func (s *ChannelService) Create(ctx context.Context, name, serverURL string) (*models.Profile, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if !s.vault.Unlocked() {
		return nil, ErrLocked
	}

	ch, err := relay.CreateChannel(ctx, serverURL, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return s.save(ctx, name, serverURL, "", ch)
}

// Redeem joins a channel with a pairing code and saves it as name.
func (s *ChannelService) Redeem(ctx context.Context, name, serverURL, code, label, passphrase string) (*models.Profile, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if !s.vault.Unlocked() {
		return nil, ErrLocked
	}

	ch, err := relay.RedeemPairingCode(ctx, serverURL, code, label, passphrase, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("redeem pairing code: %w", err)
	}
	return s.save(ctx, name, serverURL, label, ch)
}

func (s *ChannelService) save(ctx context.Context, name, serverURL, label string, ch *relay.Channel) (*models.Profile, error) {
	secret, nonce, err := s.vault.Seal(models.Secrets{
		APIKey:     ch.APIKey,
		ChannelKey: cryptox.ExportKey(ch.ChannelKey),
	})
	if err != nil {
		return nil, err
	}

	p := &models.Profile{
		Name:      name,
		ServerURL: serverURL,
		ChannelID: ch.ChannelID,
		Label:     label,
		Secret:    secret,
		Nonce:     nonce,
		CreatedAt: time.Now().UTC(),
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := store.Profiles(tx).Save(ctx, p); err != nil {
			return err
		}
		return store.Metadata(tx).Set(ctx, metaActive, []byte(name))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PairingCode issues a code for the profile's channel.
func (s *ChannelService) PairingCode(ctx context.Context, p *models.Profile, passphrase string) (*relay.PairingCode, error) {
	ch, err := s.Channel(p)
	if err != nil {
		return nil, err
	}
	return relay.GeneratePairingCode(ctx, p.ServerURL, ch, passphrase, s.opts...)
}

func (s *ChannelService) List(ctx context.Context) ([]*models.Profile, error) {
	return store.Profiles(s.db).List(ctx)
}

// Use makes name the active profile.
func (s *ChannelService) Use(ctx context.Context, name string) error {
	if _, err := store.Profiles(s.db).Get(ctx, name); err != nil {
		return err
	}
	return store.Metadata(s.db).Set(ctx, metaActive, []byte(name))
}

// Active returns the active profile or ErrNoActiveProfile.
func (s *ChannelService) Active(ctx context.Context) (*models.Profile, error) {
	name, err := store.Metadata(s.db).Get(ctx, metaActive)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, ErrNoActiveProfile
	}
	if err != nil {
		return nil, err
	}

	p, err := store.Profiles(s.db).Get(ctx, string(name))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, ErrNoActiveProfile
	}
	return p, err
}

// Forget deletes a profile locally. The channel and its API key stay valid
// on the relay.
func (s *ChannelService) Forget(ctx context.Context, name string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := store.Profiles(tx).Delete(ctx, name); err != nil {
			return err
		}
		meta := store.Metadata(tx)
		active, err := meta.Get(ctx, metaActive)
		if err == nil && string(active) == name {
			return meta.Delete(ctx, metaActive)
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return nil
	})
}

// Channel unseals the credentials of p.
func (s *ChannelService) Channel(p *models.Profile) (*relay.Channel, error) {
	sec, err := s.vault.Open(p)
	if err != nil {
		return nil, err
	}
	key, err := cryptox.ImportKey(sec.ChannelKey)
	if err != nil {
		return nil, err
	}
	return &relay.Channel{ChannelID: p.ChannelID, APIKey: sec.APIKey, ChannelKey: key}, nil
}

// Send posts data to the profile's channel.
func (s *ChannelService) Send(ctx context.Context, p *models.Profile, data any, sender string) (*relay.Sent, error) {
	ch, err := s.Channel(p)
	if err != nil {
		return nil, err
	}
	return relay.NewClient(p.ServerURL, ch, s.opts...).Send(ctx, data, relay.SendOptions{Sender: sender})
}

// Poll returns messages newer than the profile's cursor, or the whole
// mailbox when all is set, and moves the cursor to the newest one.
func (s *ChannelService) Poll(ctx context.Context, p *models.Profile, all bool) ([]relay.Message, error) {
	ch, err := s.Channel(p)
	if err != nil {
		return nil, err
	}

	var since *time.Time
	if p.Cursor != nil && !all {
		t, err := timex.ParseWire(*p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("profile %s: bad cursor: %w", p.Name, err)
		}
		since = &t
	}

	msgs, err := relay.NewClient(p.ServerURL, ch, s.opts...).Poll(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	cursor := timex.FormatWire(msgs[len(msgs)-1].CreatedAt)
	if err := store.Profiles(s.db).SetCursor(ctx, p.Name, cursor); err != nil {
		return nil, err
	}
	p.Cursor = &cursor
	return msgs, nil
}

// Ack deletes a message from the mailbox.
func (s *ChannelService) Ack(ctx context.Context, p *models.Profile, id string) error {
	ch, err := s.Channel(p)
	if err != nil {
		return err
	}
	return relay.NewClient(p.ServerURL, ch, s.opts...).DeleteMessage(ctx, id)
}

// Capture returns a capture client for the profile's channel.
func (s *ChannelService) Capture(p *models.Profile) (*relay.CaptureClient, error) {
	ch, err := s.Channel(p)
	if err != nil {
		return nil, err
	}
	return relay.NewCaptureClient(p.ServerURL, ch.APIKey, s.opts...), nil
}

// Options returns the relay options the service was built with.
func (s *ChannelService) Options() []relay.Option {
	return s.opts
}

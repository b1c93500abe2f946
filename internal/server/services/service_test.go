package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/mediastore"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/memory"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

// fakeClock is a settable time source shared by every service in a fixture.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	repos   *memory.Manager
	media   *mediastore.BoltStore
	metrics *metrics.Metrics
	clock   *fakeClock
	pairing *PairingService
	mailbox *MailboxService
	capture *CaptureService
	gate    *auth.Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	media, err := mediastore.OpenBolt(filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = media.Close() })

	f := &fixture{
		repos:   memory.NewManager(),
		media:   media,
		metrics: metrics.NewNop(),
		clock:   &fakeClock{now: t0},
	}
	db := f.repos.DB()
	f.pairing = NewPairingService(db, f.repos, f.repos, f.metrics, logging.Nop(), 10*time.Minute)
	f.mailbox = NewMailboxService(db, f.repos, f.metrics, logging.Nop())
	f.capture = NewCaptureService(db, f.repos, media, f.metrics, logging.Nop(), 2*time.Minute, 15*time.Minute)
	f.gate = auth.NewGate(db, f.repos)

	f.pairing.clock = f.clock.Now
	f.mailbox.clock = f.clock.Now
	f.capture.clock = f.clock.Now
	return f
}

// channel creates a channel and returns the identity of its agent key.
func (f *fixture) channel(t *testing.T) *auth.Identity {
	t.Helper()
	ctx := context.Background()
	creds, err := f.pairing.CreateChannel(ctx)
	require.NoError(t, err)
	id, err := f.gate.Authenticate(ctx, "Bearer "+creds.APIKey)
	require.NoError(t, err)
	require.NotNil(t, id)
	return id
}

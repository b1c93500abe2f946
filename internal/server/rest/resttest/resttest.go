// Package resttest starts a complete in-process relay for tests of HTTP
// clients: memory credential store, bbolt media store, real router.
package resttest

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/mediastore"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/memory"
	"github.com/dmitrijs2005/dropbox/internal/server/rest"
	"github.com/dmitrijs2005/dropbox/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// NewServer starts a relay and registers its shutdown with t.Cleanup.
// maxUploadBytes <= 0 selects rest.DefaultMaxUploadBytes.
func NewServer(t testing.TB, maxUploadBytes int64) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if maxUploadBytes <= 0 {
		maxUploadBytes = rest.DefaultMaxUploadBytes
	}

	media, err := mediastore.OpenBolt(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("open media store: %v", err)
	}
	t.Cleanup(func() { _ = media.Close() })

	repos := memory.NewManager()
	db := repos.DB()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	l := logging.Nop()

	h := rest.NewHandler(
		services.NewPairingService(db, repos, repos, m, l, 10*time.Minute),
		services.NewMailboxService(db, repos, m, l),
		services.NewCaptureService(db, repos, media, m, l, 2*time.Minute, time.Minute),
		auth.NewGate(db, repos),
		maxUploadBytes,
	)
	srv := httptest.NewServer(rest.NewRouter(h, l, m, reg))
	t.Cleanup(srv.Close)
	return srv
}

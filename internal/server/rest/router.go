package rest

import (
	"net/http"

	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadBytes caps a single capture upload.
const DefaultMaxUploadBytes = 64 << 20

type Handler struct {
	pairing        *services.PairingService
	mailbox        *services.MailboxService
	capture        *services.CaptureService
	gate           *auth.Gate
	maxUploadBytes int64
}

func NewHandler(p *services.PairingService, mb *services.MailboxService, cs *services.CaptureService, g *auth.Gate, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		pairing:        p,
		mailbox:        mb,
		capture:        cs,
		gate:           g,
		maxUploadBytes: maxUploadBytes,
	}
}

// NewRouter builds the gin engine with every route of the relay. gatherer
// backs /metrics and may be nil.
func NewRouter(h *Handler, l logging.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	l = l.With("module", "rest")

	r := gin.New()
	r.Use(accessLog(l, m), recovery(l), cors())

	r.NoRoute(func(c *gin.Context) {
		abortWithStatus(c, http.StatusNotFound, "Not found")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/channels", h.createChannel)
	r.POST("/pair", h.redeemPairingCode)

	authed := r.Group("/", authenticate(h.gate))
	{
		authed.POST("/channels/:id/pair", requireIdentity, h.createPairingCode)

		authed.GET("/messages", requireIdentity, h.getMessages)
		authed.POST("/messages", requireIdentity, h.postMessage)
		authed.DELETE("/messages/:id", requireIdentity, h.deleteMessage)

		capture := authed.Group("/api/capture/sessions")
		capture.POST("", requireIdentity, h.createSession)
		capture.GET("", requireIdentity, h.listSessions)
		capture.POST("/:id/upload", requireIdentity, h.uploadFile)
		// bearer or ?token=
		capture.POST("/:id/finalize", h.finalizeSession)
		capture.GET("/:id/manifest", requireIdentity, h.getManifest)
		capture.GET("/:id/files/:name", requireIdentity, h.getFile)
		capture.GET("/:id/files/:name/url", requireIdentity, h.fileURL)
		capture.DELETE("/:id", requireIdentity, h.deleteSession)
	}

	return r
}

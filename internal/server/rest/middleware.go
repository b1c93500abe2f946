package rest

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Custom request headers of the capture upload.
const (
	HeaderFilename  = "X-Capture-Filename"
	HeaderStartedAt = "X-Capture-Started-At"
	HeaderSource    = "X-Capture-Source"
)

var corsAllowHeaders = strings.Join([]string{
	"Content-Type", "Authorization", HeaderFilename, HeaderStartedAt, HeaderSource,
}, ", ")

// cors allows any origin. Preflight requests end here with 204.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authenticate resolves the bearer key, if any, and stores the identity on
// the context. It never rejects a request by itself.
func authenticate(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if id != nil {
			c.Set(identityKey, id)
		}
		c.Next()
	}
}

func requireIdentity(c *gin.Context) {
	if identity(c) == nil {
		abortWithStatus(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	c.Next()
}

// identity returns the caller set by authenticate, or nil.
func identity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

// accessLog logs one line per request. Keys, tokens and payloads are never
// logged.
func accessLog(l logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		args := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency", time.Since(start).String(),
		}
		if id := identity(c); id != nil {
			args = append(args, "channel_id", id.ChannelID)
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Error())
		}

		ctx := c.Request.Context()
		if status >= http.StatusInternalServerError {
			l.Error(ctx, "request", args...)
		} else {
			l.Info(ctx, "request", args...)
		}
	}
}

// recovery turns a panic into a 500 envelope.
func recovery(l logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		l.Error(c.Request.Context(), "panic recovered", "panic", fmt.Sprint(rec))
		abortWithStatus(c, http.StatusInternalServerError, "Internal error")
	})
}

package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to exactly one HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorGone):
		return http.StatusGone
	case errors.Is(err, common.ErrorUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the {"error": ...} envelope and records err on the
// context for the access log.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func abortWithStatus(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

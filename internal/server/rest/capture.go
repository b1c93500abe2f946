package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/dmitrijs2005/dropbox/internal/server/services"
	"github.com/dmitrijs2005/dropbox/internal/timex"
	"github.com/gin-gonic/gin"
)

type createSessionResponse struct {
	SessionID     string `json:"sessionId"`
	FinalizeToken string `json:"finalizeToken"`
	StartedAt     string `json:"startedAt"`
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID             string  `json:"id"`
	StartedAt      string  `json:"startedAt"`
	EndedAt        *string `json:"endedAt"`
	Status         string  `json:"status"`
	FileCount      int     `json:"fileCount"`
	LastActivityAt string  `json:"lastActivityAt"`
}

type uploadResponse struct {
	Uploaded string `json:"uploaded"`
	Size     int64  `json:"size"`
}

type finalizeResponse struct {
	Finalized bool   `json:"finalized"`
	EndedAt   string `json:"endedAt"`
}

func toSessionSummary(s *models.CaptureSession) SessionSummary {
	out := SessionSummary{
		ID:             s.ID,
		StartedAt:      timex.FormatWire(s.StartedAt),
		Status:         string(s.Status),
		FileCount:      s.FileCount,
		LastActivityAt: timex.FormatWire(s.LastActivityAt),
	}
	if s.EndedAt != nil {
		ended := timex.FormatWire(*s.EndedAt)
		out.EndedAt = &ended
	}
	return out
}

func (h *Handler) createSession(c *gin.Context) {
	created, err := h.capture.CreateSession(c.Request.Context(), identity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createSessionResponse{
		SessionID:     created.SessionID,
		FinalizeToken: created.FinalizeToken,
		StartedAt:     timex.FormatWire(created.StartedAt),
	})
}

func (h *Handler) listSessions(c *gin.Context) {
	list, err := h.capture.ListSessions(c.Request.Context(), identity(c), c.Query("status"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]SessionSummary, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionSummary(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithStatus(c, http.StatusRequestEntityTooLarge,
				"upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		abortWithStatus(c, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	res, err := h.capture.UploadFile(c.Request.Context(), identity(c), c.Param("id"), services.Upload{
		Filename:  c.GetHeader(HeaderFilename),
		StartedAt: c.GetHeader(HeaderStartedAt),
		Source:    c.GetHeader(HeaderSource),
		Body:      body,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, uploadResponse{Uploaded: res.Uploaded, Size: res.Size})
}

func (h *Handler) finalizeSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	grant, err := h.gate.AuthorizeFinalize(ctx, identity(c), sessionID, c.Query("token"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	endedAt, err := h.capture.FinalizeSession(ctx, grant, sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, finalizeResponse{Finalized: true, EndedAt: timex.FormatWire(endedAt)})
}

func (h *Handler) getManifest(c *gin.Context) {
	obj, err := h.capture.GetManifest(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", obj.Body)
}

func (h *Handler) getFile(c *gin.Context) {
	obj, err := h.capture.GetFile(c.Request.Context(), identity(c), c.Param("id"), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Length", strconv.FormatInt(obj.Size(), 10))
	c.Data(http.StatusOK, contentType, obj.Body)
}

func (h *Handler) fileURL(c *gin.Context) {
	url, err := h.capture.FileURL(c.Request.Context(), identity(c), c.Param("id"), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.capture.DeleteSession(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

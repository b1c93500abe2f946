package rest

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/dmitrijs2005/dropbox/internal/server/services"
	"github.com/dmitrijs2005/dropbox/internal/timex"
	"github.com/gin-gonic/gin"
)

// Message is the wire form of a mailbox entry. Body and nonce are standard
// base64 of the stored bytes.
type Message struct {
	ID          string  `json:"id"`
	Sender      string  `json:"sender"`
	ContentType *string `json:"contentType"`
	Body        string  `json:"body"`
	Nonce       string  `json:"nonce"`
	CreatedAt   string  `json:"createdAt"`
}

type postMessageRequest struct {
	Sender      string  `json:"sender"`
	ContentType *string `json:"contentType"`
	Body        string  `json:"body"`
	Nonce       string  `json:"nonce"`
}

type postMessageResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

func toWireMessage(m *models.Message) Message {
	return Message{
		ID:          m.ID,
		Sender:      m.Sender,
		ContentType: m.ContentType,
		Body:        base64.StdEncoding.EncodeToString(m.Body),
		Nonce:       base64.StdEncoding.EncodeToString(m.Nonce),
		CreatedAt:   timex.FormatWire(m.CreatedAt),
	}
}

func (h *Handler) getMessages(c *gin.Context) {
	var since *time.Time
	if v := c.Query("since"); v != "" {
		t, err := timex.ParseWire(v)
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: invalid since %q", common.ErrorInvalidRequest, v))
			return
		}
		since = &t
	}

	msgs, err := h.mailbox.GetMessages(c.Request.Context(), identity(c), since)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toWireMessage(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h *Handler) postMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorInvalidRequest, err))
		return
	}

	body, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: body is not base64", common.ErrorInvalidRequest))
		return
	}
	nonce, err := base64.StdEncoding.DecodeString(req.Nonce)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: nonce is not base64", common.ErrorInvalidRequest))
		return
	}

	msg, err := h.mailbox.PostMessage(c.Request.Context(), identity(c), services.NewMessage{
		Sender:      req.Sender,
		ContentType: req.ContentType,
		Body:        body,
		Nonce:       nonce,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postMessageResponse{ID: msg.ID, CreatedAt: timex.FormatWire(msg.CreatedAt)})
}

func (h *Handler) deleteMessage(c *gin.Context) {
	if err := h.mailbox.DeleteMessage(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

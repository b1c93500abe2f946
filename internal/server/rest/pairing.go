package rest

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/timex"
	"github.com/gin-gonic/gin"
)

type createChannelResponse struct {
	ChannelID string `json:"channelId"`
	APIKey    string `json:"apiKey"`
}

type createPairingCodeRequest struct {
	EncryptedChannelKey string `json:"encryptedChannelKey"`
}

type createPairingCodeResponse struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
}

type redeemRequest struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

type redeemResponse struct {
	ChannelID           string `json:"channelId"`
	APIKey              string `json:"apiKey"`
	EncryptedChannelKey string `json:"encryptedChannelKey"`
}

func (h *Handler) createChannel(c *gin.Context) {
	creds, err := h.pairing.CreateChannel(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createChannelResponse{ChannelID: creds.ChannelID, APIKey: creds.APIKey})
}

func (h *Handler) createPairingCode(c *gin.Context) {
	// An unreadable body leaves the key empty, so a wrong channel is still
	// reported as forbidden first.
	var req createPairingCodeRequest
	_ = c.ShouldBindJSON(&req)

	issued, err := h.pairing.CreatePairingCode(c.Request.Context(), identity(c), c.Param("id"), req.EncryptedChannelKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createPairingCodeResponse{
		Code:      issued.Code,
		ExpiresAt: timex.FormatWire(issued.ExpiresAt),
	})
}

func (h *Handler) redeemPairingCode(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorInvalidRequest, err))
		return
	}

	r, err := h.pairing.RedeemPairingCode(c.Request.Context(), req.Code, req.Label)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, redeemResponse{
		ChannelID:           r.ChannelID,
		APIKey:              r.APIKey,
		EncryptedChannelKey: r.EncryptedChannelKey,
	})
}

package relay

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/cryptox"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

// ErrPassphraseRequired is returned when a redeemed channel key was wrapped
// with a passphrase and none was given.
var ErrPassphraseRequired = errors.New("channel key is passphrase-protected")

// Channel is everything a party needs to use a channel.
type Channel struct {
	ChannelID  string
	APIKey     string
	ChannelKey []byte
}

// PairingCode is a short-lived code a client redeems for its own key.
type PairingCode struct {
	Code      string
	ExpiresAt time.Time
}

type channelCreated struct {
	ChannelID string `json:"channelId"`
	APIKey    string `json:"apiKey"`
}

type pairingCodeRequest struct {
	EncryptedChannelKey string `json:"encryptedChannelKey"`
}

type pairingCodeIssued struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
}

type redeemRequest struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

type redeemed struct {
	ChannelID           string `json:"channelId"`
	APIKey              string `json:"apiKey"`
	EncryptedChannelKey string `json:"encryptedChannelKey"`
}

// CreateChannel registers a new channel and generates its key locally.
func CreateChannel(ctx context.Context, baseURL string, opts ...Option) (*Channel, error) {
	var out channelCreated
	if err := newTransport(baseURL, "", opts).doJSON(ctx, http.MethodPost, "/channels", nil, &out); err != nil {
		return nil, err
	}
	return &Channel{
		ChannelID:  out.ChannelID,
		APIKey:     out.APIKey,
		ChannelKey: cryptox.GenerateChannelKey(),
	}, nil
}

// GeneratePairingCode deposits the channel key under a fresh pairing code.
// With an empty passphrase the key is sent as plain base64; otherwise it is
// wrapped with cryptox.WrapChannelKey and the passphrase has to reach the
// client out of band.
func GeneratePairingCode(ctx context.Context, baseURL string, ch *Channel, passphrase string, opts ...Option) (*PairingCode, error) {
	blob := cryptox.ExportKey(ch.ChannelKey)
	if passphrase != "" {
		var err error
		if blob, err = cryptox.WrapChannelKey(passphrase, ch.ChannelID, ch.ChannelKey); err != nil {
			return nil, err
		}
	}

	var out pairingCodeIssued
	path := "/channels/" + url.PathEscape(ch.ChannelID) + "/pair"
	err := newTransport(baseURL, ch.APIKey, opts).doJSON(ctx, http.MethodPost, path, pairingCodeRequest{EncryptedChannelKey: blob}, &out)
	if err != nil {
		return nil, err
	}

	expires, err := timex.ParseWire(out.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &PairingCode{Code: out.Code, ExpiresAt: expires}, nil
}

// RedeemPairingCode exchanges a code for a fresh API key and the channel key.
// The code is consumed even when unwrapping fails afterwards.
func RedeemPairingCode(ctx context.Context, baseURL, code, label, passphrase string, opts ...Option) (*Channel, error) {
	var out redeemed
	if err := newTransport(baseURL, "", opts).doJSON(ctx, http.MethodPost, "/pair", redeemRequest{Code: code, Label: label}, &out); err != nil {
		return nil, err
	}

	var (
		key []byte
		err error
	)
	switch {
	case cryptox.IsWrapped(out.EncryptedChannelKey) && passphrase == "":
		return nil, ErrPassphraseRequired
	case cryptox.IsWrapped(out.EncryptedChannelKey):
		key, err = cryptox.UnwrapChannelKey(passphrase, out.ChannelID, out.EncryptedChannelKey)
	default:
		key, err = cryptox.ImportKey(out.EncryptedChannelKey)
	}
	if err != nil {
		return nil, err
	}

	return &Channel{ChannelID: out.ChannelID, APIKey: out.APIKey, ChannelKey: key}, nil
}

// Package models defines server-side data models persisted in the
// relational store and the media store.
package models

import "time"

// Key labels. The agent key is minted together with the channel; client
// keys are minted by pairing-code redemption.
const (
	LabelAgent  = "agent"
	LabelClient = "client"
)

// Channel is the tenant boundary that scopes keys, messages and sessions.
type Channel struct {
	ID        string
	CreatedAt time.Time
}

// APIKey stores only the digest of a bearer secret. The plaintext is shown
// to its owner once and never persisted here.
type APIKey struct {
	ID        string
	ChannelID string
	KeyHash   string
	Label     string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// PairingCode is a short-lived dead-drop: it carries the plaintext client
// key and an opaque encrypted channel key until it is redeemed once.
type PairingCode struct {
	Code                string
	ChannelID           string
	APIKey              string
	EncryptedChannelKey string
	ExpiresAt           time.Time
	Used                bool
}

// Expired reports whether the code can no longer be redeemed at now.
func (p *PairingCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

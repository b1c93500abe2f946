// Package models defines the CLI's local data.
package models

import "time"

// Profile is one saved channel membership. Secret is the JSON of Secrets
// sealed with the vault key; the relay never sees it.
type Profile struct {
	Name      string
	ServerURL string
	ChannelID string
	Label     string
	Secret    []byte
	Nonce     []byte

	// Cursor is the createdAt of the newest message already shown, in the
	// relay's wire format.
	Cursor    *string
	CreatedAt time.Time
}

// Secrets is the sealed part of a profile.
type Secrets struct {
	APIKey     string `json:"apiKey"`
	ChannelKey string `json:"channelKey"`
}

package models

import "time"

// Message is an opaque ciphertext posted to a channel's mailbox. Body and
// Nonce are never inspected by the relay.
type Message struct {
	ID          string
	ChannelID   string
	Sender      string
	ContentType *string
	Body        []byte
	Nonce       []byte
	CreatedAt   time.Time
}

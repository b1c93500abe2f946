package models

import "time"

// SessionStatus is the capture session state. Completed is terminal.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	return s == SessionActive || s == SessionCompleted
}

// CaptureSession is the relational index row of a capture session. The
// manifest in the media store is the client-facing record of its files.
type CaptureSession struct {
	ID             string
	ChannelID      string
	StartedAt      time.Time
	EndedAt        *time.Time
	Status         SessionStatus
	FileCount      int
	LastActivityAt time.Time
	FinalizeToken  string
}

// Manifest is the JSON document stored next to a session's files.
type Manifest struct {
	SessionID string         `json:"sessionId"`
	ChannelID string         `json:"channelId"`
	StartedAt string         `json:"startedAt"`
	EndedAt   *string        `json:"endedAt"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile describes one uploaded blob.
type ManifestFile struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	StartedAt string `json:"startedAt"`
	Size      int64  `json:"size"`
	Source    string `json:"source"`
}

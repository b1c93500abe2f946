package relay

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/timex"
)

const (
	headerFilename  = "X-Capture-Filename"
	headerStartedAt = "X-Capture-Started-At"
	headerSource    = "X-Capture-Source"
)

// CaptureClient drives capture sessions of one channel.
type CaptureClient struct {
	t *transport
}

// NewCaptureClient returns a capture client authenticated with apiKey.
func NewCaptureClient(baseURL, apiKey string, opts ...Option) *CaptureClient {
	return &CaptureClient{t: newTransport(baseURL, apiKey, opts)}
}

// Session is a freshly opened capture session. FinalizeToken lets a party
// without the API key close it.
type Session struct {
	ID            string `json:"sessionId"`
	FinalizeToken string `json:"finalizeToken"`
	StartedAt     string `json:"startedAt"`
}

// SessionSummary is one entry of ListSessions.
type SessionSummary struct {
	ID             string  `json:"id"`
	StartedAt      string  `json:"startedAt"`
	EndedAt        *string `json:"endedAt"`
	Status         string  `json:"status"`
	FileCount      int     `json:"fileCount"`
	LastActivityAt string  `json:"lastActivityAt"`
}

// Manifest is the session document kept next to the uploaded files.
type Manifest struct {
	SessionID string         `json:"sessionId"`
	ChannelID string         `json:"channelId"`
	StartedAt string         `json:"startedAt"`
	EndedAt   *string        `json:"endedAt"`
	Files     []ManifestFile `json:"files"`
}

type ManifestFile struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	StartedAt string `json:"startedAt"`
	Size      int64  `json:"size"`
	Source    string `json:"source"`
}

// Uploaded is the relay's receipt for one file.
type Uploaded struct {
	Name string `json:"uploaded"`
	Size int64  `json:"size"`
}

// UploadOptions fill the capture headers. An empty StartedAt is sent as the
// current time.
type UploadOptions struct {
	StartedAt string
	Source    string
}

type finalized struct {
	Finalized bool   `json:"finalized"`
	EndedAt   string `json:"endedAt"`
}

func sessionPath(id string) string {
	return "/api/capture/sessions/" + url.PathEscape(id)
}

func (c *CaptureClient) CreateSession(ctx context.Context) (*Session, error) {
	var out Session
	if err := c.t.doJSON(ctx, http.MethodPost, "/api/capture/sessions", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload streams body into the session under filename.
func (c *CaptureClient) Upload(ctx context.Context, sessionID, filename string, body io.Reader, o UploadOptions) (*Uploaded, error) {
	if o.StartedAt == "" {
		o.StartedAt = timex.FormatWire(time.Now())
	}

	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")
	header.Set(headerFilename, filename)
	header.Set(headerStartedAt, o.StartedAt)
	if o.Source != "" {
		header.Set(headerSource, o.Source)
	}

	resp, err := c.t.request(ctx, http.MethodPost, sessionPath(sessionID)+"/upload", body, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Uploaded
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finalize closes the session as its channel owner.
func (c *CaptureClient) Finalize(ctx context.Context, sessionID string) (time.Time, error) {
	return finalize(ctx, c.t, sessionID, "")
}

// FinalizeWithToken closes a session with the token returned by
// CreateSession. No API key is needed.
func FinalizeWithToken(ctx context.Context, baseURL, sessionID, token string, opts ...Option) (time.Time, error) {
	return finalize(ctx, newTransport(baseURL, "", opts), sessionID, token)
}

func finalize(ctx context.Context, t *transport, sessionID, token string) (time.Time, error) {
	path := sessionPath(sessionID) + "/finalize"
	if token != "" {
		path += "?token=" + url.QueryEscape(token)
	}

	var out finalized
	if err := t.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return time.Time{}, err
	}
	return timex.ParseWire(out.EndedAt)
}

// ListSessions returns the channel's sessions, newest first. status may be
// "", "active" or "completed".
func (c *CaptureClient) ListSessions(ctx context.Context, status string) ([]SessionSummary, error) {
	path := "/api/capture/sessions"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var out struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	if err := c.t.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *CaptureClient) Manifest(ctx context.Context, sessionID string) (*Manifest, error) {
	var out Manifest
	if err := c.t.doJSON(ctx, http.MethodGet, sessionPath(sessionID)+"/manifest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// File opens a download of one session file. The caller closes the reader.
func (c *CaptureClient) File(ctx context.Context, sessionID, name string) (io.ReadCloser, string, error) {
	resp, err := c.t.request(ctx, http.MethodGet, sessionPath(sessionID)+"/files/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// FileURL asks for a presigned download link. Backends without presigning
// answer 501.
func (c *CaptureClient) FileURL(ctx context.Context, sessionID, name string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.t.doJSON(ctx, http.MethodGet, sessionPath(sessionID)+"/files/"+url.PathEscape(name)+"/url", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// DeleteSession removes the session and all of its files.
func (c *CaptureClient) DeleteSession(ctx context.Context, sessionID string) error {
	return c.t.doJSON(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil)
}

// Package relay is the Go SDK for the dropbox relay. Agents create channels
// and issue pairing codes, clients redeem them, and both sides exchange
// messages sealed with the shared channel key. The relay only ever sees
// ciphertext.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response is kept in HTTPError.
const maxErrorBody = 64 << 10

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Message returns the text of the relay's {"error": ...} envelope, or the
// raw body when it is not one.
func (e *HTTPError) Message() string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &env); err == nil && env.Error != "" {
		return env.Error
	}
	return e.Body
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// Option customizes the transport of a client.
type Option func(*transport)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) {
		t.http = c
	}
}

type transport struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newTransport(baseURL, apiKey string, opts []Option) *transport {
	t := &transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    http.DefaultClient,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *transport) request(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", resp.Request.Method, resp.Request.URL.Path, err)
	}
	return nil
}

// doJSON sends in (when non-nil) as JSON and decodes the response into out
// (when non-nil).
func (t *transport) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	header := http.Header{}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		header.Set("Content-Type", "application/json")
	}

	resp, err := t.request(ctx, method, path, body, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decode(resp, out)
}

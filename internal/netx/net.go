// Package netx fetches objects straight from presigned object-store URLs,
// bypassing the relay.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchPresigned GETs url with c (http.DefaultClient when nil) and returns
// the body. Any status other than 200 is an error carrying the response
// text. The caller closes the reader.
func FetchPresigned(ctx context.Context, c *http.Client, url string) (io.ReadCloser, error) {
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("presigned download failed: %s; body: %s", resp.Status, string(b))
	}
	return resp.Body, nil
}

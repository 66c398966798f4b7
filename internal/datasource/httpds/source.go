package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Remote adapts Client to the datasource.Source interface so HTTP-hosted
// exports plug into the pipeline the same way local files do.
type Remote struct {
	client *Client
	url    string
}

// NewRemote returns a Remote source for the given URL.
func NewRemote(client *Client, url string) *Remote {
	return &Remote{client: client, url: url}
}

// Open issues a GET for the configured URL and returns the response body.
// Non-2xx final responses are an error; the body is the caller's to close.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", r.url, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNoContent {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: empty response", r.url)
	}
	return resp.Body, nil
}

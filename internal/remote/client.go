// Package remote fetches JSON documents from the cockpit API and reports
// every failure as an absent result.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// maxErrorBody bounds how much of a failed response body is logged.
const maxErrorBody = 512

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the remote client.
type Config struct {
	BaseURL string
	// Cookie is forwarded verbatim; the session itself is owned by the cockpit.
	Cookie string
}

// Client issues GET requests and decodes JSON responses.
type Client struct {
	httpClient HTTPClient
	baseURL    *url.URL
	cookie     string
}

// New creates a client. A nil httpClient uses http.DefaultClient, which has no
// timeout; callers bound requests through their context.
func New(httpClient HTTPClient, cfg Config) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		cookie:     cfg.Cookie,
	}, nil
}

// Resolve turns a path relative to the base URL into an absolute URL.
// Absolute URLs are returned unchanged.
func (c *Client) Resolve(target string) (string, error) {
	ref, err := url.Parse(strings.TrimLeft(target, "/"))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	if ref.IsAbs() {
		return target, nil
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// FetchJSON GETs target and decodes the body into out. It returns false on
// any transport, status or decode failure and logs the cause.
func (c *Client) FetchJSON(ctx context.Context, target string, out any) bool {
	if err := c.fetch(ctx, target, out); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("url", target).
			Msg("Remote fetch failed")
		return false
	}
	return true
}

// Fetch is the typed form of FetchJSON.
func Fetch[T any](ctx context.Context, c *Client, target string) (T, bool) {
	var out T
	if !c.FetchJSON(ctx, target, &out) {
		var zero T
		return zero, false
	}
	return out, true
}

func (c *Client) fetch(ctx context.Context, target string, out any) error {
	endpoint, err := c.Resolve(target)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

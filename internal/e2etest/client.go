// Package e2etest drives a running Orb server through its JSON API.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/justinas/nosurf"
	"github.com/myrjola/orb/internal/errors"
)

// ErrUnexpectedStatus is returned when the server answers with another status code than expected.
var ErrUnexpectedStatus = errors.NewSentinel("unexpected status code")

type Client struct {
	client    *http.Client
	url       string
	csrfToken string
}

// NewClient creates a session-aware HTTP client for the server at url.
func NewClient(url string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}
	return &Client{
		client:    &http.Client{Jar: jar, Timeout: 10 * time.Second}, //nolint:exhaustruct,mnd // defaults are fine
		url:       url,
		csrfToken: "",
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	for {
		resp, err := c.Get(ctx, urlPath)
		if err == nil {
			if closeErr := resp.Body.Close(); closeErr != nil {
				return errors.Wrap(closeErr, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+urlPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// GetJSON fetches urlPath and decodes the 200 OK response into v.
func (c *Client) GetJSON(ctx context.Context, urlPath string, v any) error {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return err
	}
	return decode(resp, http.StatusOK, v)
}

// Login starts a session and remembers the CSRF token that state changing requests need.
func (c *Client) Login(ctx context.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.GetJSON(ctx, "/api/csrf", &body); err != nil {
		return errors.Wrap(err, "get csrf token")
	}
	if body.Token == "" {
		return errors.New("empty csrf token")
	}
	c.csrfToken = body.Token
	return nil
}

// PostJSON posts body as JSON with the CSRF token and decodes the response into v when it has the want status.
func (c *Client) PostJSON(ctx context.Context, urlPath string, body any, want int, v any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+urlPath, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(nosurf.HeaderName, c.csrfToken)
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	return decode(resp, want, v)
}

func decode(resp *http.Response, want int, v any) error {
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != want {
		return errors.Wrap(ErrUnexpectedStatus, "check status",
			slog.Int("status", resp.StatusCode), slog.Int("want", want), slog.String("url", resp.Request.URL.String()))
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

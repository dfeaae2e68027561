// Package httpx provides a small HTTP client wrapper with retries, timeouts,
// and exponential back-off. No locks are used; the Client struct is safe for
// concurrent use because its fields are immutable after construction and the
// underlying http.Client is concurrency-safe.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps net/http.Client with retry and timeout behaviour.
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a Client with the given timeout and retry count.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

// Do executes the request with retries on transient failures (5xx or network errors).
// It uses exponential back-off between attempts.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var (
		resp *http.Response
		err  error
	)

	for attempt := 0; attempt < c.maxRetries+1; attempt++ {
		clone := req.Clone(ctx)
		if req.GetBody != nil {
			// Rewind the body for re-sends.
			if clone.Body, err = req.GetBody(); err != nil {
				return nil, fmt.Errorf("httpx: rewind body: %w", err)
			}
		}

		resp, err = c.http.Do(clone)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if attempt == c.maxRetries {
			// Last attempt: hand the 5xx response back unread.
			break
		}

		// Drain body on retry to allow connection reuse.
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		delay := c.baseDelay * (1 << uint(attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("httpx: all %d retries failed: %w", c.maxRetries+1, err)
	}
	return resp, nil
}

// Get is a convenience method for GET requests.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpx: new request: %w", err)
	}
	return c.Do(ctx, req)
}

// DoJSON sends an optional JSON body and decodes the JSON response into out.
// A non-empty bearer token is attached as an Authorization header. The
// response status is returned even for error statuses so callers can assert
// on it; pass nil for in or out to skip that side.
func (c *Client) DoJSON(ctx context.Context, method, url, bearer string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("httpx: marshal body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("httpx: new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("httpx: decode response: %w", err)
	}
	return resp.StatusCode, nil
}

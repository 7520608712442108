// internal/common/http/client.go

// Package http wraps the outbound HTTP client shared by the identity and
// push provider adapters. Every call site builds its request with
// NewRequestWithContext, so cancellation rides on the request while the
// client enforces the per-provider timeout.
package http

import (
	"net/http"
	"time"
)

type Client struct {
	inner *http.Client
}

// NewClient returns a client whose requests are cut off after timeout,
// covering connect, redirects, and body read.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		inner: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.inner.Do(req)
}

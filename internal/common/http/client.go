// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps how much of an upstream body is read.
const maxBodyBytes = 4 << 20

type Client struct {
	httpClient *http.Client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient builds a client. A zero timeout leaves deadlines to the caller's
// context.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientFrom wraps an existing *http.Client, e.g. httptest.Server.Client().
func NewClientFrom(c *http.Client) *Client {
	if c == nil {
		c = &http.Client{}
	}
	return &Client{httpClient: c}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}

// PostJSON marshals payload, posts it and reads the whole response body.
// Non-2xx statuses are returned as a Response, not an error.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       data,
	}, nil
}

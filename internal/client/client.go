// Package client talks to a running gateway over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client wraps the gateway's HTTP endpoints.
type Client struct {
	base     string
	http     *http.Client
	account  string
	password string
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sends account and password as Basic auth on send calls.
func WithCredentials(account, password string) Option {
	return func(c *Client) {
		c.account = account
		c.password = password
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the gateway at addr. A bare host:port is
// treated as http.
func New(addr string, opts ...Option) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	c := &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gateway returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, e.Code)
}

// Status is the /status response.
type Status struct {
	Status string  `json:"status"`
	QR     *string `json:"qr"`
}

// CheckResult is the /check-number response.
type CheckResult struct {
	Number     string `json:"number"`
	Registered bool   `json:"registered"`
}

// MessageStatus is the /message-status response.
type MessageStatus struct {
	ID        string `json:"id"`
	Ack       int    `json:"ack"`
	AckState  string `json:"ackState"`
	To        string `json:"to"`
	JID       string `json:"jid"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Status reports the session state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckNumber reports whether number is on WhatsApp.
func (c *Client) CheckNumber(ctx context.Context, number string) (*CheckResult, error) {
	var out CheckResult
	path := "/check-number?" + url.Values{"number": {number}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MessageStatus returns the tracked delivery state of a sent message.
func (c *Client) MessageStatus(ctx context.Context, id string) (*MessageStatus, error) {
	var out MessageStatus
	path := "/message-status?" + url.Values{"id": {id}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendText sends a text message and returns its id.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"to": to, "msg": text}
	if err := c.do(ctx, http.MethodPost, "/send-message", body, true, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && (c.account != "" || c.password != "") {
		req.SetBasicAuth(c.account, c.password)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &failure)
		return &APIError{StatusCode: res.StatusCode, Code: failure.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
